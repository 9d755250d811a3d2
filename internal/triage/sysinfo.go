package triage

import (
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"
)

// readRSSKB reads the resident set size of the current process from
// /proc/self/statm (Linux only). Returns 0 on any other platform or on
// read failure — this is diagnostic best-effort, not load-bearing.
func readRSSKB() uint64 {
	if runtime.GOOS != "linux" {
		return 0
	}
	data, err := os.ReadFile("/proc/self/statm")
	if err != nil {
		return 0
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0
	}
	pages, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0
	}
	pageSizeKB := uint64(os.Getpagesize()) / 1024
	if pageSizeKB == 0 {
		pageSizeKB = 4
	}
	return pages * pageSizeKB
}

var processStart = time.Now()

// readUptimeSecs returns the elapsed wall-clock time since this process
// variable was initialized, used as a proxy for process uptime.
func readUptimeSecs() float64 {
	return time.Since(processStart).Seconds()
}
