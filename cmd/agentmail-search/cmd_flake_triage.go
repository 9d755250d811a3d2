package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"agentmail-search/internal/triage"
)

var (
	triageVerbose bool
	triageTimeout time.Duration
)

var flakeTriageCmd = &cobra.Command{
	Use:   "flake-triage <artifact>",
	Short: "Replay a captured test failure from its failure_context.json artifact",
	Long: `Reads the failure_context.json at <artifact>, rebuilds and re-runs the
captured test, and reports whether the failure reproduces.

Exit codes: 0 if the failure reproduced, 1 if it did not (informational,
not a harness error), 2 if the artifact or the replay itself failed.`,
	Args: cobra.ExactArgs(1),
	RunE: runFlakeTriage,
}

var flakeTriageScanCmd = &cobra.Command{
	Use:   "scan <root>",
	Short: "List failure_context.json artifacts under a directory, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlakeTriageScan,
}

var bundleSuite string

var flakeTriageBundleCmd = &cobra.Command{
	Use:   "bundle <artifact-dir>",
	Short: "Write bundle.json, a content-addressed manifest of an artifact directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runFlakeTriageBundle,
}

func init() {
	flakeTriageCmd.Flags().BoolVar(&triageVerbose, "verbose-repro", false, "Pass -v to the replayed test")
	flakeTriageCmd.Flags().DurationVar(&triageTimeout, "timeout", 0, "Replay timeout (default: triage package default)")
	flakeTriageBundleCmd.Flags().StringVar(&bundleSuite, "suite", "default", "Suite label recorded in the manifest")
	flakeTriageCmd.AddCommand(flakeTriageScanCmd, flakeTriageBundleCmd)
}

func runFlakeTriage(cmd *cobra.Command, args []string) error {
	result, err := triage.ReproduceFailure(triage.ReproductionConfig{
		ArtifactPath: args[0],
		Verbose:      triageVerbose,
		Timeout:      triageTimeout,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
		os.Exit(2)
	}

	fmt.Printf("test=%s reproduced=%v exit_code=%d elapsed_ms=%d\n",
		result.TestName, result.Reproduced, result.ExitCode, result.ElapsedMs)
	if result.Stdout != "" {
		fmt.Println(result.Stdout)
	}
	if result.Stderr != "" {
		fmt.Fprintln(os.Stderr, result.Stderr)
	}

	if !result.Reproduced {
		os.Exit(1)
	}
	return nil
}

func runFlakeTriageScan(cmd *cobra.Command, args []string) error {
	scanned := triage.ScanArtifacts(args[0])
	if len(scanned) == 0 {
		fmt.Println("no artifacts found")
		return nil
	}
	for _, a := range scanned {
		fmt.Printf("%s\ttest=%s\tcategory=%s\tfailed_at=%s\n",
			a.Path, a.Context.TestName, a.Context.Category, a.Context.FailureTs)
	}
	return nil
}

func runFlakeTriageBundle(cmd *cobra.Command, args []string) error {
	rc := triage.NewRunContext(
		triage.ClockMode(cfg.Determinism.ClockMode),
		uint64(cfg.Determinism.Seed),
		cfg.Determinism.EpochBase,
		bundleSuite,
	)
	m, err := triage.BuildManifest(args[0], bundleSuite, rc)
	if err != nil {
		return err
	}
	if err := triage.WriteManifest(args[0], m); err != nil {
		return err
	}
	fmt.Printf("wrote bundle.json: %d file(s)\n", len(m.Files))
	return nil
}
