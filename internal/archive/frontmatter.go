// Package archive reconstructs the relational store from the on-disk Git
// archive when the database is missing or corrupt beyond repair. The
// archive is a per-project tree of JSON metadata and JSON-frontmatter
// markdown message files; this package walks it and replays it into a
// fresh database via the storage layer's schema.
package archive

import "strings"

const frontmatterStart = "---json\n"
const frontmatterEnd = "\n---\n"

// extractJSONFrontmatter returns the JSON payload between the `---json\n`
// and `\n---\n` markers, or false if the markers are not both present.
func extractJSONFrontmatter(content string) (string, bool) {
	start := strings.Index(content, frontmatterStart)
	if start < 0 {
		return "", false
	}
	jsonStart := start + len(frontmatterStart)
	end := strings.Index(content[jsonStart:], frontmatterEnd)
	if end < 0 {
		return "", false
	}
	return content[jsonStart : jsonStart+end], true
}

// extractBodyAfterFrontmatter returns the markdown body following the
// frontmatter block, with leading/trailing blank lines trimmed.
func extractBodyAfterFrontmatter(content string) (string, bool) {
	idx := strings.Index(content, frontmatterEnd)
	if idx < 0 {
		return "", false
	}
	return strings.TrimSpace(content[idx+len(frontmatterEnd):]), true
}
