package archive

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"agentmail-search/internal/logging"
	"agentmail-search/internal/searcherr"
)

// Stats summarizes one reconstruction pass.
type Stats struct {
	Projects    int
	Agents      int
	Messages    int
	Recipients  int
	ParseErrors int
	Warnings    []string
}

func (s Stats) String() string {
	return fmt.Sprintf(
		"reconstructed %d projects, %d agents, %d messages (%d recipients), %d parse errors",
		s.Projects, s.Agents, s.Messages, s.Recipients, s.ParseErrors,
	)
}

func (s *Stats) warn(format string, args ...interface{}) {
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

type agentKey struct {
	projectID int64
	name      string
}

// Reconstruct walks the archive tree rooted at storageRoot and replays its
// projects, agents, and messages into db. db must already have schema
// applied (see internal/store.EnsureSchema); this is the recovery path run
// when the live database is missing or judged unrecoverable, not a normal
// startup step.
func Reconstruct(db *sql.DB, storageRoot string) (Stats, error) {
	timer := logging.StartTimer(logging.CategoryStorage, "Reconstruct")
	defer timer.Stop()

	var stats Stats

	projectsDir := filepath.Join(storageRoot, "projects")
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			stats.warn("no projects directory found at %s", projectsDir)
			return stats, nil
		}
		return stats, searcherr.New(searcherr.IO, "archive.Reconstruct", err)
	}

	var slugs []string
	for _, e := range entries {
		if e.IsDir() {
			slugs = append(slugs, e.Name())
		}
	}
	sort.Strings(slugs)

	agentIDs := make(map[agentKey]int64)

	for _, slug := range slugs {
		projectPath := filepath.Join(projectsDir, slug)
		humanKey := readProjectHumanKey(projectPath, slug, &stats)

		if _, err := db.Exec(
			"INSERT OR IGNORE INTO projects (slug, human_key, created_ts) VALUES (?, ?, ?)",
			slug, humanKey, nowMicros(),
		); err != nil {
			return stats, searcherr.New(searcherr.IO, "archive.insertProject", err)
		}
		var projectID int64
		if err := db.QueryRow("SELECT id FROM projects WHERE slug = ?", slug).Scan(&projectID); err != nil {
			return stats, searcherr.New(searcherr.IO, "archive.queryProjectID", err)
		}
		stats.Projects++

		agentsDir := filepath.Join(projectPath, "agents")
		if info, err := os.Stat(agentsDir); err == nil && info.IsDir() {
			if err := discoverAgents(db, agentsDir, projectID, agentIDs, &stats); err != nil {
				return stats, err
			}
		}

		messagesDir := filepath.Join(projectPath, "messages")
		if info, err := os.Stat(messagesDir); err == nil && info.IsDir() {
			discoverMessages(db, messagesDir, projectID, agentIDs, &stats)
		}
	}

	if _, err := db.Exec("REINDEX"); err != nil {
		logging.Get(logging.CategoryStorage).Warn("reconstruct: REINDEX failed: %v", err)
	}

	logging.Storage("archive reconstruction complete: %s", stats.String())
	return stats, nil
}

// readProjectHumanKey loads project.json's human_key, falling back to a
// synthetic /<slug> path when metadata is missing, malformed, or the
// recorded human_key is not absolute.
func readProjectHumanKey(projectPath, slug string, stats *Stats) string {
	metadataPath := filepath.Join(projectPath, "project.json")
	fallback := "/" + slug

	data, err := os.ReadFile(metadataPath)
	if err != nil {
		stats.warn("missing %s; using fallback human_key %q", metadataPath, fallback)
		return fallback
	}

	var meta ProjectMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		stats.ParseErrors++
		stats.warn("cannot parse %s: %v; using fallback human_key %q", metadataPath, err, fallback)
		return fallback
	}

	humanKey := strings.TrimSpace(meta.HumanKey)
	if humanKey == "" {
		stats.ParseErrors++
		stats.warn("missing/empty human_key in %s; using fallback human_key %q", metadataPath, fallback)
		return fallback
	}
	if !filepath.IsAbs(humanKey) {
		stats.ParseErrors++
		stats.warn("non-absolute human_key %q in %s; using fallback human_key %q", humanKey, metadataPath, fallback)
		return fallback
	}
	if ms := strings.TrimSpace(meta.Slug); ms != "" && ms != slug {
		stats.warn("project metadata slug mismatch in %s: dir slug=%q, metadata slug=%q", metadataPath, slug, ms)
	}
	return humanKey
}

// discoverAgents walks agents/<name>/profile.json and inserts agent rows.
func discoverAgents(db *sql.DB, agentsDir string, projectID int64, agentIDs map[agentKey]int64, stats *Stats) error {
	entries, err := os.ReadDir(agentsDir)
	if err != nil {
		return nil
	}

	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		name := e.Name()
		profilePath := filepath.Join(agentsDir, name, "profile.json")
		data, err := os.ReadFile(profilePath)
		if err != nil {
			continue
		}

		var profile AgentProfile
		if err := json.Unmarshal(data, &profile); err != nil {
			stats.ParseErrors++
			stats.warn("cannot parse %s: %v", profilePath, err)
			continue
		}

		program := valueOr(profile.Program, "unknown")
		model := valueOr(profile.Model, "unknown")
		contactPolicy := valueOr(profile.ContactPolicy, "auto")

		inceptionTs, hasInception := parseTsField(profile.InceptionTs)
		if !hasInception {
			inceptionTs, hasInception = parseTsField(profile.RegisteredTs)
		}
		lastActiveTs, hasLastActive := parseTsField(profile.LastActiveTs)
		if !hasLastActive {
			lastActiveTs = inceptionTs
		}
		if !hasInception {
			inceptionTs = lastActiveTs
		}
		if inceptionTs == 0 && lastActiveTs == 0 {
			inceptionTs = nowMicros()
			lastActiveTs = inceptionTs
		}

		if _, err := db.Exec(
			`INSERT OR IGNORE INTO agents
			 (project_id, name, program, model, contact_policy, inception_ts, last_active_ts)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			projectID, name, program, model, contactPolicy, inceptionTs, lastActiveTs,
		); err != nil {
			return searcherr.New(searcherr.IO, "archive.insertAgent", err)
		}

		var agentID int64
		if err := db.QueryRow(
			"SELECT id FROM agents WHERE project_id = ? AND name = ?", projectID, name,
		).Scan(&agentID); err != nil {
			return searcherr.New(searcherr.IO, "archive.queryAgentID", err)
		}
		agentIDs[agentKey{projectID, name}] = agentID
		stats.Agents++
	}
	return nil
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

// discoverMessages walks messages/<YYYY>/<MM>/*.md in chronological filename
// order and inserts each message, tolerating individual parse failures.
func discoverMessages(db *sql.DB, messagesDir string, projectID int64, agentIDs map[agentKey]int64, stats *Stats) {
	var files []string
	years, err := os.ReadDir(messagesDir)
	if err != nil {
		return
	}
	for _, y := range years {
		if !y.IsDir() {
			continue
		}
		yearPath := filepath.Join(messagesDir, y.Name())
		months, err := os.ReadDir(yearPath)
		if err != nil {
			continue
		}
		for _, m := range months {
			if !m.IsDir() {
				continue
			}
			monthPath := filepath.Join(yearPath, m.Name())
			entries, err := os.ReadDir(monthPath)
			if err != nil {
				continue
			}
			for _, f := range entries {
				if strings.HasSuffix(f.Name(), ".md") {
					files = append(files, filepath.Join(monthPath, f.Name()))
				}
			}
		}
	}
	sort.Strings(files)

	for _, path := range files {
		if err := parseAndInsertMessage(db, path, projectID, agentIDs, stats); err != nil {
			stats.ParseErrors++
			stats.warn("failed to reconstruct message from %s: %v", path, err)
		}
	}
}

func parseAndInsertMessage(db *sql.DB, path string, projectID int64, agentIDs map[agentKey]int64, stats *Stats) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	frontmatter, ok := extractJSONFrontmatter(string(content))
	if !ok {
		return fmt.Errorf("no JSON frontmatter in %s", path)
	}

	var msg MessageFrontmatter
	if err := json.Unmarshal([]byte(frontmatter), &msg); err != nil {
		return fmt.Errorf("bad JSON in %s: %w", path, err)
	}

	body, _ := extractBodyAfterFrontmatter(string(content))
	subject := msg.Subject
	importance := valueOr(msg.Importance, "normal")

	createdTs, ok := parseTsField(msg.CreatedTs)
	if !ok {
		createdTs, ok = parseTsField(msg.Created)
	}
	if !ok {
		createdTs = nowMicros()
	}

	attachmentsJSON := "[]"
	if msg.Attachments != nil {
		if b, err := json.Marshal(msg.Attachments); err == nil {
			attachmentsJSON = string(b)
		}
	}

	senderID, err := ensureAgentExists(db, projectID, msg.senderName(), agentIDs, stats)
	if err != nil {
		return err
	}

	toNames := stringList(msg.To)
	ccNames := stringList(msg.Cc)
	bccNames := stringList(msg.Bcc)

	var threadID sql.NullString
	if tid, ok := msg.ThreadID.(string); ok && tid != "" {
		threadID = sql.NullString{String: tid, Valid: true}
	}

	// Preserve the frontmatter's canonical id, when present and positive, as
	// the row's primary key so archive filenames (which embed __{id}.md)
	// stay consistent with database row ids across repeated reconstructions.
	var messageID int64
	if canonicalID, ok := canonicalMessageID(msg.ID); ok {
		if _, err := db.Exec(
			`INSERT OR REPLACE INTO messages
			 (id, project_id, sender_agent_id, thread_id, subject, body, importance, ack_required, created_ts, attachments_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			canonicalID, projectID, senderID, threadID, subject, body, importance, boolToInt(msg.AckRequired), createdTs, attachmentsJSON,
		); err != nil {
			return fmt.Errorf("insert message with id %d: %w", canonicalID, err)
		}
		messageID = canonicalID
	} else {
		res, err := db.Exec(
			`INSERT INTO messages
			 (project_id, sender_agent_id, thread_id, subject, body, importance, ack_required, created_ts, attachments_json)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			projectID, senderID, threadID, subject, body, importance, boolToInt(msg.AckRequired), createdTs, attachmentsJSON,
		)
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
		messageID, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
	}
	stats.Messages++

	for _, kindNames := range []struct {
		kind  string
		names []string
	}{
		{"to", toNames}, {"cc", ccNames}, {"bcc", bccNames},
	} {
		for _, name := range kindNames.names {
			aid, err := ensureAgentExists(db, projectID, name, agentIDs, stats)
			if err != nil {
				return err
			}
			if err := insertRecipient(db, messageID, aid, kindNames.kind); err != nil {
				return err
			}
			stats.Recipients++
		}
	}

	return nil
}

// canonicalMessageID extracts a valid positive integer id from a JSON
// frontmatter field that may have decoded as a float64.
func canonicalMessageID(v interface{}) (int64, bool) {
	f, ok := v.(float64)
	if !ok {
		return 0, false
	}
	id := int64(f)
	if id <= 0 {
		return 0, false
	}
	return id, true
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ensureAgentExists returns the id of the named agent, creating a minimal
// placeholder row when the archive never produced a profile for it (e.g. a
// recipient who never sent a message of their own).
func ensureAgentExists(db *sql.DB, projectID int64, name string, agentIDs map[agentKey]int64, stats *Stats) (int64, error) {
	key := agentKey{projectID, name}
	if id, ok := agentIDs[key]; ok {
		return id, nil
	}

	now := nowMicros()
	res, err := db.Exec(
		`INSERT OR IGNORE INTO agents
		 (project_id, name, program, model, contact_policy, inception_ts, last_active_ts)
		 VALUES (?, ?, 'unknown', 'unknown', 'auto', ?, ?)`,
		projectID, name, now, now,
	)
	if err != nil {
		return 0, searcherr.New(searcherr.IO, "archive.ensureAgentExists", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		stats.Agents++
	}

	var id int64
	if err := db.QueryRow(
		"SELECT id FROM agents WHERE project_id = ? AND name = ?", projectID, name,
	).Scan(&id); err != nil {
		return 0, searcherr.New(searcherr.IO, "archive.queryPlaceholderAgentID", err)
	}
	agentIDs[key] = id
	return id, nil
}

func insertRecipient(db *sql.DB, messageID, agentID int64, kind string) error {
	if _, err := db.Exec(
		"INSERT OR IGNORE INTO message_recipients (message_id, agent_id, kind) VALUES (?, ?, ?)",
		messageID, agentID, kind,
	); err != nil {
		return searcherr.New(searcherr.IO, "archive.insertRecipient", err)
	}
	return nil
}
