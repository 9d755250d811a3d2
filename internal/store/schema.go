// Package store provides the relational schema and migrations for the
// agent-mail message corpus: projects, agents, messages, recipient and
// contact links, plus the full-text and vector virtual tables that back
// search.
package store

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"agentmail-search/internal/logging"
)

// Schema versions:
// v1: core relational tables (projects, agents, messages, message_recipients,
//     agent_links, product_project_links).
// v2: FTS5 virtual tables (fts_messages, fts_agents, fts_projects).
// v3: content_hash column on messages, filled by BackfillContentHashes.
// v4: vec0 virtual tables, best-effort (requires sqlite-vec).
const CurrentSchemaVersion = 4

// MigrationResult holds the result of a migration operation.
type MigrationResult struct {
	FromVersion    int
	ToVersion      int
	MigrationsRun  int
	BackupPath     string
	HashesComputed int
	Duration       time.Duration
	Warnings       []string
}

// Migration is an additive column backfill that RunMigrations applies
// whatever the recorded schema version, to tolerate databases whose core
// tables came from an older build of MigrateV0ToV1. RunAllMigrations calls
// RunMigrations only after it has run at least one version step.
type Migration struct {
	Table  string
	Column string
	Def    string
}

var pendingMigrations = []Migration{
	{"agents", "last_active_ts", "INTEGER"},
	{"message_recipients", "read_ts", "INTEGER"},
	{"message_recipients", "ack_ts", "INTEGER"},
	{"agent_links", "expires_ts", "INTEGER"},
	{"messages", "attachments_json", "TEXT DEFAULT '[]'"},
}

// RunMigrations applies additive column migrations for existing databases.
func RunMigrations(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStorage, "RunMigrations")
	defer timer.Stop()

	logging.Storage("Running schema migrations (%d pending)", len(pendingMigrations))

	applied, skipped := 0, 0
	for _, m := range pendingMigrations {
		if !tableExists(db, m.Table) {
			skipped++
			continue
		}
		if columnExists(db, m.Table, m.Column) {
			skipped++
			continue
		}

		query := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", m.Table, m.Column, m.Def)
		if _, err := db.Exec(query); err != nil {
			logging.Get(logging.CategoryStorage).Warn("Migration failed (may already exist): %s.%s: %v", m.Table, m.Column, err)
			skipped++
			continue
		}
		logging.Storage("Migration applied: added %s.%s", m.Table, m.Column)
		applied++
	}

	logging.Storage("Schema migrations complete: applied=%d, skipped=%d", applied, skipped)
	return nil
}

func columnExists(db *sql.DB, table, column string) bool {
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false
	}
	defer rows.Close()

	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue interface{}
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			continue
		}
		if name == column {
			return true
		}
	}
	return false
}

func tableExists(db *sql.DB, table string) bool {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type IN ('table','view') AND name=?", table).Scan(&count)
	return err == nil && count > 0
}

// GetSchemaVersion returns the current schema version, inferring it from
// table structure when no schema_versions record exists.
func GetSchemaVersion(db *sql.DB) int {
	if tableExists(db, "schema_versions") {
		var version int
		if err := db.QueryRow("SELECT version FROM schema_versions ORDER BY applied_at DESC LIMIT 1").Scan(&version); err == nil {
			return version
		}
	}
	return inferSchemaVersion(db)
}

func inferSchemaVersion(db *sql.DB) int {
	if !tableExists(db, "messages") {
		return 0
	}
	if tableExists(db, "vec_messages") {
		return 4
	}
	if columnExists(db, "messages", "content_hash") {
		return 3
	}
	if tableExists(db, "fts_messages") {
		return 2
	}
	return 1
}

// SetSchemaVersion records a new schema version.
func SetSchemaVersion(db *sql.DB, version int) error {
	createTable := `
		CREATE TABLE IF NOT EXISTS schema_versions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			description TEXT
		)
	`
	if _, err := db.Exec(createTable); err != nil {
		return fmt.Errorf("failed to create schema_versions table: %w", err)
	}

	desc := fmt.Sprintf("Migrated to schema version %d", version)
	if _, err := db.Exec("INSERT INTO schema_versions (version, description) VALUES (?, ?)", version, desc); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	logging.Storage("Schema version set to %d", version)
	return nil
}

// MigrateV0ToV1 creates the core relational tables.
func MigrateV0ToV1(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStorage, "MigrateV0ToV1")
	defer timer.Stop()

	statements := []string{
		`CREATE TABLE IF NOT EXISTS projects (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			slug TEXT NOT NULL UNIQUE,
			human_key TEXT NOT NULL,
			created_ts INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS agents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL REFERENCES projects(id),
			name TEXT NOT NULL,
			program TEXT,
			model TEXT,
			contact_policy TEXT NOT NULL DEFAULT 'open',
			inception_ts INTEGER,
			last_active_ts INTEGER,
			UNIQUE(project_id, name)
		)`,
		`CREATE TABLE IF NOT EXISTS messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id INTEGER NOT NULL REFERENCES projects(id),
			sender_agent_id INTEGER NOT NULL REFERENCES agents(id),
			thread_id INTEGER,
			subject TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT '',
			importance TEXT NOT NULL DEFAULT 'normal',
			ack_required INTEGER NOT NULL DEFAULT 0,
			created_ts INTEGER NOT NULL,
			attachments_json TEXT NOT NULL DEFAULT '[]'
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_project_created ON messages(project_id, created_ts)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id)`,
		`CREATE TABLE IF NOT EXISTS message_recipients (
			message_id INTEGER NOT NULL REFERENCES messages(id),
			agent_id INTEGER NOT NULL REFERENCES agents(id),
			kind TEXT NOT NULL,
			read_ts INTEGER,
			ack_ts INTEGER,
			PRIMARY KEY (message_id, agent_id, kind)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recipients_agent ON message_recipients(agent_id)`,
		`CREATE TABLE IF NOT EXISTS agent_links (
			a_agent_id INTEGER NOT NULL REFERENCES agents(id),
			b_agent_id INTEGER NOT NULL REFERENCES agents(id),
			status TEXT NOT NULL DEFAULT 'pending',
			expires_ts INTEGER,
			PRIMARY KEY (a_agent_id, b_agent_id)
		)`,
		`CREATE TABLE IF NOT EXISTS product_project_links (
			product_id INTEGER NOT NULL,
			project_id INTEGER NOT NULL REFERENCES projects(id),
			PRIMARY KEY (product_id, project_id)
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to apply core schema statement: %w", err)
		}
	}

	if err := EnsureEmbeddingsTable(db); err != nil {
		return err
	}

	logging.Storage("Core relational tables ensured")
	return nil
}

// MigrateV1ToV2 creates the FTS5 virtual tables backing full-text search.
func MigrateV1ToV2(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStorage, "MigrateV1ToV2")
	defer timer.Stop()

	statements := []string{
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_messages USING fts5(subject, body, content='messages', content_rowid='id')`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_agents USING fts5(name, program, content='agents', content_rowid='id')`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS fts_projects USING fts5(slug, human_key, content='projects', content_rowid='id')`,
	}
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create FTS5 virtual table: %w", err)
		}
	}

	logging.Storage("FTS5 virtual tables created")
	return nil
}

// MigrateV2ToV3 adds the content_hash column to messages. The embedding
// lifecycle's skip-if-unchanged check reads the embeddings table's own
// content_hash, not this column.
func MigrateV2ToV3(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStorage, "MigrateV2ToV3")
	defer timer.Stop()

	if columnExists(db, "messages", "content_hash") {
		return nil
	}
	if _, err := db.Exec("ALTER TABLE messages ADD COLUMN content_hash TEXT"); err != nil {
		return fmt.Errorf("failed to add content_hash column: %w", err)
	}
	if _, err := db.Exec("CREATE INDEX IF NOT EXISTS idx_messages_content_hash ON messages(content_hash)"); err != nil {
		logging.Get(logging.CategoryStorage).Warn("Failed to create content_hash index: %v", err)
	}

	logging.Storage("Added content_hash column to messages")
	return nil
}

// MigrateV3ToV4 creates the vec0 virtual tables used for semantic rerank
// candidates. Best-effort: sqlite-vec may be unavailable, in which case
// EmbedStore.SemanticSearch falls back to brute-force cosine similarity
// over the embeddings table.
func MigrateV3ToV4(db *sql.DB) error {
	timer := logging.StartTimer(logging.CategoryStorage, "MigrateV3ToV4")
	defer timer.Stop()

	if err := EnsureVecTables(db, 768); err != nil {
		logging.Get(logging.CategoryStorage).Warn("vec0 tables unavailable, semantic search degrades to brute-force cosine: %v", err)
	}
	return nil
}

// EnsureVecTables creates the vec0 virtual tables sized to dimension. Safe
// to call more than once; existing tables are left untouched even if the
// requested dimension differs, since vec0 tables are not resizable in place.
func EnsureVecTables(db *sql.DB, dimension int) error {
	tables := []string{"vec_messages", "vec_agents", "vec_projects"}
	for _, t := range tables {
		if tableExists(db, t) {
			continue
		}
		query := fmt.Sprintf("CREATE VIRTUAL TABLE IF NOT EXISTS %s USING vec0(embedding float[%d])", t, dimension)
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("failed to create %s: %w", t, err)
		}
	}
	return nil
}

// ComputeContentHash hashes a message's raw subject and body, joined by a
// NUL byte, with SHA-256. It is not the same value as embedding.ContentHash,
// which hashes the canonicalized document text.
func ComputeContentHash(subject, body string) string {
	sum := sha256.Sum256([]byte(subject + "\x00" + body))
	return hex.EncodeToString(sum[:])
}

// BackfillContentHashes computes content_hash for every message missing one.
func BackfillContentHashes(db *sql.DB) (int, error) {
	timer := logging.StartTimer(logging.CategoryStorage, "BackfillContentHashes")
	defer timer.Stop()

	rows, err := db.Query("SELECT id, subject, body FROM messages WHERE content_hash IS NULL OR content_hash = ''")
	if err != nil {
		return 0, fmt.Errorf("failed to query messages for hash backfill: %w", err)
	}
	defer rows.Close()

	updated := 0
	for rows.Next() {
		var id int64
		var subject, body string
		if err := rows.Scan(&id, &subject, &body); err != nil {
			continue
		}
		hash := ComputeContentHash(subject, body)
		if _, err := db.Exec("UPDATE messages SET content_hash = ? WHERE id = ?", hash, id); err != nil {
			logging.Get(logging.CategoryStorage).Warn("Failed to update content_hash for message %d: %v", id, err)
			continue
		}
		updated++
	}
	if err := rows.Err(); err != nil {
		return updated, fmt.Errorf("error iterating messages: %w", err)
	}

	logging.Storage("Backfilled content hashes for %d messages", updated)
	return updated, nil
}

// CreateBackup copies the database file to a timestamped sibling path.
func CreateBackup(dbPath string) (string, error) {
	timer := logging.StartTimer(logging.CategoryStorage, "CreateBackup")
	defer timer.Stop()

	backupPath := dbPath + fmt.Sprintf(".backup_%s", time.Now().Format("20060102_150405"))

	src, err := os.Open(dbPath)
	if err != nil {
		return "", fmt.Errorf("failed to open source database: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(backupPath)
	if err != nil {
		return "", fmt.Errorf("failed to create backup file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return "", fmt.Errorf("failed to copy database to backup: %w", err)
	}
	if err := dst.Sync(); err != nil {
		return "", fmt.Errorf("failed to sync backup to disk: %w", err)
	}

	logging.Storage("Database backup created: %s", backupPath)
	return backupPath, nil
}

// RestoreBackup overwrites dbPath with the contents of backupPath.
func RestoreBackup(dbPath, backupPath string) error {
	timer := logging.StartTimer(logging.CategoryStorage, "RestoreBackup")
	defer timer.Stop()

	src, err := os.Open(backupPath)
	if err != nil {
		return fmt.Errorf("failed to open backup file: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dbPath)
	if err != nil {
		return fmt.Errorf("failed to create database file: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("failed to restore from backup: %w", err)
	}
	return dst.Sync()
}

// RunAllMigrations brings an open database up to targetVersion, taking a
// pre-migration backup and restoring it if any step fails.
func RunAllMigrations(db *sql.DB, dbPath string, targetVersion int) (*MigrationResult, error) {
	timer := logging.StartTimer(logging.CategoryStorage, "RunAllMigrations")
	defer timer.Stop()

	start := time.Now()
	result := &MigrationResult{Warnings: make([]string, 0)}

	currentVersion := GetSchemaVersion(db)
	result.FromVersion = currentVersion
	result.ToVersion = targetVersion

	if currentVersion >= targetVersion {
		result.Duration = time.Since(start)
		return result, nil
	}

	var backupPath string
	if currentVersion > 0 {
		bp, err := CreateBackup(dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create backup: %w", err)
		}
		backupPath = bp
		result.BackupPath = backupPath
	}

	migrationSuccess := false
	defer func() {
		if !migrationSuccess && backupPath != "" {
			logging.Get(logging.CategoryStorage).Warn("Migration failed, restoring from backup")
			if err := RestoreBackup(dbPath, backupPath); err != nil {
				logging.Get(logging.CategoryStorage).Error("Failed to restore backup after migration failure: %v", err)
			}
		}
	}()

	for v := currentVersion; v < targetVersion; v++ {
		next := v + 1
		var err error
		switch next {
		case 1:
			err = MigrateV0ToV1(db)
		case 2:
			err = MigrateV1ToV2(db)
		case 3:
			err = MigrateV2ToV3(db)
		case 4:
			err = MigrateV3ToV4(db)
		default:
			err = fmt.Errorf("unknown migration: v%d -> v%d", v, next)
		}
		if err != nil {
			return nil, fmt.Errorf("migration v%d -> v%d failed: %w", v, next, err)
		}
		result.MigrationsRun++
	}

	migrationSuccess = true

	if err := SetSchemaVersion(db, targetVersion); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("failed to record schema version: %v", err))
	}
	if err := RunMigrations(db); err != nil {
		result.Warnings = append(result.Warnings, fmt.Sprintf("additive migrations had issues: %v", err))
	}

	if targetVersion >= 3 && currentVersion < 3 {
		hashCount, err := BackfillContentHashes(db)
		if err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("hash backfill had issues: %v", err))
		}
		result.HashesComputed = hashCount
	}

	result.Duration = time.Since(start)
	logging.Storage("Migration complete: v%d -> v%d in %v (migrations=%d, hashes=%d)",
		currentVersion, targetVersion, result.Duration, result.MigrationsRun, result.HashesComputed)
	return result, nil
}

// EnsureSchema is the main entry point: migrates the already-open db to
// CurrentSchemaVersion. dbPath names its file, for the pre-migration backup.
func EnsureSchema(db *sql.DB, dbPath string) (*MigrationResult, error) {
	return RunAllMigrations(db, dbPath, CurrentSchemaVersion)
}

// CheckMigrationNeeded reports whether db requires migration without
// mutating it.
func CheckMigrationNeeded(db *sql.DB) (bool, int) {
	currentVersion := GetSchemaVersion(db)
	return currentVersion < CurrentSchemaVersion, currentVersion
}
