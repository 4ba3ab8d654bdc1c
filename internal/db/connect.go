package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

type driverInfo struct {
	name       string // database/sql driver name
	defaultDSN string
	schema     string
	maxOpen    int // 0: unlimited
}

var drivers = map[Driver]driverInfo{
	DriverSQLite: {
		name:       "sqlite",
		defaultDSN: "file:examroom.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)",
		schema:     schemaSQLite,
	},
	DriverPostgres: {
		name:       "pgx",
		defaultDSN: "postgres://localhost:5432/examroom?sslmode=disable",
		schema:     schemaPostgres,
		maxOpen:    20,
	},
}

// Open connects, pings and applies the idempotent schema for driver.
// An empty dsn selects the driver's local default.
func Open(ctx context.Context, driver Driver, dsn string) (*sql.DB, error) {
	drv, ok := drivers[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver: %s", driver)
	}
	if dsn == "" {
		dsn = drv.defaultDSN
	}
	conn, err := sql.Open(drv.name, dsn)
	if err != nil {
		return nil, err
	}
	if drv.maxOpen > 0 {
		conn.SetMaxOpenConns(drv.maxOpen)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}
	if _, err := conn.ExecContext(ctx, drv.schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply %s schema: %w", driver, err)
	}
	return conn, nil
}

const schemaSQLite = `
CREATE TABLE IF NOT EXISTS study_groups (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  is_archived INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS subjects (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  is_demo INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
  text TEXT NOT NULL,
  options_json TEXT NOT NULL,
  correct_index INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS questions_subject ON questions(subject_id);

CREATE TABLE IF NOT EXISTS modules (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  kind TEXT NOT NULL,
  points_per_answer INTEGER NOT NULL,
  duration_minutes INTEGER NOT NULL,
  passing_score INTEGER NOT NULL,
  randomize INTEGER NOT NULL DEFAULT 0,
  is_active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS module_groups (
  module_id TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
  group_id TEXT NOT NULL REFERENCES study_groups(id) ON DELETE CASCADE,
  PRIMARY KEY (module_id, group_id)
);

CREATE TABLE IF NOT EXISTS module_subject_configs (
  module_id TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
  subject_id TEXT NOT NULL REFERENCES subjects(id),
  question_count INTEGER NOT NULL,
  position INTEGER NOT NULL,
  PRIMARY KEY (module_id, subject_id)
);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL DEFAULT '',
  workplace TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  group_id TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL DEFAULT ''
);

-- no foreign keys: results outlive catalog replacement
CREATE TABLE IF NOT EXISTS test_results (
  id TEXT PRIMARY KEY,
  participant_id TEXT NOT NULL,
  module_id TEXT NOT NULL,
  group_id TEXT NOT NULL DEFAULT '',
  correct_answers INTEGER NOT NULL,
  total_questions INTEGER NOT NULL,
  score INTEGER NOT NULL,
  is_passed INTEGER NOT NULL,
  completed_at INTEGER NOT NULL, -- unix millis
  time_taken INTEGER,            -- seconds
  UNIQUE (participant_id, module_id, completed_at)
);
CREATE INDEX IF NOT EXISTS test_results_module ON test_results(module_id);

CREATE TABLE IF NOT EXISTS event_log (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at INTEGER NOT NULL
);
`

const schemaPostgres = `
CREATE TABLE IF NOT EXISTS study_groups (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  is_archived BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS subjects (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  is_demo BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS questions (
  id TEXT PRIMARY KEY,
  subject_id TEXT NOT NULL REFERENCES subjects(id) ON DELETE CASCADE,
  text TEXT NOT NULL,
  options_json TEXT NOT NULL,
  correct_index INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS questions_subject ON questions(subject_id);

CREATE TABLE IF NOT EXISTS modules (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  kind TEXT NOT NULL,
  points_per_answer INTEGER NOT NULL,
  duration_minutes INTEGER NOT NULL,
  passing_score INTEGER NOT NULL,
  randomize BOOLEAN NOT NULL DEFAULT FALSE,
  is_active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS module_groups (
  module_id TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
  group_id TEXT NOT NULL REFERENCES study_groups(id) ON DELETE CASCADE,
  PRIMARY KEY (module_id, group_id)
);

CREATE TABLE IF NOT EXISTS module_subject_configs (
  module_id TEXT NOT NULL REFERENCES modules(id) ON DELETE CASCADE,
  subject_id TEXT NOT NULL REFERENCES subjects(id),
  question_count INTEGER NOT NULL,
  position INTEGER NOT NULL,
  PRIMARY KEY (module_id, subject_id)
);

CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  username TEXT NOT NULL UNIQUE,
  full_name TEXT NOT NULL DEFAULT '',
  workplace TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL,
  group_id TEXT NOT NULL DEFAULT '',
  password_hash TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS test_results (
  id TEXT PRIMARY KEY,
  participant_id TEXT NOT NULL,
  module_id TEXT NOT NULL,
  group_id TEXT NOT NULL DEFAULT '',
  correct_answers INTEGER NOT NULL,
  total_questions INTEGER NOT NULL,
  score INTEGER NOT NULL,
  is_passed BOOLEAN NOT NULL,
  completed_at BIGINT NOT NULL,
  time_taken INTEGER,
  UNIQUE (participant_id, module_id, completed_at)
);
CREATE INDEX IF NOT EXISTS test_results_module ON test_results(module_id);

CREATE TABLE IF NOT EXISTS event_log (
  seq BIGSERIAL PRIMARY KEY,
  site_id TEXT NOT NULL DEFAULT 'local',
  typ TEXT NOT NULL,
  key TEXT NOT NULL,
  data TEXT NOT NULL,
  created_at BIGINT NOT NULL
);
`
