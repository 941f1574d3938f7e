package postgres

import "database/sql"

// 建表语句按依赖顺序执行。唯一约束的名字被错误映射依赖，
// 不要改名（见 translateErr）。
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS teams (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGSERIAL PRIMARY KEY,
		username TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL DEFAULT 'user',
		score INTEGER NOT NULL DEFAULT 0,
		team_id BIGINT REFERENCES teams(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS challenges (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL,
		flag TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		published BOOLEAN NOT NULL DEFAULT FALSE,
		dynamic BOOLEAN NOT NULL DEFAULT FALSE,
		current_points INTEGER NOT NULL DEFAULT 0,
		initial_points INTEGER NOT NULL DEFAULT 0,
		min_points INTEGER NOT NULL DEFAULT 0,
		decay_per_solve INTEGER NOT NULL DEFAULT 0,
		first_blood_user_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS solves (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		challenge_id BIGINT NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
		points INTEGER NOT NULL,
		solved_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT solves_user_challenge_key UNIQUE (user_id, challenge_id)
	)`,
	`CREATE TABLE IF NOT EXISTS hints (
		id BIGSERIAL PRIMARY KEY,
		challenge_id BIGINT NOT NULL REFERENCES challenges(id) ON DELETE CASCADE,
		content TEXT NOT NULL,
		cost INTEGER NOT NULL DEFAULT 0 CHECK (cost >= 0),
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS unlocked_hints (
		id BIGSERIAL PRIMARY KEY,
		user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		hint_id BIGINT NOT NULL REFERENCES hints(id) ON DELETE CASCADE,
		unlocked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		CONSTRAINT unlocked_hints_user_hint_key UNIQUE (user_id, hint_id)
	)`,
	`CREATE TABLE IF NOT EXISTS scoring_config (
		id SMALLINT PRIMARY KEY CHECK (id = 1),
		mode TEXT NOT NULL DEFAULT 'static',
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`INSERT INTO scoring_config (id, mode) VALUES (1, 'static')
		ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS system_logs (
		id BIGSERIAL PRIMARY KEY,
		type TEXT NOT NULL,
		level TEXT NOT NULL,
		user_id BIGINT,
		challenge_id BIGINT,
		hint_id BIGINT,
		message TEXT NOT NULL,
		details JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_solves_challenge ON solves(challenge_id)`,
	`CREATE INDEX IF NOT EXISTS idx_unlocked_hints_user ON unlocked_hints(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_system_logs_created ON system_logs(created_at)`,
}

func migrate(db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
