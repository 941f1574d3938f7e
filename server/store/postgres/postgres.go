// Package postgres 实现基于 PostgreSQL 的账本存储。
//
// 行级锁串行化同一题目/同一用户上的并发写入，(user, challenge)
// 和 (user, hint) 的唯一约束兜底重复写入，瞬时冲突统一映射为
// scoring.ErrConflict 交给引擎重试。
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"flagarena/server/scoring"
)

// Store PostgreSQL账本
type Store struct {
	db *sql.DB
}

// Open 连接数据库并执行建表迁移
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// DB 暴露底层连接给管理端CRUD使用
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) Close() error {
	return s.db.Close()
}

// InTx 在单个数据库事务内执行 fn，fn 出错时回滚
func (s *Store) InTx(ctx context.Context, fn func(tx scoring.Tx) error) error {
	dbTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateErr(err)
	}
	defer dbTx.Rollback()

	if err := fn(&pgTx{ctx: ctx, tx: dbTx}); err != nil {
		return translateErr(err)
	}
	if err := dbTx.Commit(); err != nil {
		return translateErr(err)
	}
	return nil
}

// Standings 聚合所有队伍的总分与最后解题时间。
// 单条语句在同一个快照内完成，队伍内的积分与时间一致。
func (s *Store) Standings(ctx context.Context) ([]scoring.TeamStanding, error) {
	rows, err := s.db.QueryContext(ctx, `
		WITH member_scores AS (
			SELECT team_id, SUM(score) AS total
			FROM users
			WHERE team_id IS NOT NULL
			GROUP BY team_id
		),
		member_solves AS (
			SELECT u.team_id, COUNT(*) AS solve_count, MAX(s.solved_at) AS last_solve
			FROM solves s
			JOIN users u ON u.id = s.user_id
			WHERE u.team_id IS NOT NULL
			GROUP BY u.team_id
		)
		SELECT t.id, t.name,
		       COALESCE(ms.total, 0),
		       COALESCE(sv.solve_count, 0),
		       sv.last_solve
		FROM teams t
		LEFT JOIN member_scores ms ON ms.team_id = t.id
		LEFT JOIN member_solves sv ON sv.team_id = t.id`)
	if err != nil {
		return nil, translateErr(err)
	}
	defer rows.Close()

	var standings []scoring.TeamStanding
	for rows.Next() {
		var st scoring.TeamStanding
		var lastSolve sql.NullTime
		if err := rows.Scan(&st.TeamID, &st.TeamName, &st.TotalScore, &st.SolveCount, &lastSolve); err != nil {
			return nil, err
		}
		if lastSolve.Valid {
			t := lastSolve.Time
			st.LastSolveAt = &t
		}
		standings = append(standings, st)
	}
	return standings, rows.Err()
}

// pgTx scoring.Tx 的数据库实现
type pgTx struct {
	ctx context.Context
	tx  *sql.Tx
}

func (t *pgTx) Config() (scoring.Config, error) {
	cfg := scoring.Config{Mode: scoring.ModeStatic}
	var mode string
	err := t.tx.QueryRowContext(t.ctx, `SELECT mode FROM scoring_config WHERE id = 1`).Scan(&mode)
	if err == sql.ErrNoRows {
		return cfg, nil
	}
	if err != nil {
		return cfg, err
	}
	cfg.Mode = scoring.Mode(mode)
	return cfg, nil
}

func (t *pgTx) ChallengeForUpdate(id int64) (*scoring.Challenge, error) {
	var ch scoring.Challenge
	var firstBlood sql.NullInt64
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT id, name, flag, description, published, dynamic,
		       current_points, initial_points, min_points, decay_per_solve,
		       first_blood_user_id
		FROM challenges WHERE id = $1
		FOR UPDATE`, id).Scan(
		&ch.ID, &ch.Name, &ch.Flag, &ch.Description, &ch.Published, &ch.Dynamic,
		&ch.CurrentPoints, &ch.InitialPoints, &ch.MinPoints, &ch.DecayPerSolve,
		&firstBlood)
	if err == sql.ErrNoRows {
		return nil, scoring.ErrChallengeNotFound
	}
	if err != nil {
		return nil, err
	}
	if firstBlood.Valid {
		uid := firstBlood.Int64
		ch.FirstBloodUID = &uid
	}
	return &ch, nil
}

func (t *pgTx) UserForUpdate(id int64) (*scoring.User, error) {
	var u scoring.User
	var teamID sql.NullInt64
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT id, username, score, team_id FROM users WHERE id = $1
		FOR UPDATE`, id).Scan(&u.ID, &u.Username, &u.Score, &teamID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	if teamID.Valid {
		tid := teamID.Int64
		u.TeamID = &tid
	}
	return &u, nil
}

func (t *pgTx) HintByID(id int64) (*scoring.Hint, error) {
	var h scoring.Hint
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT id, challenge_id, content, cost FROM hints WHERE id = $1`, id).
		Scan(&h.ID, &h.ChallengeID, &h.Content, &h.Cost)
	if err == sql.ErrNoRows {
		return nil, scoring.ErrHintNotFound
	}
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func (t *pgTx) HasSolve(userID, challengeID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT EXISTS (SELECT 1 FROM solves WHERE user_id = $1 AND challenge_id = $2)`,
		userID, challengeID).Scan(&exists)
	return exists, err
}

func (t *pgTx) CountSolves(challengeID int64) (int, error) {
	var count int
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT COUNT(*) FROM solves WHERE challenge_id = $1`, challengeID).Scan(&count)
	return count, err
}

func (t *pgTx) InsertSolve(userID, challengeID int64, points int) (time.Time, error) {
	var solvedAt time.Time
	err := t.tx.QueryRowContext(t.ctx, `
		INSERT INTO solves (user_id, challenge_id, points) VALUES ($1, $2, $3)
		RETURNING solved_at`, userID, challengeID, points).Scan(&solvedAt)
	if err != nil {
		return time.Time{}, err
	}
	return solvedAt, nil
}

func (t *pgTx) AddScore(userID int64, delta int) error {
	res, err := t.tx.ExecContext(t.ctx, `
		UPDATE users SET score = score + $1, updated_at = NOW() WHERE id = $2`, delta, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("user %d not found", userID)
	}
	return nil
}

func (t *pgTx) SetFirstBlood(challengeID, userID int64) error {
	// 一血只写一次：已设置时 WHERE 条件不命中，静默跳过
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE challenges SET first_blood_user_id = $1, updated_at = NOW()
		WHERE id = $2 AND first_blood_user_id IS NULL`, userID, challengeID)
	return err
}

func (t *pgTx) SetCurrentPoints(challengeID int64, points int) error {
	_, err := t.tx.ExecContext(t.ctx, `
		UPDATE challenges SET current_points = $1, updated_at = NOW() WHERE id = $2`,
		points, challengeID)
	return err
}

func (t *pgTx) HasUnlock(userID, hintID int64) (bool, error) {
	var exists bool
	err := t.tx.QueryRowContext(t.ctx, `
		SELECT EXISTS (SELECT 1 FROM unlocked_hints WHERE user_id = $1 AND hint_id = $2)`,
		userID, hintID).Scan(&exists)
	return exists, err
}

func (t *pgTx) InsertUnlock(userID, hintID int64) (time.Time, error) {
	var unlockedAt time.Time
	err := t.tx.QueryRowContext(t.ctx, `
		INSERT INTO unlocked_hints (user_id, hint_id) VALUES ($1, $2)
		RETURNING unlocked_at`, userID, hintID).Scan(&unlockedAt)
	if err != nil {
		return time.Time{}, err
	}
	return unlockedAt, nil
}

// translateErr 把数据库错误映射为计分引擎的错误类型
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			switch pgErr.ConstraintName {
			case "solves_user_challenge_key":
				return scoring.ErrAlreadySolved
			case "unlocked_hints_user_hint_key":
				return scoring.ErrAlreadyUnlocked
			}
		case "40001", "40P01": // serialization_failure / deadlock_detected
			return scoring.ErrConflict
		}
	}
	return err
}
