// Package memory 提供进程内的账本存储实现。
//
// 互斥锁整体串行化事务，写操作先暂存、提交时一次性应用，
// 事务函数返回错误时所有暂存写入直接丢弃，等价于回滚。
// 用于测试和无数据库的本地运行。
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flagarena/server/scoring"
)

type solveKey struct{ userID, challengeID int64 }
type unlockKey struct{ userID, hintID int64 }

// Store 进程内账本
type Store struct {
	mu sync.Mutex

	config     scoring.Config
	users      map[int64]*scoring.User
	teams      map[int64]string
	challenges map[int64]*scoring.Challenge
	hints      map[int64]*scoring.Hint
	solves     map[solveKey]*scoring.Solve
	unlocks    map[unlockKey]*scoring.UnlockedHint

	nextSolveID  int64
	nextUnlockID int64

	// 测试钩子：固定时间源，为空时用 time.Now
	now func() time.Time
}

func New() *Store {
	return &Store{
		config:     scoring.Config{Mode: scoring.ModeStatic},
		users:      make(map[int64]*scoring.User),
		teams:      make(map[int64]string),
		challenges: make(map[int64]*scoring.Challenge),
		hints:      make(map[int64]*scoring.Hint),
		solves:     make(map[solveKey]*scoring.Solve),
		unlocks:    make(map[unlockKey]*scoring.UnlockedHint),
	}
}

func (s *Store) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

// SetClock 设置固定时间源（测试用）
func (s *Store) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ========== 测试与管理端的数据装载 ==========

func (s *Store) SetConfig(cfg scoring.Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config = cfg
}

func (s *Store) AddTeam(id int64, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teams[id] = name
}

func (s *Store) AddUser(u scoring.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = &u
}

func (s *Store) AddChallenge(ch scoring.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.challenges[ch.ID] = &ch
}

func (s *Store) AddHint(h scoring.Hint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hints[h.ID] = &h
}

// User 读取用户当前状态的副本
func (s *Store) User(id int64) (scoring.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return scoring.User{}, false
	}
	return *u, true
}

// Challenge 读取题目当前状态的副本
func (s *Store) Challenge(id int64) (scoring.Challenge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.challenges[id]
	if !ok {
		return scoring.Challenge{}, false
	}
	return *ch, true
}

// Solve 读取解题记录的副本
func (s *Store) Solve(userID, challengeID int64) (scoring.Solve, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sv, ok := s.solves[solveKey{userID, challengeID}]
	if !ok {
		return scoring.Solve{}, false
	}
	return *sv, true
}

// UpdateChallenge 管理端修改题目参数（显式调用，无保存钩子）
func (s *Store) UpdateChallenge(ch scoring.Challenge) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.challenges[ch.ID]; ok {
		ch.FirstBloodUID = cur.FirstBloodUID
		s.challenges[ch.ID] = &ch
	}
}

// ========== scoring.Store 实现 ==========

// InTx 串行执行事务；fn 出错时暂存写入全部丢弃
func (s *Store) InTx(ctx context.Context, fn func(tx scoring.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{store: s}
	if err := fn(tx); err != nil {
		return err
	}
	tx.apply()
	return nil
}

// Standings 在锁内聚合，天然是单一快照
func (s *Store) Standings(ctx context.Context) ([]scoring.TeamStanding, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	standings := make([]scoring.TeamStanding, 0, len(s.teams))
	for teamID, name := range s.teams {
		st := scoring.TeamStanding{TeamID: teamID, TeamName: name}
		for _, u := range s.users {
			if u.TeamID == nil || *u.TeamID != teamID {
				continue
			}
			st.TotalScore += u.Score
			for key, sv := range s.solves {
				if key.userID != u.ID {
					continue
				}
				st.SolveCount++
				if st.LastSolveAt == nil || sv.SolvedAt.After(*st.LastSolveAt) {
					t := sv.SolvedAt
					st.LastSolveAt = &t
				}
			}
		}
		standings = append(standings, st)
	}
	return standings, nil
}

// memTx 单个事务的暂存写入
type memTx struct {
	store *Store

	newSolves     map[solveKey]*scoring.Solve
	newUnlocks    map[unlockKey]*scoring.UnlockedHint
	scoreDeltas   map[int64]int
	firstBloods   map[int64]int64
	pointsUpdates map[int64]int
}

func (tx *memTx) apply() {
	s := tx.store
	for key, sv := range tx.newSolves {
		s.nextSolveID++
		sv.ID = s.nextSolveID
		s.solves[key] = sv
	}
	for key, ul := range tx.newUnlocks {
		s.nextUnlockID++
		ul.ID = s.nextUnlockID
		s.unlocks[key] = ul
	}
	for userID, delta := range tx.scoreDeltas {
		if u, ok := s.users[userID]; ok {
			u.Score += delta
		}
	}
	for chID, userID := range tx.firstBloods {
		if ch, ok := s.challenges[chID]; ok && ch.FirstBloodUID == nil {
			uid := userID
			ch.FirstBloodUID = &uid
		}
	}
	for chID, points := range tx.pointsUpdates {
		if ch, ok := s.challenges[chID]; ok {
			ch.CurrentPoints = points
		}
	}
}

func (tx *memTx) Config() (scoring.Config, error) {
	return tx.store.config, nil
}

func (tx *memTx) ChallengeForUpdate(id int64) (*scoring.Challenge, error) {
	ch, ok := tx.store.challenges[id]
	if !ok {
		return nil, scoring.ErrChallengeNotFound
	}
	copied := *ch
	return &copied, nil
}

func (tx *memTx) UserForUpdate(id int64) (*scoring.User, error) {
	u, ok := tx.store.users[id]
	if !ok {
		return nil, fmt.Errorf("user %d not found", id)
	}
	copied := *u
	if delta, ok := tx.scoreDeltas[id]; ok {
		copied.Score += delta
	}
	return &copied, nil
}

func (tx *memTx) HintByID(id int64) (*scoring.Hint, error) {
	h, ok := tx.store.hints[id]
	if !ok {
		return nil, scoring.ErrHintNotFound
	}
	copied := *h
	return &copied, nil
}

func (tx *memTx) HasSolve(userID, challengeID int64) (bool, error) {
	key := solveKey{userID, challengeID}
	if _, ok := tx.newSolves[key]; ok {
		return true, nil
	}
	_, ok := tx.store.solves[key]
	return ok, nil
}

func (tx *memTx) CountSolves(challengeID int64) (int, error) {
	count := 0
	for key := range tx.store.solves {
		if key.challengeID == challengeID {
			count++
		}
	}
	for key := range tx.newSolves {
		if key.challengeID == challengeID {
			count++
		}
	}
	return count, nil
}

func (tx *memTx) InsertSolve(userID, challengeID int64, points int) (time.Time, error) {
	key := solveKey{userID, challengeID}
	if _, ok := tx.store.solves[key]; ok {
		return time.Time{}, scoring.ErrAlreadySolved
	}
	if _, ok := tx.newSolves[key]; ok {
		return time.Time{}, scoring.ErrAlreadySolved
	}
	if tx.newSolves == nil {
		tx.newSolves = make(map[solveKey]*scoring.Solve)
	}
	now := tx.store.clock()
	tx.newSolves[key] = &scoring.Solve{
		UserID:      userID,
		ChallengeID: challengeID,
		Points:      points,
		SolvedAt:    now,
	}
	return now, nil
}

func (tx *memTx) AddScore(userID int64, delta int) error {
	if tx.scoreDeltas == nil {
		tx.scoreDeltas = make(map[int64]int)
	}
	tx.scoreDeltas[userID] += delta
	return nil
}

func (tx *memTx) SetFirstBlood(challengeID, userID int64) error {
	if tx.firstBloods == nil {
		tx.firstBloods = make(map[int64]int64)
	}
	if _, ok := tx.firstBloods[challengeID]; !ok {
		tx.firstBloods[challengeID] = userID
	}
	return nil
}

func (tx *memTx) SetCurrentPoints(challengeID int64, points int) error {
	if tx.pointsUpdates == nil {
		tx.pointsUpdates = make(map[int64]int)
	}
	tx.pointsUpdates[challengeID] = points
	return nil
}

func (tx *memTx) HasUnlock(userID, hintID int64) (bool, error) {
	key := unlockKey{userID, hintID}
	if _, ok := tx.newUnlocks[key]; ok {
		return true, nil
	}
	_, ok := tx.store.unlocks[key]
	return ok, nil
}

func (tx *memTx) InsertUnlock(userID, hintID int64) (time.Time, error) {
	key := unlockKey{userID, hintID}
	if _, ok := tx.store.unlocks[key]; ok {
		return time.Time{}, scoring.ErrAlreadyUnlocked
	}
	if _, ok := tx.newUnlocks[key]; ok {
		return time.Time{}, scoring.ErrAlreadyUnlocked
	}
	if tx.newUnlocks == nil {
		tx.newUnlocks = make(map[unlockKey]*scoring.UnlockedHint)
	}
	now := tx.store.clock()
	tx.newUnlocks[key] = &scoring.UnlockedHint{
		UserID:     userID,
		HintID:     hintID,
		UnlockedAt: now,
	}
	return now, nil
}
