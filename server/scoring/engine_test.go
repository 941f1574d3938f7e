package scoring_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"flagarena/server/scoring"
	"flagarena/server/store/memory"
)

// newTestStore 构造带基础数据的内存账本：
// 一道静态题(ID=1, 100分)、一道动态题(ID=2, 500/50/10)，用户1~3
func newTestStore(mode scoring.Mode) *memory.Store {
	s := memory.New()
	s.SetConfig(scoring.Config{Mode: mode})

	s.AddChallenge(scoring.Challenge{
		ID: 1, Name: "warmup", Flag: "flag{hello}",
		Published: true, CurrentPoints: 100,
	})
	s.AddChallenge(scoring.Challenge{
		ID: 2, Name: "pwn-heap", Flag: "flag{heap_magic}",
		Published: true, Dynamic: true,
		CurrentPoints: 500, InitialPoints: 500, MinPoints: 50, DecayPerSolve: 10,
	})
	s.AddChallenge(scoring.Challenge{
		ID: 3, Name: "hidden", Flag: "flag{secret}",
		Published: false, CurrentPoints: 200,
	})

	for i := int64(1); i <= 3; i++ {
		s.AddUser(scoring.User{ID: i})
	}
	return s
}

func TestSubmitFlag(t *testing.T) {
	ctx := context.Background()

	t.Run("正确flag加分并记一血", func(t *testing.T) {
		s := newTestStore(scoring.ModeStatic)
		engine := scoring.NewEngine(s)

		result, err := engine.SubmitFlag(ctx, 1, 1, "flag{hello}")
		if err != nil {
			t.Fatalf("SubmitFlag() error = %v", err)
		}
		if result.Points != 100 {
			t.Errorf("Points = %d, want 100", result.Points)
		}
		if !result.FirstBlood {
			t.Error("第一个解题者应该拿到一血")
		}

		u, _ := s.User(1)
		if u.Score != 100 {
			t.Errorf("用户积分 = %d, want 100", u.Score)
		}
		ch, _ := s.Challenge(1)
		if ch.FirstBloodUID == nil || *ch.FirstBloodUID != 1 {
			t.Errorf("一血用户 = %v, want 1", ch.FirstBloodUID)
		}
	})

	t.Run("flag比对忽略首尾空白和大小写", func(t *testing.T) {
		s := newTestStore(scoring.ModeStatic)
		engine := scoring.NewEngine(s)

		if _, err := engine.SubmitFlag(ctx, 1, 1, "  FLAG{Hello}\n"); err != nil {
			t.Errorf("SubmitFlag() error = %v", err)
		}
	})

	t.Run("错误flag不改动任何状态", func(t *testing.T) {
		s := newTestStore(scoring.ModeStatic)
		engine := scoring.NewEngine(s)

		_, err := engine.SubmitFlag(ctx, 1, 1, "flag{wrong}")
		if !errors.Is(err, scoring.ErrIncorrectFlag) {
			t.Fatalf("err = %v, want ErrIncorrectFlag", err)
		}

		u, _ := s.User(1)
		if u.Score != 0 {
			t.Errorf("错误提交后积分 = %d, want 0", u.Score)
		}
		if _, ok := s.Solve(1, 1); ok {
			t.Error("错误提交不应产生解题记录")
		}
		ch, _ := s.Challenge(1)
		if ch.FirstBloodUID != nil {
			t.Error("错误提交不应记一血")
		}
	})

	t.Run("重复提交返回已解出", func(t *testing.T) {
		s := newTestStore(scoring.ModeStatic)
		engine := scoring.NewEngine(s)

		if _, err := engine.SubmitFlag(ctx, 1, 1, "flag{hello}"); err != nil {
			t.Fatalf("首次提交失败: %v", err)
		}
		// 重复提交，即使flag错误也应报已解出
		_, err := engine.SubmitFlag(ctx, 1, 1, "flag{wrong}")
		if !errors.Is(err, scoring.ErrAlreadySolved) {
			t.Errorf("err = %v, want ErrAlreadySolved", err)
		}

		u, _ := s.User(1)
		if u.Score != 100 {
			t.Errorf("重复提交后积分 = %d, want 100", u.Score)
		}
	})

	t.Run("未开放题目拒绝提交", func(t *testing.T) {
		s := newTestStore(scoring.ModeStatic)
		engine := scoring.NewEngine(s)

		_, err := engine.SubmitFlag(ctx, 1, 3, "flag{secret}")
		if !errors.Is(err, scoring.ErrChallengeNotPublished) {
			t.Errorf("err = %v, want ErrChallengeNotPublished", err)
		}
	})

	t.Run("不存在的题目", func(t *testing.T) {
		s := newTestStore(scoring.ModeStatic)
		engine := scoring.NewEngine(s)

		_, err := engine.SubmitFlag(ctx, 1, 999, "flag{hello}")
		if !errors.Is(err, scoring.ErrChallengeNotFound) {
			t.Errorf("err = %v, want ErrChallengeNotFound", err)
		}
	})

	t.Run("一血只记一次", func(t *testing.T) {
		s := newTestStore(scoring.ModeStatic)
		engine := scoring.NewEngine(s)

		r1, err := engine.SubmitFlag(ctx, 1, 1, "flag{hello}")
		if err != nil || !r1.FirstBlood {
			t.Fatalf("r1 = %+v, err = %v", r1, err)
		}
		r2, err := engine.SubmitFlag(ctx, 2, 1, "flag{hello}")
		if err != nil {
			t.Fatalf("SubmitFlag() error = %v", err)
		}
		if r2.FirstBlood {
			t.Error("第二个解题者不应拿到一血")
		}
		ch, _ := s.Challenge(1)
		if ch.FirstBloodUID == nil || *ch.FirstBloodUID != 1 {
			t.Errorf("一血用户 = %v, want 1", ch.FirstBloodUID)
		}
	})
}

func TestSubmitFlagDynamicDecay(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(scoring.ModeDynamic)
	engine := scoring.NewEngine(s)

	// 三个用户依次解出动态题，结算分值按500/490/480衰减
	want := []int{500, 490, 480}
	for i, points := range want {
		userID := int64(i + 1)
		result, err := engine.SubmitFlag(ctx, userID, 2, "flag{heap_magic}")
		if err != nil {
			t.Fatalf("用户%d提交失败: %v", userID, err)
		}
		if result.Points != points {
			t.Errorf("用户%d结算分值 = %d, want %d", userID, result.Points, points)
		}
	}

	// 当前分值已为下一个解题者预衰减
	ch, _ := s.Challenge(2)
	if ch.CurrentPoints != 470 {
		t.Errorf("当前分值 = %d, want 470", ch.CurrentPoints)
	}

	// 解题记录是结算时刻的快照
	sv, ok := s.Solve(1, 2)
	if !ok || sv.Points != 500 {
		t.Errorf("用户1解题快照 = %+v, want 500分", sv)
	}
}

// 解题快照在题目参数修改后保持不变
func TestSolveSnapshotImmutable(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(scoring.ModeDynamic)
	engine := scoring.NewEngine(s)

	if _, err := engine.SubmitFlag(ctx, 1, 2, "flag{heap_magic}"); err != nil {
		t.Fatalf("SubmitFlag() error = %v", err)
	}

	ch, _ := s.Challenge(2)
	ch.InitialPoints = 1000
	ch.CurrentPoints = 1000
	s.UpdateChallenge(ch)

	sv, _ := s.Solve(1, 2)
	if sv.Points != 500 {
		t.Errorf("修改题目后解题快照 = %d, want 500", sv.Points)
	}
	u, _ := s.User(1)
	if u.Score != 500 {
		t.Errorf("修改题目后用户积分 = %d, want 500", u.Score)
	}
}

// 同一用户并发提交同一flag，恰好一次成功
func TestSubmitFlagConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(scoring.ModeStatic)
	engine := scoring.NewEngine(s)

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.SubmitFlag(ctx, 1, 1, "flag{hello}")
		}(i)
	}
	wg.Wait()

	accepted, alreadySolved := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			accepted++
		case errors.Is(err, scoring.ErrAlreadySolved):
			alreadySolved++
		default:
			t.Errorf("意外错误: %v", err)
		}
	}
	if accepted != 1 {
		t.Errorf("成功次数 = %d, want 1", accepted)
	}
	if alreadySolved != n-1 {
		t.Errorf("已解出次数 = %d, want %d", alreadySolved, n-1)
	}

	u, _ := s.User(1)
	if u.Score != 100 {
		t.Errorf("并发提交后积分 = %d, want 100", u.Score)
	}
}

// 不同用户并发解同一道动态题，结算分值互不重复且连续衰减
func TestSubmitFlagConcurrentDistinctUsers(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(scoring.ModeDynamic)
	engine := scoring.NewEngine(s)

	const n = 8
	for i := int64(4); i <= n; i++ {
		s.AddUser(scoring.User{ID: i})
	}

	var wg sync.WaitGroup
	points := make([]int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := engine.SubmitFlag(ctx, int64(i+1), 2, "flag{heap_magic}")
			if err != nil {
				t.Errorf("用户%d提交失败: %v", i+1, err)
				return
			}
			points[i] = result.Points
		}(i)
	}
	wg.Wait()

	// 每个名次的分值恰好出现一次
	seen := make(map[int]int)
	for _, p := range points {
		seen[p]++
	}
	for i := 0; i < n; i++ {
		expected := 500 - i*10
		if seen[expected] != 1 {
			t.Errorf("分值%d出现%d次, want 1", expected, seen[expected])
		}
	}

	firstBloods := 0
	for i := int64(1); i <= n; i++ {
		sv, ok := s.Solve(i, 2)
		if !ok {
			t.Errorf("用户%d缺少解题记录", i)
			continue
		}
		if sv.Points == 500 {
			firstBloods++
		}
	}
	if firstBloods != 1 {
		t.Errorf("满分解题数 = %d, want 1", firstBloods)
	}
}

func TestSubmitFlagSolvedAt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(scoring.ModeStatic)
	engine := scoring.NewEngine(s)

	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return fixed })

	result, err := engine.SubmitFlag(ctx, 1, 1, "flag{hello}")
	if err != nil {
		t.Fatalf("SubmitFlag() error = %v", err)
	}
	if !result.SolvedAt.Equal(fixed) {
		t.Errorf("SolvedAt = %v, want %v", result.SolvedAt, fixed)
	}
}
