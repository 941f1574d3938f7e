package scoring_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"flagarena/server/scoring"
	"flagarena/server/store/memory"
)

func newHintStore() *memory.Store {
	s := memory.New()
	s.AddChallenge(scoring.Challenge{
		ID: 1, Name: "crypto-rsa", Flag: "flag{rsa}",
		Published: true, CurrentPoints: 200,
	})
	s.AddHint(scoring.Hint{ID: 1, ChallengeID: 1, Content: "看看e的大小", Cost: 30})
	s.AddHint(scoring.Hint{ID: 2, ChallengeID: 1, Content: "共模攻击", Cost: 50})
	return s
}

func TestUnlockHint(t *testing.T) {
	ctx := context.Background()

	t.Run("积分足够时扣费解锁", func(t *testing.T) {
		s := newHintStore()
		s.AddUser(scoring.User{ID: 1, Score: 100})
		engine := scoring.NewEngine(s)

		result, err := engine.UnlockHint(ctx, 1, 1)
		if err != nil {
			t.Fatalf("UnlockHint() error = %v", err)
		}
		if result.Cost != 30 {
			t.Errorf("Cost = %d, want 30", result.Cost)
		}
		if result.Balance != 70 {
			t.Errorf("Balance = %d, want 70", result.Balance)
		}

		u, _ := s.User(1)
		if u.Score != 70 {
			t.Errorf("解锁后积分 = %d, want 70", u.Score)
		}
	})

	t.Run("积分不足拒绝且不扣费", func(t *testing.T) {
		s := newHintStore()
		s.AddUser(scoring.User{ID: 1, Score: 25})
		engine := scoring.NewEngine(s)

		_, err := engine.UnlockHint(ctx, 1, 1)
		if !errors.Is(err, scoring.ErrInsufficientScore) {
			t.Fatalf("err = %v, want ErrInsufficientScore", err)
		}

		u, _ := s.User(1)
		if u.Score != 25 {
			t.Errorf("拒绝后积分 = %d, want 25", u.Score)
		}
	})

	t.Run("积分刚好够时扣到零", func(t *testing.T) {
		s := newHintStore()
		s.AddUser(scoring.User{ID: 1, Score: 30})
		engine := scoring.NewEngine(s)

		result, err := engine.UnlockHint(ctx, 1, 1)
		if err != nil {
			t.Fatalf("UnlockHint() error = %v", err)
		}
		if result.Balance != 0 {
			t.Errorf("Balance = %d, want 0", result.Balance)
		}
	})

	t.Run("重复解锁不再扣费", func(t *testing.T) {
		s := newHintStore()
		s.AddUser(scoring.User{ID: 1, Score: 100})
		engine := scoring.NewEngine(s)

		if _, err := engine.UnlockHint(ctx, 1, 1); err != nil {
			t.Fatalf("首次解锁失败: %v", err)
		}
		_, err := engine.UnlockHint(ctx, 1, 1)
		if !errors.Is(err, scoring.ErrAlreadyUnlocked) {
			t.Errorf("err = %v, want ErrAlreadyUnlocked", err)
		}

		u, _ := s.User(1)
		if u.Score != 70 {
			t.Errorf("重复解锁后积分 = %d, want 70", u.Score)
		}
	})

	t.Run("不存在的提示", func(t *testing.T) {
		s := newHintStore()
		s.AddUser(scoring.User{ID: 1, Score: 100})
		engine := scoring.NewEngine(s)

		_, err := engine.UnlockHint(ctx, 1, 999)
		if !errors.Is(err, scoring.ErrHintNotFound) {
			t.Errorf("err = %v, want ErrHintNotFound", err)
		}
	})
}

// 同一用户并发解锁两个提示，余额不足时只成功一个，不允许超支
func TestUnlockHintConcurrentNoOverspend(t *testing.T) {
	ctx := context.Background()
	s := newHintStore()
	// 30 + 50 = 80 > 60，两个都解锁会超支
	s.AddUser(scoring.User{ID: 1, Score: 60})
	engine := scoring.NewEngine(s)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, hintID := range []int64{1, 2} {
		wg.Add(1)
		go func(i int, hintID int64) {
			defer wg.Done()
			_, errs[i] = engine.UnlockHint(ctx, 1, hintID)
		}(i, hintID)
	}
	wg.Wait()

	u, _ := s.User(1)
	if u.Score < 0 {
		t.Errorf("并发解锁后积分为负: %d", u.Score)
	}

	// 两个都成功时总扣费80超过余额60，至少有一个被拒
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, scoring.ErrInsufficientScore) {
			t.Errorf("意外错误: %v", err)
		}
	}
	if succeeded != 1 {
		t.Errorf("成功解锁数 = %d, want 1", succeeded)
	}
}

// 同一提示被多个并发请求解锁，只扣一次费
func TestUnlockHintConcurrentSameHint(t *testing.T) {
	ctx := context.Background()
	s := newHintStore()
	s.AddUser(scoring.User{ID: 1, Score: 100})
	engine := scoring.NewEngine(s)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = engine.UnlockHint(ctx, 1, 1)
		}(i)
	}
	wg.Wait()

	unlocked := 0
	for _, err := range errs {
		if err == nil {
			unlocked++
		} else if !errors.Is(err, scoring.ErrAlreadyUnlocked) {
			t.Errorf("意外错误: %v", err)
		}
	}
	if unlocked != 1 {
		t.Errorf("成功解锁数 = %d, want 1", unlocked)
	}

	u, _ := s.User(1)
	if u.Score != 70 {
		t.Errorf("并发解锁后积分 = %d, want 70", u.Score)
	}
}
