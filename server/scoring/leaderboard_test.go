package scoring_test

import (
	"context"
	"reflect"
	"testing"
	"time"

	"flagarena/server/scoring"
	"flagarena/server/store/memory"
)

func TestRank(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	s.SetConfig(scoring.Config{Mode: scoring.ModeStatic})

	s.AddTeam(1, "BinaryBandits")
	s.AddTeam(2, "NullPointer")
	s.AddTeam(3, "StackSmash")
	s.AddTeam(4, "RootCause")
	s.AddTeam(5, "ZeroDay")

	team := func(id int64) *int64 { return &id }
	// 队伍1和2通过解题得到相同的100分，解题时间不同
	s.AddUser(scoring.User{ID: 1, Username: "alice", TeamID: team(1)})
	s.AddUser(scoring.User{ID: 2, Username: "bob", TeamID: team(2)})
	// 队伍3和5有同样的初始积分但没有解题记录
	s.AddUser(scoring.User{ID: 3, Username: "carol", Score: 100, TeamID: team(3)})
	s.AddUser(scoring.User{ID: 5, Username: "eve", Score: 100, TeamID: team(5)})
	// 队伍4分数最低
	s.AddUser(scoring.User{ID: 4, Username: "dave", Score: 50, TeamID: team(4)})

	s.AddChallenge(scoring.Challenge{
		ID: 1, Name: "warmup", Flag: "flag{hello}",
		Published: true, CurrentPoints: 100,
	})

	// 用可控时钟让队伍1先解题
	current := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time {
		current = current.Add(time.Minute)
		return current
	})

	engine := scoring.NewEngine(s)
	if _, err := engine.SubmitFlag(ctx, 1, 1, "flag{hello}"); err != nil {
		t.Fatalf("用户1提交失败: %v", err)
	}
	if _, err := engine.SubmitFlag(ctx, 2, 1, "flag{hello}"); err != nil {
		t.Fatalf("用户2提交失败: %v", err)
	}

	standings, err := engine.Rank(ctx)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(standings) != 5 {
		t.Fatalf("队伍数 = %d, want 5", len(standings))
	}

	// 期望顺序：
	//  1. 队伍1（100分，先解题）
	//  2. 队伍2（100分，后解题）
	//  3. 队伍3（100分，无解题记录，ID小）
	//  4. 队伍5（100分，无解题记录，ID大）
	//  5. 队伍4（50分）
	wantOrder := []int64{1, 2, 3, 5, 4}
	for i, want := range wantOrder {
		if standings[i].TeamID != want {
			t.Errorf("第%d名 = 队伍%d, want 队伍%d", i+1, standings[i].TeamID, want)
		}
		if standings[i].Rank != i+1 {
			t.Errorf("队伍%d的名次 = %d, want %d", standings[i].TeamID, standings[i].Rank, i+1)
		}
	}

	if standings[0].SolveCount != 1 {
		t.Errorf("队伍1解题数 = %d, want 1", standings[0].SolveCount)
	}
	if standings[0].LastSolveAt == nil {
		t.Error("队伍1缺少最后解题时间")
	}
	if standings[2].LastSolveAt != nil {
		t.Error("无解题记录的队伍不应有最后解题时间")
	}

	// 无写入时两次排行输出完全一致
	again, err := engine.Rank(ctx)
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if !reflect.DeepEqual(standings, again) {
		t.Error("连续两次排行结果不一致")
	}
}

func TestRankEmpty(t *testing.T) {
	engine := scoring.NewEngine(memory.New())
	standings, err := engine.Rank(context.Background())
	if err != nil {
		t.Fatalf("Rank() error = %v", err)
	}
	if len(standings) != 0 {
		t.Errorf("空账本的排行榜长度 = %d, want 0", len(standings))
	}
}
