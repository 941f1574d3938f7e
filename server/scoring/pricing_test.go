package scoring_test

import (
	"testing"

	"flagarena/server/scoring"
)

func TestPrice(t *testing.T) {
	dynamic := &scoring.Challenge{
		Dynamic:       true,
		CurrentPoints: 500,
		InitialPoints: 500,
		MinPoints:     50,
		DecayPerSolve: 10,
	}
	static := &scoring.Challenge{
		Dynamic:       false,
		CurrentPoints: 100,
	}

	tests := []struct {
		name        string
		ch          *scoring.Challenge
		mode        scoring.Mode
		priorSolves int
		want        int
	}{
		{"静态模式下动态题目取当前分值", dynamic, scoring.ModeStatic, 3, 500},
		{"动态模式下静态题目取固定分值", static, scoring.ModeDynamic, 3, 100},
		{"一血拿满分", dynamic, scoring.ModeDynamic, 0, 500},
		{"第二个解题者衰减一档", dynamic, scoring.ModeDynamic, 1, 490},
		{"衰减到保底", dynamic, scoring.ModeDynamic, 45, 50},
		{"超过保底后不再下降", dynamic, scoring.ModeDynamic, 46, 50},
		{"大量解题仍然保底", dynamic, scoring.ModeDynamic, 1000, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := scoring.Price(tt.ch, tt.mode, tt.priorSolves)
			if got != tt.want {
				t.Errorf("Price() = %d, want %d", got, tt.want)
			}
		})
	}
}

// 衰减序列逐个验证，确认每个名次的分值
func TestPriceDecaySeries(t *testing.T) {
	ch := &scoring.Challenge{
		Dynamic:       true,
		InitialPoints: 300,
		MinPoints:     100,
		DecayPerSolve: 50,
	}

	want := []int{300, 250, 200, 150, 100, 100, 100}
	for prior, expected := range want {
		if got := scoring.Price(ch, scoring.ModeDynamic, prior); got != expected {
			t.Errorf("prior=%d: Price() = %d, want %d", prior, got, expected)
		}
	}
}
