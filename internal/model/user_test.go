package model

import "testing"

func TestLevelForXP(t *testing.T) {
	tests := []struct {
		xp   int
		want int
	}{
		{0, 1},
		{999, 1},
		{1000, 2},
		{1001, 2},
		{1999, 2},
		{2000, 3},
		{-50, 1}, // clamped, XP never goes negative in practice
	}

	for _, tt := range tests {
		if got := LevelForXP(tt.xp); got != tt.want {
			t.Errorf("LevelForXP(%d) = %d, want %d", tt.xp, got, tt.want)
		}
	}
}

func TestUserSummary_OmitsSensitiveFields(t *testing.T) {
	u := &User{
		ID:           "u1",
		Username:     "satoshi",
		FullName:     "Satoshi N",
		PasswordHash: "$2a$12$secret",
		XP:           1200,
		Level:        2,
	}

	s := u.Summary()
	if s.XP != 1200 || s.Level != 2 || s.Username != "satoshi" {
		t.Errorf("Summary() = %+v", s)
	}
}
