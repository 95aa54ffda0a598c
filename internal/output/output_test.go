package output

import (
	"strings"
	"testing"
	"time"
)

func TestAge(t *testing.T) {
	now := time.Now()
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "never"},
		{now.Add(-5 * time.Second), "5s"},
		{now.Add(-3 * time.Minute), "3m"},
		{now.Add(-2 * time.Hour), "2h"},
		{now.Add(-72 * time.Hour), "3d"},
	}
	for _, tt := range tests {
		if got := Age(tt.t); got != tt.want {
			t.Errorf("Age(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestWhen(t *testing.T) {
	if got := When(time.Time{}); got != "" {
		t.Errorf("When(zero) = %q, want empty", got)
	}
	ts := time.Date(2026, 3, 1, 14, 30, 0, 0, time.Local)
	if got := When(ts); got != "2026-03-01 14:30" {
		t.Errorf("When = %q", got)
	}
}

func TestMoneyTwoDecimals(t *testing.T) {
	if got := Money(49.9); !strings.Contains(got, "49.90") {
		t.Errorf("Money(49.9) = %q, want it to contain 49.90", got)
	}
	if got := Money(0); !strings.Contains(got, "0.00") {
		t.Errorf("Money(0) = %q", got)
	}
}
