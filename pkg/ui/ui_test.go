package ui

import (
	"fmt"
	"testing"
	"time"
)

func TestPanel(t *testing.T) {
	at := time.Date(2026, 10, 18, 8, 0, 0, 0, time.UTC)
	p := NewPanel(3, func() time.Time { return at })

	if a := p.Affordance(); a.Enabled || a.Label != LabelStart {
		t.Fatalf("initial affordance = %+v", a)
	}
	var s Sink = p
	s.SetAffordanceLabel(LabelStop)
	s.SetAffordanceEnabled(true)
	if a := p.Affordance(); !a.Enabled || a.Label != LabelStop {
		t.Fatalf("affordance = %+v", a)
	}

	for i := 0; i < 5; i++ {
		s.NotifyUser(fmt.Sprintf("notice %d", i))
	}
	n := p.Notifications()
	if len(n) != 3 || n[0].Message != "notice 2" || n[2].Message != "notice 4" {
		t.Fatalf("notifications = %+v", n)
	}
	if !n[0].At.Equal(at) {
		t.Fatalf("at = %v", n[0].At)
	}
}

func TestTee(t *testing.T) {
	a, b := NewPanel(0, nil), NewPanel(0, nil)
	s := Tee(a, NewLog(nil), b)
	s.SetAffordanceEnabled(true)
	s.NotifyUser("Permission request denied")

	for _, p := range []*Panel{a, b} {
		if !p.Affordance().Enabled || len(p.Notifications()) != 1 {
			t.Fatalf("panel not updated: %+v %+v", p.Affordance(), p.Notifications())
		}
	}
}
