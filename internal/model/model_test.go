package model

import (
	"regexp"
	"testing"
)

// crockfordBase32 matches valid ULID strings (26 chars, Crockford Base32 alphabet).
var crockfordBase32 = regexp.MustCompile(`^[0123456789ABCDEFGHJKMNPQRSTVWXYZ]{26}$`)

func TestNewIDFormat(t *testing.T) {
	id := NewID()
	if !crockfordBase32.MatchString(id) {
		t.Errorf("NewID() = %q, does not match Crockford Base32 ULID format", id)
	}
}

func TestNewIDUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := NewID()
		if seen[id] {
			t.Fatalf("NewID() produced duplicate: %s", id)
		}
		seen[id] = true
	}
}

func TestValidTransition(t *testing.T) {
	cases := []struct {
		from, to string
		want     bool
	}{
		{RunPending, RunRunning, true},
		{RunPending, RunFailed, true},
		{RunPending, RunCompleted, false},
		{RunRunning, RunCompleted, true},
		{RunRunning, RunFailed, true},
		{RunRunning, RunPending, false},
		{RunCompleted, RunRunning, false},
		{RunFailed, RunRunning, false},
		{"bogus", RunRunning, false},
	}
	for _, c := range cases {
		if got := ValidTransition(c.from, c.to); got != c.want {
			t.Errorf("ValidTransition(%q, %q) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestValidEnums(t *testing.T) {
	if !ValidMode(ModeAsync) || !ValidMode(ModeSync) || ValidMode("half-duplex") {
		t.Error("ValidMode accepts the wrong set")
	}
	if !ValidRegistration(RegistrationListener) || !ValidRegistration(RegistrationKeyword) || ValidRegistration("both") {
		t.Error("ValidRegistration accepts the wrong set")
	}
	for _, o := range []string{
		OutcomeSuccess, OutcomeServerError, OutcomeNetworkError,
		OutcomeTimeout, OutcomeAbort, OutcomeSyncTimeout,
	} {
		if !ValidOutcome(o) {
			t.Errorf("ValidOutcome(%q) = false, want true", o)
		}
	}
	if ValidOutcome("redirect") {
		t.Error(`ValidOutcome("redirect") = true, want false`)
	}
}
