package arbitrage

import "testing"

func TestStateMachineLegalTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusIdentified, StatusValidated, true},
		{StatusIdentified, StatusFailed, true},
		{StatusIdentified, StatusExpired, true},
		{StatusValidated, StatusExecuting, true},
		{StatusValidated, StatusExpired, true},
		{StatusExecuting, StatusCompleted, true},
		{StatusExecuting, StatusExpired, true},
		{StatusIdentified, StatusExecuting, false},
		{StatusIdentified, StatusCompleted, false},
		{StatusValidated, StatusIdentified, false},
		{StatusValidated, StatusFailed, false},
		{StatusCompleted, StatusIdentified, false},
		{StatusFailed, StatusValidated, false},
		{StatusExpired, StatusValidated, false},
	}
	for _, c := range cases {
		o := &Opportunity{ID: "x", Status: c.from}
		err := transition(o, c.to)
		if c.ok && err != nil {
			t.Errorf("%s -> %s: expected success, got %v", c.from, c.to, err)
		}
		if !c.ok && err == nil {
			t.Errorf("%s -> %s: expected failure, transition succeeded", c.from, c.to)
		}
		if c.ok && o.Status != c.to {
			t.Errorf("%s -> %s: status not updated, got %s", c.from, c.to, o.Status)
		}
	}
}

func TestTerminalStatusesNeverRegress(t *testing.T) {
	for _, s := range []Status{StatusCompleted, StatusFailed, StatusExpired} {
		if !IsTerminal(s) {
			t.Errorf("expected %s to be terminal", s)
		}
		o := &Opportunity{ID: "x", Status: s}
		if err := transition(o, StatusValidated); err == nil {
			t.Errorf("expected terminal status %s to reject further transitions", s)
		}
	}
}
