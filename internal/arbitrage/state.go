package arbitrage

import "fmt"

// transitions maps each non-terminal status to the set of statuses it may
// move to. Completed, Failed, and Expired are terminal: absent as keys,
// their transition sets are empty.
var transitions = map[Status]map[Status]bool{
	StatusIdentified: {StatusValidated: true, StatusFailed: true, StatusExpired: true},
	StatusValidated:  {StatusExecuting: true, StatusExpired: true},
	StatusExecuting:  {StatusCompleted: true, StatusExpired: true},
}

// IsTerminal reports whether status admits no further transitions.
func IsTerminal(status Status) bool {
	_, ok := transitions[status]
	return !ok
}

// transition moves o.Status to next if the move is legal, returning an
// error otherwise. The state machine never regresses: once terminal,
// always terminal.
func transition(o *Opportunity, next Status) error {
	allowed, ok := transitions[o.Status]
	if !ok {
		return fmt.Errorf("arbitrage: opportunity %s is terminal at %s, cannot move to %s", o.ID, o.Status, next)
	}
	if !allowed[next] {
		return fmt.Errorf("arbitrage: opportunity %s cannot move from %s to %s", o.ID, o.Status, next)
	}
	o.Status = next
	return nil
}
