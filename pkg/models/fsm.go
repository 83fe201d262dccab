package models

import "fmt"

// validTransitions maps from-state to allowed to-states
var validTransitions = map[RunStatus]map[RunStatus]bool{
	RunStatusStarting: {
		RunStatusRunning: true, // Starting → Running (orchestrator spawned)
		RunStatusFailed:  true, // Starting → Failed (spawn failed)
	},
	RunStatusRunning: {
		RunStatusCompleted: true, // Running → Completed (exit 0)
		RunStatusFailed:    true, // Running → Failed (non-zero exit)
	},
	// Terminal states (no transitions allowed)
	RunStatusCompleted: {},
	RunStatusFailed:    {},
}

// ValidateTransition checks if a run state transition is valid
func ValidateTransition(from, to RunStatus) error {
	allowed, exists := validTransitions[from]
	if !exists {
		return fmt.Errorf("unknown source state: %s", from)
	}
	if !allowed[to] {
		return fmt.Errorf("invalid transition from %s to %s", from, to)
	}
	return nil
}

// IsTerminalState returns true if the state is terminal (no further transitions)
func IsTerminalState(state RunStatus) bool {
	return state == RunStatusCompleted || state == RunStatusFailed
}
