package agentreact

import "fmt"

// Phase is a state of the per-turn state machine.
type Phase string

const (
	PhaseAnalyze        Phase = "analyze"
	PhasePlan           Phase = "plan"
	PhaseExecute        Phase = "execute"
	PhaseValidateResult Phase = "validate_result"
	PhaseReplan         Phase = "replan"
	PhaseConclude       Phase = "conclude"
	PhaseAbort          Phase = "abort"
	PhaseCancelled      Phase = "cancelled"
)

func isTerminalPhase(phase Phase) bool {
	switch phase {
	case PhaseConclude, PhaseAbort, PhaseCancelled:
		return true
	default:
		return false
	}
}

func validatePhaseTransition(from, to Phase) error {
	if from == to {
		return nil
	}

	allowed, ok := allowedPhaseTransitions[from]
	if !ok {
		return fmt.Errorf("%w: unknown source phase %q", ErrInvalidPhaseTransition, from)
	}
	if _, ok := allowed[to]; !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, from, to)
	}
	return nil
}

var allowedPhaseTransitions = map[Phase]map[Phase]struct{}{
	"": {
		PhaseAnalyze: {},
	},
	PhaseAnalyze: {
		PhasePlan:      {},
		PhaseExecute:   {},
		PhaseAbort:     {},
		PhaseCancelled: {},
	},
	PhasePlan: {
		PhaseExecute:   {},
		PhaseAbort:     {},
		PhaseCancelled: {},
	},
	PhaseExecute: {
		PhaseValidateResult: {},
		PhaseReplan:         {},
		PhaseConclude:       {},
		PhaseAbort:          {},
		PhaseCancelled:      {},
	},
	PhaseValidateResult: {
		PhaseExecute:   {},
		PhaseReplan:    {},
		PhaseAbort:     {},
		PhaseCancelled: {},
	},
	PhaseReplan: {
		PhaseExecute:   {},
		PhaseConclude:  {},
		PhaseAbort:     {},
		PhaseCancelled: {},
	},
	PhaseConclude:  {},
	PhaseAbort:     {},
	PhaseCancelled: {},
}
