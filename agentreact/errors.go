package agentreact

import "errors"

var (
	// ErrMissingModel is returned when New is called without a model dependency.
	ErrMissingModel = errors.New("missing model")
	// ErrMissingToolExecutor is returned when New is called without a tool executor dependency.
	ErrMissingToolExecutor = errors.New("missing tool executor")
	// ErrMissingSessionStore is returned when New is called without a session store.
	ErrMissingSessionStore = errors.New("missing session store")
	// ErrInvalidConfig is returned when the loop configuration is out of range.
	ErrInvalidConfig = errors.New("loop config is invalid")
	// ErrInvalidPhaseTransition is returned for a phase change the state machine does not allow.
	ErrInvalidPhaseTransition = errors.New("invalid phase transition")
	// ErrIterationLimit aborts a turn that used every iteration without concluding.
	ErrIterationLimit = errors.New("iteration limit reached")
	// ErrDeadlineExceeded aborts a turn that ran past its wall-clock budget.
	ErrDeadlineExceeded = errors.New("turn deadline exceeded")
	// ErrReplanBudgetExhausted aborts a turn that needs another replan but has none left.
	ErrReplanBudgetExhausted = errors.New("replan budget exhausted")
	// ErrModelFatal aborts a turn after a non-retryable model transport failure.
	ErrModelFatal = errors.New("model transport failed")
)
