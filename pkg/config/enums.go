package config

// ErrorStrategy controls how the orchestrator reacts to failures in the
// dimensions and secondary stages.
type ErrorStrategy string

const (
	// ErrorStrategyFailFast aborts the run on the first fatal stage failure (default).
	ErrorStrategyFailFast ErrorStrategy = "fail-fast"
	// ErrorStrategyContinuePartial records the failure, substitutes defaults,
	// and keeps going.
	ErrorStrategyContinuePartial ErrorStrategy = "continue-with-partial"
)

// IsValid checks if the error strategy is valid.
func (s ErrorStrategy) IsValid() bool {
	return s == ErrorStrategyFailFast || s == ErrorStrategyContinuePartial
}

// ResumeMode selects how suspended runs are resumed across invocations.
type ResumeMode string

const (
	// ResumeModeStateless restarts a fresh run with pre-applied answers.
	ResumeModeStateless ResumeMode = "stateless"
	// ResumeModeSnapshot restores run state from the snapshot store.
	ResumeModeSnapshot ResumeMode = "snapshot"
)

// IsValid checks if the resume mode is valid.
func (m ResumeMode) IsValid() bool {
	return m == ResumeModeStateless || m == ResumeModeSnapshot
}
