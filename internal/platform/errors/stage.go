package errors

// Stage tags the pipeline stage that produced an error, used by the
// boundary error shape described for the Orchestrator and stage services.
type Stage string

const (
	StageFetch     Stage = "fetch"
	StageNormalize Stage = "normalize"
	StageSummarize Stage = "summarize"
	StageStorage   Stage = "storage"
)

// FetchErrorf builds a stage-tagged error for the Fetcher.
func FetchErrorf(code ErrorCode, format string, a ...any) error {
	return WithOp(Newf(code, format, a...), string(StageFetch))
}

// FetchWrapf wraps a cause with stage-tagged Fetcher context.
func FetchWrapf(cause error, code ErrorCode, format string, a ...any) error {
	return WithOp(Wrapf(cause, code, format, a...), string(StageFetch))
}

// NormalizeErrorf builds a stage-tagged error for the Normaliser.
func NormalizeErrorf(code ErrorCode, format string, a ...any) error {
	return WithOp(Newf(code, format, a...), string(StageNormalize))
}

// NormalizeWrapf wraps a cause with stage-tagged Normaliser context.
func NormalizeWrapf(cause error, code ErrorCode, format string, a ...any) error {
	return WithOp(Wrapf(cause, code, format, a...), string(StageNormalize))
}

// SummarizeErrorf builds a stage-tagged error for the Summariser.
func SummarizeErrorf(code ErrorCode, format string, a ...any) error {
	return WithOp(Newf(code, format, a...), string(StageSummarize))
}

// SummarizeWrapf wraps a cause with stage-tagged Summariser context.
func SummarizeWrapf(cause error, code ErrorCode, format string, a ...any) error {
	return WithOp(Wrapf(cause, code, format, a...), string(StageSummarize))
}

// StorageErrorf builds a stage-tagged error for the optional DB/vector
// mirror. Storage errors are logged and swallowed by callers; they never
// bubble past the mirror adapter, but they still need a consistent shape for
// the warning log line.
func StorageErrorf(cause error, format string, a ...any) error {
	return WithOp(Wrapf(cause, ErrorCodeUnavailable, format, a...), string(StageStorage))
}

// StepFailedError wraps a stage-specific failure with the Orchestrator's
// step name. Prior-stage outputs are preserved on disk and the cause is
// never discarded.
type StepFailedError struct {
	Step  string
	Cause error
}

func (e *StepFailedError) Error() string {
	return "step " + e.Step + " failed: " + e.Cause.Error()
}

func (e *StepFailedError) Unwrap() error { return e.Cause }

// NewStepFailed wraps a stage error with the Orchestrator step name.
func NewStepFailed(step string, cause error) error {
	return &StepFailedError{Step: step, Cause: cause}
}
