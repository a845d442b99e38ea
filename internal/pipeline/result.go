package pipeline

// Outcome classifies how a stage ended.
type Outcome int

const (
	// OutcomeOK means the stage produced a value and the item moves on.
	OutcomeOK Outcome = iota
	// OutcomeSkip means the item is intentionally left alone. Nothing is recorded.
	OutcomeSkip
	// OutcomeFail means the item could not be handled this run and stays eligible for the next one.
	OutcomeFail
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeSkip:
		return "skip"
	case OutcomeFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Result is the value of one stage of the per-item flow.
// Reason carries a locale message id for skips and failures.
type Result[T any] struct {
	Outcome Outcome
	Value   T
	Reason  string
	Err     error
}

// Ok wraps a stage value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Outcome: OutcomeOK, Value: v}
}

// Skip ends the item without a record.
func Skip[T any](reason string) Result[T] {
	return Result[T]{Outcome: OutcomeSkip, Reason: reason}
}

// Fail ends the item with err.
func Fail[T any](reason string, err error) Result[T] {
	return Result[T]{Outcome: OutcomeFail, Reason: reason, Err: err}
}

// carry re-types a non-OK result so it can be returned from a later stage.
func carry[T, U any](r Result[U]) Result[T] {
	return Result[T]{Outcome: r.Outcome, Reason: r.Reason, Err: r.Err}
}
