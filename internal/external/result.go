// Package external holds clients for best-effort third-party services.
// Their failures never surface as errors: callers get a Result that is
// either Ok or Degraded to a sentinel value.
package external

const (
	UnknownLocation    = "Unknown Location"
	NoSummaryAvailable = "No summary available."
)

type Result[T any] struct {
	Value    T
	Degraded bool
	Err      error // cause of degradation, for logging only
}

func Ok[T any](v T) Result[T] { return Result[T]{Value: v} }

func Degraded[T any](sentinel T, cause error) Result[T] {
	return Result[T]{Value: sentinel, Degraded: true, Err: cause}
}
