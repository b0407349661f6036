package deduplication

import (
	"errors"
	"fmt"

	"github.com/steveyegge/dupcheck/internal/events"
)

// ErrNilCandidate is returned by Check when no candidate is given.
var ErrNilCandidate = errors.New("candidate invoice is nil")

// ValidationError reports a candidate (or per-call context) that cannot be
// checked. No result is produced when Check returns one.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Reason)
}

// SystemError is an unexpected failure inside the pipeline. Check never
// returns it; it is recorded on the fail-safe result and in the FAILED
// audit entry.
type SystemError struct {
	Stage    events.Stage
	Analyzer string
	Err      error
}

func (e *SystemError) Error() string {
	if e.Analyzer != "" {
		return fmt.Sprintf("%s analyzer failed in stage %s: %v", e.Analyzer, e.Stage, e.Err)
	}
	return fmt.Sprintf("pipeline failed after stage %s: %v", e.Stage, e.Err)
}

func (e *SystemError) Unwrap() error { return e.Err }

// panicError wraps a recovered panic value.
type panicError struct {
	value interface{}
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}
