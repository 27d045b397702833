package skills

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError reports a descriptor that was skipped during load.
type ValidationError struct {
	Index  int
	ID     string
	Origin string
	Reason string
}

func (e *ValidationError) Error() string {
	ref := fmt.Sprintf("descriptor %d", e.Index)
	if e.ID != "" {
		ref = fmt.Sprintf("%s (%q)", ref, e.ID)
	}
	if e.Origin != "" {
		ref = fmt.Sprintf("%s from %s", ref, e.Origin)
	}
	return fmt.Sprintf("invalid %s: %s", ref, e.Reason)
}

// DuplicateIDError reports an id claimed by more than one descriptor. Every
// descriptor carrying the id is rejected.
type DuplicateIDError struct {
	ID      string
	Indexes []int
	Origins []string
}

func (e *DuplicateIDError) Error() string {
	idx := make([]string, len(e.Indexes))
	for i, n := range e.Indexes {
		idx[i] = fmt.Sprintf("%d", n)
	}
	return fmt.Sprintf("duplicate skill id %q in descriptors %s", e.ID, strings.Join(idx, ", "))
}

// ReloadTimeoutError is returned when a reload does not finish within its deadline.
// The previous snapshot stays active.
type ReloadTimeoutError struct {
	Timeout time.Duration
}

func (e *ReloadTimeoutError) Error() string {
	return fmt.Sprintf("skill reload timed out after %s", e.Timeout)
}

// ReloadSourceError is returned when the descriptor source cannot be read or
// yields no usable descriptor. The previous snapshot stays active.
type ReloadSourceError struct {
	Err error
}

func (e *ReloadSourceError) Error() string {
	return fmt.Sprintf("skill reload failed: %v", e.Err)
}

func (e *ReloadSourceError) Unwrap() error {
	return e.Err
}
