// Package multierror gathers kind-tagged errors accumulated from a batch of
// independent operations — such as the sink's retention sweep removing
// several over-budget log files — into a single error. It generalizes the
// teacher's sync/multierror package (github.com/grailbio/base/sync/multierror)
// to carry internal/errors.Error values instead of bare errors, so a caller
// can ask what kind of failure a batch produced rather than only rendering
// it.
package multierror

import (
	"fmt"
	"strings"
	"sync"

	"github.com/TMac-wei/mylogger/internal/errors"
)

// MultiError aggregates kind-tagged errors from a batch of operations that
// are each individually non-fatal. The zero value is not usable; use New.
type MultiError struct {
	errs  []*errors.Error
	count int64
	mu    sync.Mutex
}

// New creates a MultiError capped at holding max individual errors; beyond
// that, further additions are counted but not retained verbatim.
func New(max int) *MultiError {
	return &MultiError{errs: make([]*errors.Error, 0, max)}
}

func (me *MultiError) add(err *errors.Error) {
	if len(me.errs) == cap(me.errs) {
		me.count++
		return
	}
	me.errs = append(me.errs, err)
}

// Add records err. It is tagged errors.Other if it is not already a
// kind-tagged *errors.Error. Nil errors are ignored.
func (me *MultiError) Add(err error) {
	if err == nil || me == nil {
		return
	}
	if other, ok := err.(*MultiError); ok {
		// Snapshot other under its own lock, never me.mu and other.mu at
		// once, so two MultiErrors merging each other concurrently can't
		// deadlock.
		other.mu.Lock()
		errsCopy := append([]*errors.Error(nil), other.errs...)
		countCopy := other.count
		other.mu.Unlock()

		me.mu.Lock()
		defer me.mu.Unlock()
		for _, e := range errsCopy {
			me.add(e)
		}
		me.count += countCopy
		return
	}
	tagged, ok := err.(*errors.Error)
	if !ok {
		tagged = errors.E(errors.Other, err)
	}
	me.mu.Lock()
	defer me.mu.Unlock()
	me.add(tagged)
}

// HasKind reports whether any retained error carries kind k. Errors counted
// past the cap (and so not retained verbatim) are not inspected.
func (me *MultiError) HasKind(k errors.Kind) bool {
	if me == nil {
		return false
	}
	me.mu.Lock()
	defer me.mu.Unlock()
	for _, e := range me.errs {
		if e.Kind == k {
			return true
		}
	}
	return false
}

// Error implements the error interface.
func (me *MultiError) Error() string {
	if me == nil {
		return ""
	}
	me.mu.Lock()
	defer me.mu.Unlock()
	if len(me.errs) == 0 {
		return ""
	}
	if len(me.errs) == 1 {
		return me.errs[0].Error()
	}
	s := make([]string, len(me.errs))
	for i, e := range me.errs {
		s[i] = e.Error()
	}
	errs := strings.Join(s, "\n")
	if me.count == 0 {
		return fmt.Sprintf("[%s]", errs)
	}
	return fmt.Sprintf("[%s] [plus %d other error(s)]", errs, me.count)
}

// ErrorOrNil returns nil if no errors were recorded, itself otherwise.
func (me *MultiError) ErrorOrNil() error {
	if me == nil {
		return nil
	}
	me.mu.Lock()
	defer me.mu.Unlock()
	if len(me.errs) == 0 {
		return nil
	}
	return me
}
