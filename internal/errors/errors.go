// Package errors implements the tagged error taxonomy used throughout
// mylogger. Errors carry a Kind so that callers (and the sink's internal
// recovery paths) can decide whether a failure is fatal, retryable, or
// merely worth a diagnostic. Errors may be chained to attribute one failure
// to another; the chain is rendered on Error().
package errors

import (
	"fmt"
	"strings"
	"sync"
)

// Kind classifies the failure described by an Error, matching the
// taxonomy in spec.md §7.
type Kind int

const (
	// Other is an unclassified error.
	Other Kind = iota
	// Config indicates invalid configuration: a bad hex key, a bad path,
	// an unparsable parameter. Surfaces at sink construction time.
	Config
	// IO indicates a failure from the filesystem or mmap layer. Logged
	// and retried; does not crash the process.
	IO
	// Codec indicates a compress/decompress or encrypt/decrypt failure on
	// a single record. The offending record is dropped.
	Codec
	// Format indicates a record failed to encode (e.g. an oversized
	// field). The record is replaced with a placeholder.
	Format
	// Corruption indicates a magic mismatch or size overrun while
	// decoding a file. The decoder aborts the current file.
	Corruption
	// ShuttingDown indicates a task was submitted after shutdown.
	ShuttingDown
)

// String returns a lower-case name for k.
func (k Kind) String() string {
	switch k {
	case Config:
		return "config error"
	case IO:
		return "i/o error"
	case Codec:
		return "codec error"
	case Format:
		return "format error"
	case Corruption:
		return "corruption"
	case ShuttingDown:
		return "shutting down"
	default:
		return "error"
	}
}

// Error is a chainable, kind-tagged error.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

// E constructs an Error from its arguments. Arguments may include a Kind,
// a string (appended to the message), or an error (set as Cause; if it is
// itself an *Error and no Kind was supplied, the Kind is inherited).
func E(args ...interface{}) *Error {
	e := &Error{}
	for _, arg := range args {
		switch v := arg.(type) {
		case Kind:
			e.Kind = v
		case string:
			if e.Message == "" {
				e.Message = v
			} else {
				e.Message = e.Message + ": " + v
			}
		case error:
			e.Cause = v
			if e.Kind == Other {
				if inner, ok := v.(*Error); ok {
					e.Kind = inner.Kind
				}
			}
		default:
			e.Message = e.Message + fmt.Sprintf(": %v", v)
		}
	}
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Cause != nil {
		b.WriteString(":\n\t")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap allows errors.Is/As from the standard library to see through the
// chain.
func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether err (or any error in its chain) has the given Kind.
func Is(err error, k Kind) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			if e.Kind == k {
				return true
			}
			err = e.Cause
			continue
		}
		return false
	}
	return false
}

// Once captures at most one error across concurrent goroutines. A zero
// Once is ready to use. Only the first Set call is retained.
type Once struct {
	mu  sync.Mutex
	err error
}

// Set records err if no error has been recorded yet.
func (o *Once) Set(err error) {
	if err == nil {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.err == nil {
		o.err = err
	}
}

// Err returns the first error passed to Set, or nil.
func (o *Once) Err() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.err
}

// CleanUp is defer-able syntactic sugar that calls cleanUp and, if it
// returns an error, chains it onto *dst (the caller's named return error).
//
//	func writeChunk() (err error) {
//	    f, err := os.Create(path)
//	    if err != nil { return err }
//	    defer errors.CleanUp(f.Close, &err)
//	    ...
//	}
func CleanUp(cleanUp func() error, dst *error) {
	if cerr := cleanUp(); cerr != nil {
		if *dst == nil {
			*dst = cerr
		} else {
			*dst = E(*dst, fmt.Sprintf("also failed to clean up: %v", cerr))
		}
	}
}
