// Package errs defines the error taxonomy shared across refmsa packages.
//
// Every error returned across a package boundary is one of the five kinds
// below, optionally wrapping a lower-level cause via github.com/pkg/errors
// so that %+v printing still yields a stack trace during debugging.
package errs

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind identifies which bucket of the error taxonomy an error belongs to.
type Kind uint8

const (
	// InvalidArgument covers bad parameters: out-of-range k, mismatched
	// sketch k, unknown CIGAR opcode, length overflow, missing template
	// placeholders.
	InvalidArgument Kind = iota
	// IoFailure covers FASTA/SAM open/read/write/flush failures, temp-dir
	// creation, gzip stream errors.
	IoFailure
	// ParseError covers malformed FASTA/SAM lines, bad CIGAR strings,
	// unexpected negative reads from a streaming reader.
	ParseError
	// AlignmentInconsistency covers a CIGAR that consumes the wrong number
	// of bases for its segment; recoverable at segment granularity.
	AlignmentInconsistency
	// ExternalToolFailure covers a non-zero exit from the MSA collaborator
	// subprocess.
	ExternalToolFailure
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case IoFailure:
		return "IoFailure"
	case ParseError:
		return "ParseError"
	case AlignmentInconsistency:
		return "AlignmentInconsistency"
	case ExternalToolFailure:
		return "ExternalToolFailure"
	default:
		return "Unknown"
	}
}

// Error is a taxonomy-tagged error. Path or record-id context, when known,
// is carried in Subject so the user-visible diagnostic line can name the
// offending path/record without a second wrapping layer.
type Error struct {
	Kind    Kind
	Subject string // offending path or record id, may be empty
	cause   error
}

func (e *Error) Error() string {
	if e.Subject == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.cause)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Subject, e.cause)
}

func (e *Error) Unwrap() error { return e.cause }

// New builds a new taxonomy error from a message.
func New(kind Kind, subject, msg string) error {
	return &Error{Kind: kind, Subject: subject, cause: errors.New(msg)}
}

// Newf is New with fmt.Sprintf-style formatting.
func Newf(kind Kind, subject, format string, args ...interface{}) error {
	return &Error{Kind: kind, Subject: subject, cause: fmt.Errorf(format, args...)}
}

// Wrap tags an existing error with a taxonomy kind and optional subject.
// Returns nil if err is nil.
func Wrap(kind Kind, subject string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Subject: subject, cause: errors.WithStack(err)}
}

// Is reports whether err (or something it wraps) carries the given Kind.
func Is(err error, kind Kind) bool {
	var e *Error
	for err != nil {
		if ae, ok := err.(*Error); ok {
			e = ae
			break
		}
		err = errors.Unwrap(err)
	}
	return e != nil && e.Kind == kind
}
