// Package rferrors defines the error kinds shared by rf-norm, rf-peakcall,
// and rf-combine. ErrConfig and ErrIO startup failures are fatal; ErrSkip
// and ErrCompat are recovered at the per-transcript boundary and counted
// in a counters.Bundle rather than propagated.
package rferrors

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// ErrConfig reports an invalid or contradictory parameter combination,
// fatal at config construction time.
type ErrConfig struct {
	Detail string
}

func (e *ErrConfig) Error() string {
	return fmt.Sprintf("invalid configuration: %s", e.Detail)
}

// NewConfigError wraps detail in an ErrConfig, annotated via
// github.com/grailbio/base/errors for consistent diagnostic formatting.
func NewConfigError(detail string) error {
	return errors.E(&ErrConfig{Detail: detail})
}

// ErrIO reports an unreadable input, unwritable output, or corrupt record.
// Fatal at startup when the whole input is unreadable; counted as Failed
// when only a single transcript's record is corrupt.
type ErrIO struct {
	Path   string
	Detail string
}

func (e *ErrIO) Error() string {
	return fmt.Sprintf("I/O error on %q: %s", e.Path, e.Detail)
}

// NewIOError wraps a path and detail in an ErrIO.
func NewIOError(path, detail string) error {
	return errors.E(&ErrIO{Path: path, Detail: detail})
}

// SkipReason enumerates the non-fatal per-transcript rejection reasons of
// the ErrSkip family.
type SkipReason string

const (
	LowCoverage SkipReason = "incov"
	SeqMismatch SkipReason = "seqmismatch"
	Missing     SkipReason = "missing"
	NonNumeric  SkipReason = "nonnumeric"
)

// ErrSkip is a non-fatal, per-transcript rejection. The pool continues;
// the caller increments the counter named by Reason.
type ErrSkip struct {
	Transcript string
	Reason     SkipReason
	Detail     string
}

func (e *ErrSkip) Error() string {
	return fmt.Sprintf("skipping transcript %q (%s): %s", e.Transcript, e.Reason, e.Detail)
}

// NewSkipError constructs an ErrSkip.
func NewSkipError(transcript string, reason SkipReason, detail string) *ErrSkip {
	return &ErrSkip{Transcript: transcript, Reason: reason, Detail: detail}
}

// CompatReason enumerates the combiner-only cross-input disagreement
// reasons of the ErrCompat family.
type CompatReason string

const (
	Tool     CompatReason = "difftool"
	Scoring  CompatReason = "diffscore"
	Norm     CompatReason = "diffnorm"
	Offset   CompatReason = "diffoffset"
	Window   CompatReason = "diffwin"
	Sequence CompatReason = "diffseq"
)

// ErrCompat is a non-fatal, per-transcript combiner rejection caused by
// inputs disagreeing on a header attribute that must match.
type ErrCompat struct {
	Transcript string
	Reason     CompatReason
	Detail     string
}

func (e *ErrCompat) Error() string {
	return fmt.Sprintf("transcript %q rejected (%s): %s", e.Transcript, e.Reason, e.Detail)
}

// NewCompatError constructs an ErrCompat.
func NewCompatError(transcript string, reason CompatReason, detail string) *ErrCompat {
	return &ErrCompat{Transcript: transcript, Reason: reason, Detail: detail}
}
