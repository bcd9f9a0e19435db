package faults

import (
	"errors"
	"fmt"
)

// Kind categorizes a failure by how the caller is expected to react to it.
type Kind string

const (
	// KindTransientRemote means the remote sink was unreachable or timed out.
	// Retryable up to the configured attempt count.
	KindTransientRemote Kind = "TRANSIENT_REMOTE"

	// KindPermanentValidation means a document failed its structural contract.
	// Triggers quarantine and backup recovery; never retried as-is.
	KindPermanentValidation Kind = "PERMANENT_VALIDATION"

	// KindParseSkip means a single log line could not be parsed.
	// The line is skipped and counted; processing continues.
	KindParseSkip Kind = "PARSE_SKIP"

	// KindConfigMissing means required configuration is absent at startup.
	// Fatal before any state is touched.
	KindConfigMissing Kind = "CONFIG_MISSING"
)

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Transient wraps err as a retryable remote failure.
func Transient(op string, err error) error {
	return &Error{Kind: KindTransientRemote, Op: op, Err: err}
}

// Validation wraps err as a permanent structural failure.
func Validation(op string, err error) error {
	return &Error{Kind: KindPermanentValidation, Op: op, Err: err}
}

// ParseSkip wraps err as a skippable single-record parse failure.
func ParseSkip(op string, err error) error {
	return &Error{Kind: KindParseSkip, Op: op, Err: err}
}

// ConfigMissing reports that the named configuration key is required but absent.
func ConfigMissing(key string) error {
	return &Error{Kind: KindConfigMissing, Op: "config", Err: fmt.Errorf("%s is required", key)}
}

// KindOf returns the kind of the first classified error in err's chain,
// or "" if err is not classified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// IsTransient reports whether err is a retryable remote failure.
func IsTransient(err error) bool {
	return KindOf(err) == KindTransientRemote
}

// IsValidation reports whether err is a structural validation failure.
func IsValidation(err error) bool {
	return KindOf(err) == KindPermanentValidation
}

// IsParseSkip reports whether err is a skippable parse failure.
func IsParseSkip(err error) bool {
	return KindOf(err) == KindParseSkip
}

// IsConfigMissing reports whether err is a missing-configuration failure.
func IsConfigMissing(err error) bool {
	return KindOf(err) == KindConfigMissing
}
