package services

import (
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrRetrieval marks controller-unreachable and file-missing failures.
	ErrRetrieval = errors.New("retrieval error")
	// ErrParse marks malformed or unreadable instruction files.
	ErrParse = errors.New("parse error")
	// ErrDuplicate marks inserts rejected by the deduplication gate.
	ErrDuplicate = errors.New("duplicate conflict")
	// ErrPersistence marks transaction failures; nothing was committed.
	ErrPersistence = errors.New("persistence error")
	// ErrTimeout marks bounded external calls that ran out of time.
	ErrTimeout = errors.New("timeout")
	// ErrNotFound marks lookups of records that do not exist.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks caller input that cannot be accepted.
	ErrValidation = errors.New("validation error")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrPersistence
	}
	if err != nil {
		return errors.Mark(errors.Wrap(err, detail), marker)
	}
	return errors.Mark(errors.Newf("%s: %s", marker.Error(), detail), marker)
}

// Is reports whether err carries the given marker.
func Is(err, marker error) bool {
	return errors.Is(err, marker)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}

// WithHint attaches operator guidance that logging surfaces as error_hint.
func WithHint(err error, hint string) error {
	if err == nil || strings.TrimSpace(hint) == "" {
		return err
	}
	return errors.WithHint(err, hint)
}

// Hint returns the guidance attached to err, if any.
func Hint(err error) string {
	if err == nil {
		return ""
	}
	return errors.FlattenHints(err)
}
