package errors

import (
	"fmt"
)

type Kind string

const (
	KindGrammarMismatch    Kind = "GRAMMAR_MISMATCH"
	KindUnresolvedIdentity Kind = "UNRESOLVED_IDENTITY"
	KindNoMatchingType     Kind = "NO_MATCHING_TYPE"
	KindInvalidChange      Kind = "INVALID_CHANGE"
	KindCommand            Kind = "COMMAND"
)

// Error is the single failure type surfaced by a conversion. Path and
// Fragment carry the offending file and the raw input that triggered it.
type Error struct {
	Kind     Kind   `json:"kind"`
	Message  string `json:"message"`
	Path     string `json:"path,omitempty"`
	Fragment string `json:"fragment,omitempty"`
	Err      error  `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Path)
	}
	if e.Fragment != "" {
		msg = fmt.Sprintf("%s (at %q)", msg, e.Fragment)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can test with a bare
// &Error{Kind: ...} target.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Path == ""
}

func GrammarMismatch(message, fragment string) *Error {
	return &Error{
		Kind:     KindGrammarMismatch,
		Message:  message,
		Fragment: fragment,
	}
}

func UnresolvedIdentity(path, fragment string) *Error {
	return &Error{
		Kind:     KindUnresolvedIdentity,
		Message:  "unresolved file identity",
		Path:     path,
		Fragment: fragment,
	}
}

func NoMatchingType(vocabulary, value string) *Error {
	return &Error{
		Kind:     KindNoMatchingType,
		Message:  fmt.Sprintf("no matching change type for %s", vocabulary),
		Fragment: value,
	}
}

func InvalidChange(message, path string) *Error {
	return &Error{
		Kind:    KindInvalidChange,
		Message: message,
		Path:    path,
	}
}

func Command(command string, err error) *Error {
	return &Error{
		Kind:     KindCommand,
		Message:  "command failed",
		Fragment: command,
		Err:      err,
	}
}

// WithPath returns a copy of e bound to path.
func (e *Error) WithPath(path string) *Error {
	c := *e
	c.Path = path
	return &c
}
