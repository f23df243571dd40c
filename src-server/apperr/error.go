package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// the remote feed can't be retrieved (transport error or non-2xx status)
	ErrFeedUnavailable = errors.New("feed unavailable")
	// a referenced project, calendar or module doesn't exist
	ErrNotFound = errors.New("not found")
	// an invalid configuration, import payload or feed document
	ErrMalformedInput = errors.New("malformed input")
)

// An error of one of the kinds above, carrying a message and some context
// for the logs. errors.Is matches the kind.
type Error struct {
	kind error
	msg  string
	args map[string]any
}

// Create a new error of the given kind
func New(kind error, msg string, args map[string]any) *Error {
	if args == nil {
		args = make(map[string]any)
	}
	return &Error{
		kind: kind,
		msg:  msg,
		args: args,
	}
}

func FeedUnavailable(msg string, args map[string]any) *Error {
	return New(ErrFeedUnavailable, msg, args)
}

func NotFound(msg string, args map[string]any) *Error {
	return New(ErrNotFound, msg, args)
}

func MalformedInput(msg string, args map[string]any) *Error {
	return New(ErrMalformedInput, msg, args)
}

// Get the error message
func (e *Error) Error() string {
	var sb strings.Builder
	sb.WriteString(e.kind.Error())
	sb.WriteString(": ")
	sb.WriteString(e.msg)
	if len(e.args) == 0 {
		return sb.String()
	}
	keys := make([]string, 0, len(e.args))
	for key := range e.args {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	sb.WriteString(" |")
	for _, key := range keys {
		sb.WriteString(fmt.Sprintf(" %s: %v", key, e.args[key]))
	}
	return sb.String()
}

// Message without the kind prefix and the args, safe to show to a client.
func (e *Error) Message() string {
	return e.msg
}

func (e *Error) Is(target error) bool {
	return target == e.kind
}

// Unwrap exposes a wrapped cause stored under the "err" arg.
func (e *Error) Unwrap() error {
	if err, ok := e.args["err"].(error); ok {
		return err
	}
	return nil
}
