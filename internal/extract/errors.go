package extract

import (
	"errors"
	"fmt"
)

// ErrNotAResponse marks items that are not invitation responses (plain
// notes, forwarded invitations). Callers drop them without reporting.
var ErrNotAResponse = errors.New("item is not an invitation response")

// Reasons an item can fail extraction. They are wrapped in *ExtractionError.
var (
	ErrUnrecognizedMessageClass = errors.New("unrecognized message class")
	ErrMalformedSenderName      = errors.New("malformed sender name")
	ErrMalformedAddress         = errors.New("malformed sender address")
	ErrIDMarkerNotFound         = errors.New("participant id marker not found")
	ErrTruncatedID              = errors.New("participant id shorter than configured width")
	ErrEmptyTopic               = errors.New("empty training name")
	ErrMissingReminderTime      = errors.New("missing reminder time")
)

// ExtractionError describes why one item could not be turned into a record.
type ExtractionError struct {
	Reason error  // one of the Err* reasons above
	Origin string // item origin, may be empty
	Detail string // the offending value
}

func (e *ExtractionError) Error() string {
	msg := e.Reason.Error()
	if e.Detail != "" {
		msg = fmt.Sprintf("%s: %q", msg, e.Detail)
	}
	if e.Origin != "" {
		msg = e.Origin + ": " + msg
	}
	return msg
}

func (e *ExtractionError) Unwrap() error {
	return e.Reason
}
