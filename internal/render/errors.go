package render

import (
	"errors"
	"fmt"
)

// ErrorKind classifies render failures
type ErrorKind int

const (
	// SourceNotFound means the base video does not exist
	SourceNotFound ErrorKind = iota + 1
	// SourceUnreadable means the base video exists but cannot be probed or decoded
	SourceUnreadable
	// AssetDecodeFailure is reported per overlay; the overlay is skipped
	AssetDecodeFailure
	// EncoderUnavailable is reported when hardware encoding falls back to software
	EncoderUnavailable
	// EncodeWriteFailure means the output could not be written
	EncodeWriteFailure
)

func (k ErrorKind) String() string {
	switch k {
	case SourceNotFound:
		return "source not found"
	case SourceUnreadable:
		return "source unreadable"
	case AssetDecodeFailure:
		return "asset decode failure"
	case EncoderUnavailable:
		return "encoder unavailable"
	case EncodeWriteFailure:
		return "encode write failure"
	default:
		return "unknown"
	}
}

// Error is a classified render error
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// IsKind reports whether err is a render error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var re *Error
	if errors.As(err, &re) && re != nil {
		return re.Kind == kind
	}
	return false
}
