package wire

import (
	"errors"
	"fmt"
)

// Codec errors (spec §7): local, recoverable by the caller. Each is a
// distinct type or sentinel so callers can distinguish failure modes
// with errors.Is/errors.As, following the sentinel-error style of
// internal/moq/errors.go.
var (
	ErrBufferTooShort      = errors.New("wire: buffer too short")
	ErrUnexpectedEnd       = errors.New("wire: unexpected end of buffer")
	ErrMalformedVarInt     = errors.New("wire: malformed varint")
	ErrVarIntBoundsExceeded = errors.New("wire: varint exceeds 2^62-1")
	ErrDuplicateParameter  = errors.New("wire: duplicate parameter key")
	ErrMissingParameter    = errors.New("wire: missing required parameter")
)

// InvalidBooleanValueError reports a single-byte boolean field whose
// value was not 0 or 1.
type InvalidBooleanValueError struct {
	Got byte
}

func (e *InvalidBooleanValueError) Error() string {
	return fmt.Sprintf("wire: invalid boolean value %#x", e.Got)
}

// InvalidStringError wraps a UTF-8 validation failure on a decoded string.
type InvalidStringError struct {
	Err error
}

func (e *InvalidStringError) Error() string { return fmt.Sprintf("wire: invalid string: %v", e.Err) }
func (e *InvalidStringError) Unwrap() error { return e.Err }

// InvalidMessageTypeError reports an unrecognized control/object message type tag.
type InvalidMessageTypeError struct {
	Got uint64
}

func (e *InvalidMessageTypeError) Error() string {
	return fmt.Sprintf("wire: invalid message type %#x", e.Got)
}

// InvalidFilterTypeError reports an unrecognized SUBSCRIBE filter type tag.
type InvalidFilterTypeError struct {
	Got uint64
}

func (e *InvalidFilterTypeError) Error() string {
	return fmt.Sprintf("wire: invalid filter type %#x", e.Got)
}

// InvalidRoleError reports an unrecognized ROLE parameter value.
type InvalidRoleError struct {
	Got uint64
}

func (e *InvalidRoleError) Error() string { return fmt.Sprintf("wire: invalid role %d", e.Got) }

// UnsupportedVersionError reports a version value outside the set this
// implementation recognizes.
type UnsupportedVersionError struct {
	Got uint64
}

func (e *UnsupportedVersionError) Error() string {
	return fmt.Sprintf("wire: unsupported version %#x", e.Got)
}

// UnsupportedParameterError reports a parameter key this implementation
// does not know how to interpret.
type UnsupportedParameterError struct {
	Got uint64
}

func (e *UnsupportedParameterError) Error() string {
	return fmt.Sprintf("wire: unsupported parameter key %d", e.Got)
}

// ParseError records which field of a message was being decoded when an
// underlying codec error occurred, matching internal/moq/errors.go's
// ParseError wrapper.
type ParseError struct {
	Field string
	Err   error
}

func (e *ParseError) Error() string { return fmt.Sprintf("wire: parse %s: %v", e.Field, e.Err) }
func (e *ParseError) Unwrap() error { return e.Err }

// ParserErrorCode is the fatal, session-terminating protocol-error taxonomy
// (spec §6, "Error codes (wire)").
type ParserErrorCode uint64

const (
	ParserErrorNone                    ParserErrorCode = 0x0
	ParserErrorInternal                ParserErrorCode = 0x1
	ParserErrorUnauthorized            ParserErrorCode = 0x2
	ParserErrorProtocolViolation       ParserErrorCode = 0x3
	ParserErrorDuplicateTrackAlias     ParserErrorCode = 0x4
	ParserErrorParameterLengthMismatch ParserErrorCode = 0x5
	ParserErrorGoawayTimeout           ParserErrorCode = 0x10
)

func (c ParserErrorCode) String() string {
	switch c {
	case ParserErrorNone:
		return "NoError"
	case ParserErrorInternal:
		return "InternalError"
	case ParserErrorUnauthorized:
		return "Unauthorized"
	case ParserErrorProtocolViolation:
		return "ProtocolViolation"
	case ParserErrorDuplicateTrackAlias:
		return "DuplicateTrackAlias"
	case ParserErrorParameterLengthMismatch:
		return "ParameterLengthMismatch"
	case ParserErrorGoawayTimeout:
		return "GoawayTimeout"
	default:
		return fmt.Sprintf("ParserErrorCode(%#x)", uint64(c))
	}
}

// ParsingError is the fatal event the stream parser emits when it hits a
// protocol violation or internal error; once emitted, the parser latches
// and discards further input (spec §4.5/§7).
type ParsingError struct {
	Code   ParserErrorCode
	Reason string
}

func (e *ParsingError) Error() string {
	return fmt.Sprintf("wire: %s: %s", e.Code, e.Reason)
}
