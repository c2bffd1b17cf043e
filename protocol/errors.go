// Copyright 2026 The Galactica Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import "fmt"

// ErrorCode identifies a class of protocol violation, carried in the
// display.error event.
type ErrorCode uint32

const (
	ErrInvalidObject        ErrorCode = 0
	ErrInvalidMethod        ErrorCode = 1
	ErrNoMemory             ErrorCode = 2
	ErrInvalidFormat        ErrorCode = 3
	ErrInvalidStride        ErrorCode = 4
	ErrInvalidFd            ErrorCode = 5
	ErrSurfaceLimitExceeded ErrorCode = 6
	ErrInvalidCredentials   ErrorCode = 7
)

func (c ErrorCode) String() string {
	switch c {
	case ErrInvalidObject:
		return "invalid_object"
	case ErrInvalidMethod:
		return "invalid_method"
	case ErrNoMemory:
		return "no_memory"
	case ErrInvalidFormat:
		return "invalid_format"
	case ErrInvalidStride:
		return "invalid_stride"
	case ErrInvalidFd:
		return "invalid_fd"
	case ErrSurfaceLimitExceeded:
		return "surface_limit_exceeded"
	case ErrInvalidCredentials:
		return "invalid_credentials"
	}
	return fmt.Sprintf("unknown(%d)", uint32(c))
}

// Error is a protocol violation attributed to one object. The server
// reports it to the client with display.error and then terminates the
// connection.
type Error struct {
	Code    ErrorCode
	Object  uint32
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("protocol error on object %d: %s: %s", e.Object, e.Code, e.Message)
}

// Errorf builds a protocol error with a formatted message.
func Errorf(code ErrorCode, object uint32, format string, args ...any) *Error {
	return &Error{Code: code, Object: object, Message: fmt.Sprintf(format, args...)}
}
