package eglimage

import "errors"

// Errors returned by Session operations. Every returned error wraps exactly
// one of these; test with errors.Is.
var (
	// ErrInvalidEnum is returned for an unrecognized target or source token.
	ErrInvalidEnum = errors.New("eglimage: invalid enum")

	// ErrInvalidOperation is returned when an image cannot be attached:
	// it is too large, has the wrong layout or format, or the previous
	// storage could not be retired.
	ErrInvalidOperation = errors.New("eglimage: invalid operation")

	// ErrInvalidValue is returned for an unknown image handle on the
	// renderbuffer path and for malformed uploads.
	ErrInvalidValue = errors.New("eglimage: invalid value")

	// ErrBadParameter is returned for an unknown or zero object name.
	ErrBadParameter = errors.New("eglimage: bad parameter")

	// ErrBadAccess is returned when the object is already an image sibling.
	ErrBadAccess = errors.New("eglimage: object is already an image sibling")

	// ErrBadMatch is returned for a mip level the object does not have.
	ErrBadMatch = errors.New("eglimage: mip level out of range")

	// ErrOutOfMemory is returned when storage cannot be allocated.
	ErrOutOfMemory = errors.New("eglimage: out of memory")

	// ErrGenericError is returned when the object's format has no image
	// representation.
	ErrGenericError = errors.New("eglimage: format has no image equivalent")

	// ErrInvalidState is returned when a texture's levels cannot be made
	// consistent.
	ErrInvalidState = errors.New("eglimage: texture levels inconsistent")

	// ErrSessionClosed is returned by every operation after Close.
	ErrSessionClosed = errors.New("eglimage: session closed")
)

// GL error enums.
const (
	GLNoError          uint32 = 0
	GLInvalidEnum      uint32 = 0x0500
	GLInvalidValue     uint32 = 0x0501
	GLInvalidOperation uint32 = 0x0502
	GLOutOfMemory      uint32 = 0x0505
)

// EGL error enums.
const (
	EGLSuccess      uint32 = 0x3000
	EGLBadAccess    uint32 = 0x3002
	EGLBadAlloc     uint32 = 0x3003
	EGLBadMatch     uint32 = 0x3009
	EGLBadParameter uint32 = 0x300C
)

// GLError returns the GL error enum reported for err.
func GLError(err error) uint32 {
	switch {
	case err == nil:
		return GLNoError
	case errors.Is(err, ErrInvalidEnum):
		return GLInvalidEnum
	case errors.Is(err, ErrInvalidValue), errors.Is(err, ErrBadParameter):
		return GLInvalidValue
	case errors.Is(err, ErrOutOfMemory):
		return GLOutOfMemory
	default:
		return GLInvalidOperation
	}
}

// EGLError returns the EGL error enum reported for err.
func EGLError(err error) uint32 {
	switch {
	case err == nil:
		return EGLSuccess
	case errors.Is(err, ErrBadAccess):
		return EGLBadAccess
	case errors.Is(err, ErrBadMatch):
		return EGLBadMatch
	case errors.Is(err, ErrOutOfMemory):
		return EGLBadAlloc
	default:
		return EGLBadParameter
	}
}
