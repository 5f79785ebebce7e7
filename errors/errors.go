package errors

import (
	"errors"
	"fmt"
)

var (
	ErrAuthFailed      = errors.New("authentication failed")
	ErrInvalidAuth     = errors.New("invalid authorization token")
	ErrNotFound        = errors.New("cannot find resource")
	ErrConsumerExists  = errors.New("consumer already exists")
	ErrIncompleteCreds = errors.New("consumer has incomplete canvas credentials")
	ErrSubjectMismatch = errors.New("token subject does not match consumer")

	ErrInitFailed = errors.New("initialization failed")

	// Encryption errors

	ErrNotEnoughData        = errors.New("not enough data")
	ErrUnknownVersion       = errors.New("unknown encryption version")
	ErrUnsupportedAlgorithm = errors.New("unsupported encryption algorithm")
	ErrDecryptionFailed     = errors.New("decryption failed")

	// Config errors

	ErrMissingEnv  = errors.New("missing required environment variable")
	ErrInvalidPort = errors.New("port must be between 0 and 65535")
	ErrInvalidMode = errors.New("app mode must be either server or job")

	// Misc

	ErrInvalidInterfaceType = errors.New("an invalid interface type was passed as argument")
)

// Custom error wrapper
type ErrorWrapper struct {
	Origin string
	Text   string
	Err    error
}

// When ErrorWrapper is treated as an error type, this is used.
func (err ErrorWrapper) Error() string {
	if err.Err == nil {
		return fmt.Sprintf("%v: %v", err.Origin, err.Text)
	}
	return fmt.Sprintf("%v: %v: %v", err.Origin, err.Text, err.Err)
}

// Unwrap exposes the wrapped error to Is and As.
func (err ErrorWrapper) Unwrap() error {
	return err.Err
}

// NewError returns an ErrorWrapper which contains information on which package and/or function
// the error originated, the error text/message, and the error itself
func NewError(origin string, text string, err error) ErrorWrapper {
	return ErrorWrapper{
		Origin: origin,
		Text:   text,
		Err:    err,
	}
}

// Re-exports, so packages import only this one for error handling.

func As(err error, target any) bool {
	return errors.As(err, target)
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func Join(errs ...error) error {
	return errors.Join(errs...)
}

func New(text string) error {
	return errors.New(text)
}

func Unwrap(err error) error {
	return errors.Unwrap(err)
}
