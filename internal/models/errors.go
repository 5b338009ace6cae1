package models

import "errors"

// Failure kinds. Every error surfaced to the user wraps exactly one of them.
var (
	// ErrValidation marks a missing or malformed input. Nothing was sent over the network.
	ErrValidation = errors.New("validation failed")
	// ErrProvider marks a failed call to the store, the geocoder or the platform.
	ErrProvider = errors.New("provider failure")
	// ErrNotFound marks a lookup that completed but found nothing.
	ErrNotFound = errors.New("not found")
	// ErrSecondary marks a failed follow-up step after the primary write succeeded.
	ErrSecondary = errors.New("secondary failure")
)

// Failure is a user-facing error of a known kind.
type Failure struct {
	Kind    error
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Err != nil {
		return f.Message + ": " + f.Err.Error()
	}
	return f.Message
}

// Unwrap exposes both the kind and the underlying cause to errors.Is and errors.As.
func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}

// Validation returns an ErrValidation failure.
func Validation(msg string) *Failure {
	return &Failure{Kind: ErrValidation, Message: msg}
}

// Provider returns an ErrProvider failure wrapping err.
func Provider(msg string, err error) *Failure {
	return &Failure{Kind: ErrProvider, Message: msg, Err: err}
}

// NotFound returns an ErrNotFound failure.
func NotFound(msg string) *Failure {
	return &Failure{Kind: ErrNotFound, Message: msg}
}

// Secondary returns an ErrSecondary failure wrapping err.
func Secondary(msg string, err error) *Failure {
	return &Failure{Kind: ErrSecondary, Message: msg, Err: err}
}

// KindOf returns the failure kind of err, or ErrProvider for errors of unknown kind.
// It returns nil for a nil error.
func KindOf(err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrSecondary, ErrProvider} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return ErrProvider
}
