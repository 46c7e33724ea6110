package internalerr

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	ErrTokenization  = errors.New("tokenization error")
	ErrScoring       = errors.New("scoring error")
	ErrDecode        = errors.New("decode error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
)

// Kind classifies a pipeline failure. The string form is what terminal
// error events carry on the wire.
type Kind string

const (
	KindTokenization  Kind = "tokenization"
	KindScoring       Kind = "scoring"
	KindDecode        Kind = "decode"
	KindConfiguration Kind = "configuration"
)

// Error is a classified pipeline failure.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return target == sentinel(e.Kind)
}

func sentinel(k Kind) error {
	switch k {
	case KindTokenization:
		return ErrTokenization
	case KindScoring:
		return ErrScoring
	case KindDecode:
		return ErrDecode
	case KindConfiguration:
		return ErrConfiguration
	}
	return nil
}

// New builds a classified error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind.
func Wrap(kind Kind, err error, msg string) *Error {
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf reports the kind of err, and false when err is not classified.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	for _, k := range []Kind{KindTokenization, KindScoring, KindDecode, KindConfiguration} {
		if errors.Is(err, sentinel(k)) {
			return k, true
		}
	}
	return "", false
}
