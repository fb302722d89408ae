// Package errors defines the typed error surface every public API in this
// module returns. Callers outside this module (a REST layer, a CLI shell,
// a C-ABI binding) map AppError.Kind to their own presentation; none of
// those consumers live here.
package errors

import "fmt"

// ErrorKind categorizes an AppError by the part of the system that raised it.
type ErrorKind string

const (
	KindParse            ErrorKind = "PARSE"
	KindNoSuchCorpus      ErrorKind = "NO_SUCH_CORPUS"
	KindLoadingFailed     ErrorKind = "LOADING_FAILED"
	KindAlreadyLocked     ErrorKind = "ALREADY_LOCKED"
	KindStorageIO         ErrorKind = "STORAGE_IO"
	KindCorrupted         ErrorKind = "CORRUPTED"
	KindImpossibleSearch  ErrorKind = "IMPOSSIBLE_SEARCH"
	KindTimeout           ErrorKind = "AQL_TIMEOUT"
	KindMemoryLimit       ErrorKind = "MEMORY_LIMIT"
	KindInvalidUpdate     ErrorKind = "INVALID_UPDATE"
)

// AppError is the module's error type. It always carries a Kind so callers
// can branch on category without string-matching the message.
type AppError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is and errors.As to work.
func (e *AppError) Unwrap() error { return e.Err }

func New(kind ErrorKind, message string) error {
	return &AppError{Kind: kind, Message: message}
}

func NewWrapped(kind ErrorKind, message string, err error) error {
	return &AppError{Kind: kind, Message: message, Err: err}
}

func NewParse(message string) error       { return New(KindParse, message) }
func NewNoSuchCorpus(name string) error    { return New(KindNoSuchCorpus, "corpus not found: "+name) }
func NewLoadingFailed(message string, err error) error {
	return NewWrapped(KindLoadingFailed, message, err)
}
func NewAlreadyLocked(path string) error {
	return New(KindAlreadyLocked, "corpus storage already locked: "+path)
}
func NewStorageIO(message string, err error) error { return NewWrapped(KindStorageIO, message, err) }
func NewCorrupted(message string) error            { return New(KindCorrupted, message) }
func NewImpossibleSearch(message string) error     { return New(KindImpossibleSearch, message) }
func NewTimeout(message string) error               { return New(KindTimeout, message) }
func NewMemoryLimit(message string) error           { return New(KindMemoryLimit, message) }
func NewInvalidUpdate(message string) error         { return New(KindInvalidUpdate, message) }

// Wrap wraps an error with additional context, preserving its Kind if it is
// already an *AppError.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	if appErr, ok := err.(*AppError); ok {
		return &AppError{
			Kind:    appErr.Kind,
			Message: fmt.Sprintf("%s: %s", message, appErr.Message),
			Err:     appErr.Err,
		}
	}
	return &AppError{Kind: KindStorageIO, Message: message, Err: err}
}

func Is(err error, kind ErrorKind) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Kind == kind
}

func IsParse(err error) bool           { return Is(err, KindParse) }
func IsNoSuchCorpus(err error) bool     { return Is(err, KindNoSuchCorpus) }
func IsLoadingFailed(err error) bool    { return Is(err, KindLoadingFailed) }
func IsAlreadyLocked(err error) bool    { return Is(err, KindAlreadyLocked) }
func IsStorageIO(err error) bool        { return Is(err, KindStorageIO) }
func IsCorrupted(err error) bool        { return Is(err, KindCorrupted) }
func IsImpossibleSearch(err error) bool { return Is(err, KindImpossibleSearch) }
func IsTimeout(err error) bool          { return Is(err, KindTimeout) }
func IsMemoryLimit(err error) bool      { return Is(err, KindMemoryLimit) }
func IsInvalidUpdate(err error) bool    { return Is(err, KindInvalidUpdate) }
