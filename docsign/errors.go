package docsign

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindValidation        Kind = "validation"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
	KindUnsupportedFormat Kind = "unsupported_format"
	KindIO                Kind = "io"
	KindStorage           Kind = "storage"
	KindPartialSign       Kind = "partial_sign"
)

// Sentinels to match errors of a kind with errors.Is.
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrConflict          = &Error{Kind: KindConflict}
	ErrUnsupportedFormat = &Error{Kind: KindUnsupportedFormat}
	ErrIO                = &Error{Kind: KindIO}
	ErrStorage           = &Error{Kind: KindStorage}
	ErrPartialSign       = &Error{Kind: KindPartialSign}
)

type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Op == "" || t.Op == e.Op)
}

func newError(kind Kind, op string, err error, format string, args ...any) *Error {
	return &Error{
		Kind:    kind,
		Op:      op,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

// PartialSignError is returned when the signed artifact was written but the
// ledger entry and document update could not be committed. ArtifactPath names
// the orphaned artifact.
type PartialSignError struct {
	DocumentID   string
	ArtifactPath string
	Err          error
}

func (e *PartialSignError) Error() string {
	return fmt.Sprintf("signed artifact %s of document %s was written but not recorded: %s", e.ArtifactPath, e.DocumentID, e.Err)
}

func (e *PartialSignError) Unwrap() error {
	return e.Err
}

func (e *PartialSignError) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == KindPartialSign
}

// KindOf returns the kind of err, or an empty Kind for errors which did not originate here.
func KindOf(err error) Kind {
	var partialErr *PartialSignError
	if errors.As(err, &partialErr) {
		return KindPartialSign
	}
	var docErr *Error
	if errors.As(err, &docErr) {
		return docErr.Kind
	}
	return ""
}
