package docstore

import (
	"errors"
	"fmt"
)

// Error is returned by every Service operation that fails for a reason a
// caller can act on.
//
// Codes map onto client-visible outcomes:
//   - MALFORMED_DOCUMENT: stored bytes do not decode; not retried
//   - LOCK_TIMEOUT: the document lock could not be acquired; retry later
//   - NOT_FOUND: no such document or response
//   - VALIDATION_FAILED: the submission or patch was rejected
//   - DUPLICATE_SUBMISSION: the respondent already answered a single-response form
//
// Storage I/O failures are returned wrapped, without an Error.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// DocumentID identifies the affected form.
	DocumentID string

	// QuestionID is set for validation failures tied to one question.
	QuestionID string

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes errors.
type ErrorCode string

const (
	ErrCodeMalformed  ErrorCode = "MALFORMED_DOCUMENT"
	ErrCodeLock       ErrorCode = "LOCK_TIMEOUT"
	ErrCodeNotFound   ErrorCode = "NOT_FOUND"
	ErrCodeValidation ErrorCode = "VALIDATION_FAILED"
	ErrCodeDuplicate  ErrorCode = "DUPLICATE_SUBMISSION"
)

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.QuestionID != "":
		return fmt.Sprintf("%s: %s (form=%s, question=%s)", e.Code, e.Message, e.DocumentID, e.QuestionID)
	case e.DocumentID != "":
		return fmt.Sprintf("%s: %s (form=%s)", e.Code, e.Message, e.DocumentID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsMalformed reports whether err is a MALFORMED_DOCUMENT error.
func IsMalformed(err error) bool { return hasCode(err, ErrCodeMalformed) }

// IsLockTimeout reports whether err is a LOCK_TIMEOUT error.
func IsLockTimeout(err error) bool { return hasCode(err, ErrCodeLock) }

// IsNotFound reports whether err is a NOT_FOUND error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsValidation reports whether err is a VALIDATION_FAILED error.
func IsValidation(err error) bool { return hasCode(err, ErrCodeValidation) }

// IsDuplicate reports whether err is a DUPLICATE_SUBMISSION error.
func IsDuplicate(err error) bool { return hasCode(err, ErrCodeDuplicate) }

func newMalformedError(docID string, cause error) *Error {
	return &Error{Code: ErrCodeMalformed, Message: "stored document does not decode", DocumentID: docID, Err: cause}
}

func newLockTimeoutError(docID string, cause error) *Error {
	return &Error{Code: ErrCodeLock, Message: "document is locked by another writer", DocumentID: docID, Err: cause}
}

func newNotFoundError(docID, what string, cause error) *Error {
	return &Error{Code: ErrCodeNotFound, Message: what + " not found", DocumentID: docID, Err: cause}
}

func newValidationError(docID, questionID, msg string, cause error) *Error {
	return &Error{Code: ErrCodeValidation, Message: msg, DocumentID: docID, QuestionID: questionID, Err: cause}
}

func newDuplicateError(docID string, previous int) *Error {
	return &Error{
		Code:       ErrCodeDuplicate,
		Message:    fmt.Sprintf("respondent already submitted (response %d)", previous),
		DocumentID: docID,
	}
}
