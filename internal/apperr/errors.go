package apperr

import (
	"errors"
	"fmt"
)

type AppError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches another AppError by code, so sentinel values work with errors.Is.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code && (other.Message == "" || other.Message == e.Message)
}

// Constructors
func New(code Code, message string) error {
	return &AppError{Code: code, Message: message}
}

func Wrap(code Code, message string, cause error) error {
	return &AppError{Code: code, Message: message, Cause: cause}
}

func Validation(msg string) error {
	return New(CodeValidation, msg)
}

func Validationf(format string, args ...any) error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

func InvalidKind(kind string) error {
	return New(CodeInvalidKind, fmt.Sprintf("unrecognized message kind %q", kind))
}

func NotFound(msg string) error {
	return New(CodeNotFound, msg)
}

func Forbidden(msg string) error {
	return New(CodeForbidden, msg)
}

func Encryption(cause error) error {
	return Wrap(CodeEncryption, "encrypt message body", cause)
}

func Decryption(cause error) error {
	return Wrap(CodeDecryption, "decrypt message body", cause)
}

func TranslationUnavailable(cause error) error {
	return Wrap(CodeTranslationUnavailable, "translation unavailable", cause)
}

func Broadcast(channel string, cause error) error {
	return Wrap(CodeBroadcast, "publish to "+channel, cause)
}

func Internal(msg string, cause error) error {
	return Wrap(CodeInternal, msg, cause)
}

// CodeOf returns the code of the first AppError in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	return CodeOf(err) == code
}
