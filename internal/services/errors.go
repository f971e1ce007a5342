package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies service errors for the transport layer.
type ErrorKind int

const (
	KindValidation ErrorKind = iota + 1
	KindNotFound
	KindInvalidState
	KindUpstream
	KindAuth
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindUpstream:
		return "upstream"
	case KindAuth:
		return "auth"
	default:
		return "unknown"
	}
}

// Error is a structured service error. Two errors match under errors.Is when
// their codes are equal.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Fields  map[string]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// With returns a copy of e carrying a more specific message.
func (e *Error) With(format string, args ...any) *Error {
	cp := *e
	cp.Message = fmt.Sprintf(format, args...)
	return &cp
}

// Field returns a copy of e with a field-level detail attached.
func (e *Error) Field(name, detail string) *Error {
	cp := *e
	cp.Fields = map[string]string{name: detail}
	return &cp
}

// Wrap returns a copy of e with err as its cause.
func (e *Error) Wrap(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

var (
	ErrValidation = &Error{Kind: KindValidation, Code: "validation_error", Message: "invalid input"}

	ErrUserNotFound      = &Error{Kind: KindNotFound, Code: "user_not_found", Message: "user with this phone number does not exist"}
	ErrChallengeNotFound = &Error{Kind: KindNotFound, Code: "otp_not_found", Message: "no OTP found for this user"}
	ErrChallengeExpired  = &Error{Kind: KindValidation, Code: "otp_expired", Message: "OTP has expired"}
	ErrChallengeUsed     = &Error{Kind: KindValidation, Code: "otp_already_used", Message: "OTP has already been used"}
	ErrCodeMismatch      = &Error{Kind: KindValidation, Code: "otp_code_mismatch", Message: "invalid OTP code"}

	ErrCategoryNotFound = &Error{Kind: KindNotFound, Code: "category_not_found", Message: "category not found"}
	ErrProductNotFound  = &Error{Kind: KindNotFound, Code: "product_not_found", Message: "product not found"}

	ErrInvalidItem     = &Error{Kind: KindValidation, Code: "invalid_item", Message: "product or variant does not exist or is not active"}
	ErrInvalidQuantity = &Error{Kind: KindValidation, Code: "invalid_quantity", Message: "quantity must be at least 1"}
	ErrOrderNotFound   = &Error{Kind: KindNotFound, Code: "order_not_found", Message: "order not found"}

	ErrPaymentNotFound   = &Error{Kind: KindNotFound, Code: "payment_not_found", Message: "payment not found"}
	ErrInvalidState      = &Error{Kind: KindInvalidState, Code: "invalid_state", Message: "cannot create payment for non-pending order"}
	ErrUnsupportedMethod = &Error{Kind: KindValidation, Code: "unsupported_method", Message: "unsupported payment method"}
	ErrInvalidSignature  = &Error{Kind: KindAuth, Code: "invalid_signature", Message: "invalid gateway signature"}

	ErrUpstream          = &Error{Kind: KindUpstream, Code: "upstream_error", Message: "upstream service failure"}
	ErrInvalidTelegramID = &Error{Kind: KindValidation, Code: "invalid_telegram_id", Message: "invalid Telegram ID"}
	ErrInvalidToken      = &Error{Kind: KindAuth, Code: "invalid_token", Message: "token is invalid or expired"}
)

// KindOf returns the kind of err, or zero when err is not a service error.
func KindOf(err error) ErrorKind {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Kind
	}
	return 0
}
