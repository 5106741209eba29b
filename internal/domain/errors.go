package domain

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindInvalidState
	KindUnauthorized
	KindValidation
	KindBusinessRule
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation_error"
	case KindBusinessRule:
		return "business_rule_violation"
	case KindConflict:
		return "conflict"
	default:
		return "internal_error"
	}
}

// Error is a failure the caller can act on. Two Errors match under errors.Is when their codes match,
// so a sentinel can be re-issued with a more specific message.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Withf returns a copy of e carrying a formatted message.
func (e *Error) Withf(format string, args ...any) *Error {
	return &Error{Kind: e.Kind, Code: e.Code, Message: fmt.Sprintf(format, args...)}
}

func newErr(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

var (
	ErrOrderNotFound = newErr(KindNotFound, "ORDER_NOT_FOUND", "order not found")
	ErrItemNotFound  = newErr(KindNotFound, "ITEM_NOT_FOUND", "item not found")
	ErrInvalidItem   = newErr(KindNotFound, "INVALID_ITEM", "item not found")
	ErrLineNotFound  = newErr(KindNotFound, "LINE_NOT_FOUND", "item not found in order")
	ErrUserNotFound  = newErr(KindNotFound, "USER_NOT_FOUND", "user not found")
	ErrNoItems       = newErr(KindNotFound, "NO_ITEMS", "no items found")

	ErrOrderNotPending   = newErr(KindInvalidState, "ORDER_NOT_PENDING", "order is not pending")
	ErrAlreadyComplete   = newErr(KindInvalidState, "ALREADY_COMPLETE", "order is already complete")
	ErrInvalidTransition = newErr(KindInvalidState, "INVALID_TRANSITION", "status transition not allowed")
	ErrItemReferenced    = newErr(KindInvalidState, "ITEM_REFERENCED", "item is referenced by existing orders")
	ErrUserReferenced    = newErr(KindInvalidState, "USER_REFERENCED", "user is referenced by existing orders")

	ErrUnauthorized       = newErr(KindUnauthorized, "UNAUTHORIZED", "unauthorized action")
	ErrInvalidCredentials = newErr(KindUnauthorized, "INVALID_CREDENTIALS", "invalid credentials or unverified email")
	ErrInvalidToken       = newErr(KindUnauthorized, "INVALID_TOKEN", "invalid or expired token")
	ErrForbidden          = newErr(KindUnauthorized, "FORBIDDEN", "forbidden")
	ErrNotVerified        = newErr(KindUnauthorized, "NOT_VERIFIED", "account not verified")

	ErrValidation    = newErr(KindValidation, "VALIDATION", "invalid request")
	ErrInvalidStatus = newErr(KindValidation, "INVALID_STATUS", "invalid status value")
	ErrInvalidWaiter = newErr(KindValidation, "INVALID_WAITER", "invalid waiter id")
	ErrInvalidRole   = newErr(KindValidation, "INVALID_ROLE", "invalid role")

	ErrItemExpired       = newErr(KindBusinessRule, "ITEM_EXPIRED", "item is expired")
	ErrExpiredItem       = newErr(KindBusinessRule, "EXPIRED_ITEM", "item is expired and cannot be added")
	ErrItemInvalid       = newErr(KindBusinessRule, "ITEM_INVALID", "item is invalid")
	ErrInsufficientStock = newErr(KindBusinessRule, "INSUFFICIENT_STOCK", "insufficient stock")

	ErrDuplicateSKU   = newErr(KindConflict, "DUPLICATE_SKU", "sku already exists")
	ErrDuplicateEmail = newErr(KindConflict, "DUPLICATE_EMAIL", "email already registered")
)

// Validationf builds a validation error with a caller-facing message.
func Validationf(format string, args ...any) *Error {
	return ErrValidation.Withf(format, args...)
}

// KindOf extracts the kind of err, KindInternal when err is not a domain error.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}
