package errors

import (
	"fmt"
	"strings"
)

// ErrAuthExchangeFailed is returned when the marketplace rejects an
// authorization-code exchange. Body carries the upstream response verbatim.
type ErrAuthExchangeFailed struct {
	StatusCode int
	Body       string
}

func (e *ErrAuthExchangeFailed) Error() string {
	return fmt.Sprintf("token exchange failed: status %d: %s", e.StatusCode, e.Body)
}

// ErrUnauthorized is returned when no usable access token is held and a
// refresh also failed. LoginURL tells the caller how to re-authorize.
type ErrUnauthorized struct {
	Message  string
	LoginURL string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrNotFound is returned when the marketplace has no matching product
// or no price data for a SKU.
type ErrNotFound struct {
	Resource string
	Query    string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.Query)
}

// ErrUpstream is returned after the retry budget for a marketplace call
// is exhausted.
type ErrUpstream struct {
	Operation  string
	StatusCode int
	Message    string
}

func (e *ErrUpstream) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: upstream error: status %d: %s", e.Operation, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: upstream error: %s", e.Operation, e.Message)
}

// ErrValidation is returned when input is unusable (missing SKU, no priced
// variants in a snapshot).
type ErrValidation struct {
	Message string
}

func (e *ErrValidation) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "validation failed"
}

// UserError is one field-level error from a storefront mutation response.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// ErrStorefrontMutation is returned when the storefront reports field-level
// user errors for a mutation.
type ErrStorefrontMutation struct {
	Mutation   string
	UserErrors []UserError
}

func (e *ErrStorefrontMutation) Error() string {
	msgs := make([]string, len(e.UserErrors))
	for i, ue := range e.UserErrors {
		if len(ue.Field) > 0 {
			msgs[i] = fmt.Sprintf("%s: %s", strings.Join(ue.Field, "."), ue.Message)
		} else {
			msgs[i] = ue.Message
		}
	}
	return fmt.Sprintf("%s userErrors: %s", e.Mutation, strings.Join(msgs, "; "))
}

// ErrInternal wraps an unexpected failure caught at the pipeline boundary.
type ErrInternal struct {
	Message string
}

func (e *ErrInternal) Error() string {
	return fmt.Sprintf("internal error: %s", e.Message)
}
