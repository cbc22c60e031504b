// Package mcperr defines the closed set of typed errors the SDK surfaces
// across the tool invocation boundary, together with their JSON-RPC 2.0
// wire projection. Every error crossing the wrapper boundary is a member of
// this taxonomy; unrecognized errors are coerced via Normalize.
package mcperr

import (
	"errors"
	"fmt"
	"time"
)

// Error is a typed SDK error with a stable numeric code and an optional
// structured payload. Instances are immutable once constructed.
type Error struct {
	Code    int
	Message string
	Data    map[string]interface{}
	cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// ErrorObject is the wire projection of an Error: {code, message, data?}.
type ErrorObject struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Response is the JSON-RPC 2.0 error envelope.
type Response struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      interface{} `json:"id"`
	Error   ErrorObject `json:"error"`
}

// Object returns the {code, message, data?} projection. Data is nil (and
// therefore omitted from JSON) when no structured payload was supplied.
func (e *Error) Object() ErrorObject {
	obj := ErrorObject{
		Code:    e.Code,
		Message: e.Message,
	}
	if len(e.Data) > 0 {
		obj.Data = e.Data
	}
	return obj
}

// Response wraps the projection in a JSON-RPC 2.0 envelope. A nil id is
// serialized as null, matching the protocol's notification error shape.
func (e *Error) Response(id interface{}) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   e.Object(),
	}
}

// New creates a taxonomy error with an arbitrary registered code. Prefer the
// variant constructors below; New exists for protocol-standard codes that
// carry no structured payload.
func New(code int, message string) *Error {
	return &Error{Code: code, Message: message}
}

// NewValidationError reports a schema validation failure for a single field.
func NewValidationError(field, reason string, value interface{}) *Error {
	return &Error{
		Code:    CodeValidationError,
		Message: fmt.Sprintf("validation failed for field '%s': %s", field, reason),
		Data: map[string]interface{}{
			"field":  field,
			"reason": reason,
			"value":  value,
		},
	}
}

// NewToolNotFound reports a request for an unregistered tool.
func NewToolNotFound(tool string) *Error {
	return &Error{
		Code:    CodeToolNotFound,
		Message: fmt.Sprintf("tool not found: %s", tool),
		Data: map[string]interface{}{
			"tool": tool,
		},
	}
}

// NewToolExecutionError wraps an unrecognized handler failure. The cause is
// retained for errors.Is/As chains but never serialized.
func NewToolExecutionError(tool string, cause error) *Error {
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	return &Error{
		Code:    CodeToolExecutionError,
		Message: fmt.Sprintf("tool '%s' execution failed: %s", tool, reason),
		Data: map[string]interface{}{
			"tool":   tool,
			"reason": reason,
		},
		cause: cause,
	}
}

// NewResourceNotFound reports a missing resource by identifier.
func NewResourceNotFound(resource string) *Error {
	return &Error{
		Code:    CodeResourceNotFound,
		Message: fmt.Sprintf("resource not found: %s", resource),
		Data: map[string]interface{}{
			"resource": resource,
		},
	}
}

// NewAuthenticationError reports missing or invalid caller credentials.
func NewAuthenticationError(message string) *Error {
	if message == "" {
		message = "authentication required"
	}
	return &Error{Code: CodeAuthenticationError, Message: message}
}

// NewAuthorizationError reports a caller that is authenticated but not
// permitted to perform the operation.
func NewAuthorizationError(message string) *Error {
	if message == "" {
		message = "authorization denied"
	}
	return &Error{Code: CodeAuthorizationError, Message: message}
}

// NewRateLimitError reports that the caller exceeded its rate limit.
// retryAfter is advisory; zero means no hint.
func NewRateLimitError(retryAfter time.Duration) *Error {
	e := &Error{
		Code:    CodeRateLimitError,
		Message: "rate limit exceeded",
	}
	if retryAfter > 0 {
		e.Data = map[string]interface{}{
			"retryAfterMs": retryAfter.Milliseconds(),
		}
	}
	return e
}

// NewTimeoutError reports that an operation exceeded its configured timeout.
func NewTimeoutError(operation string, timeout time.Duration) *Error {
	return &Error{
		Code:    CodeTimeoutError,
		Message: fmt.Sprintf("operation '%s' timed out after %dms", operation, timeout.Milliseconds()),
		Data: map[string]interface{}{
			"operation": operation,
			"timeoutMs": timeout.Milliseconds(),
		},
	}
}

// NewDependencyError reports an unavailable upstream dependency.
func NewDependencyError(dependency, reason string) *Error {
	return &Error{
		Code:    CodeDependencyError,
		Message: fmt.Sprintf("dependency '%s' unavailable: %s", dependency, reason),
		Data: map[string]interface{}{
			"dependency": dependency,
			"reason":     reason,
		},
	}
}

// NewConfigurationError reports required setup that is missing or invalid,
// e.g. the billing gate being used before initialization.
func NewConfigurationError(message string) *Error {
	return &Error{Code: CodeConfigurationError, Message: message}
}

// NewPaymentRequired is the generic billing denial. actionURL and priceID
// are optional context for building a payment prompt.
func NewPaymentRequired(message, actionURL, priceID string) *Error {
	if message == "" {
		message = "payment required"
	}
	e := &Error{Code: CodePaymentRequired, Message: message}
	data := map[string]interface{}{}
	if actionURL != "" {
		data["actionUrl"] = actionURL
	}
	if priceID != "" {
		data["priceId"] = priceID
	}
	if len(data) > 0 {
		e.Data = data
	}
	return e
}

// NewInsufficientCredits reports a credits-based denial with the amount the
// operation requires. available is nil when the caller's balance is unknown,
// e.g. when the billing authority could not be reached; the message and data
// then make no claim about the balance.
func NewInsufficientCredits(required int, available *int, actionURL string) *Error {
	data := map[string]interface{}{
		"required": required,
	}
	message := fmt.Sprintf("insufficient credits: %d required", required)
	if available != nil {
		data["available"] = *available
		message = fmt.Sprintf("insufficient credits: %d required, %d available", required, *available)
	}
	if actionURL != "" {
		data["actionUrl"] = actionURL
	}
	return &Error{
		Code:    CodeInsufficientCredits,
		Message: message,
		Data:    data,
	}
}

// NewSubscriptionRequired reports a tier-based denial. currentTier may be
// empty when the billing authority did not report one.
func NewSubscriptionRequired(requiredTier, currentTier, upgradeURL string) *Error {
	data := map[string]interface{}{
		"requiredTier": requiredTier,
	}
	if currentTier != "" {
		data["currentTier"] = currentTier
	}
	if upgradeURL != "" {
		data["upgradeUrl"] = upgradeURL
	}
	return &Error{
		Code:    CodeSubscriptionRequired,
		Message: fmt.Sprintf("subscription tier '%s' required", requiredTier),
		Data:    data,
	}
}

// WithReason returns a copy of the error whose data carries a denial reason.
// The receiver is unchanged; an empty reason returns the receiver as-is.
func (e *Error) WithReason(reason string) *Error {
	if reason == "" {
		return e
	}
	data := make(map[string]interface{}, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data["reason"] = reason
	return &Error{Code: e.Code, Message: e.Message, Data: data, cause: e.cause}
}

// Normalize coerces an arbitrary error into the taxonomy. Taxonomy members
// pass through unchanged; anything else becomes a tool-execution failure
// wrapping the original message and cause.
func Normalize(err error, tool string) *Error {
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return NewToolExecutionError(tool, err)
}
