package domain

import "fmt"

// Error types for consistent error handling across the BFA.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrTimeout indicates an operation exceeded its deadline.
type ErrTimeout struct {
	Operation string
}

func (e *ErrTimeout) Error() string {
	return fmt.Sprintf("operation timed out: %s", e.Operation)
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a validation error (bad input).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrForbidden indicates the user lacks permission for the operation.
type ErrForbidden struct {
	Action string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Action)
}

// ErrUnauthorized indicates invalid credentials or token.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a resource already exists (e.g. duplicate CNPJ).
type ErrConflict struct {
	Message string
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// ErrRateLimited indicates the upstream refused the call for rate reasons.
type ErrRateLimited struct {
	Message string
}

func (e *ErrRateLimited) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Muitas tentativas. Aguarde alguns minutos e tente novamente"
}

// OAuth callback error codes, sent to the result page as ?error=<code>.
const (
	OAuthErrMissingParams  = "missing_params"
	OAuthErrProvider       = "provider_error"
	OAuthErrInvalidState   = "invalid_state"
	OAuthErrSessionExpired = "session_expired"
	OAuthErrForbidden      = "forbidden"
	OAuthErrExchange       = "exchange_failed"
	OAuthErrStorage        = "storage_failed"
	OAuthErrNotConfigured  = "not_configured"
)

// ErrOAuth is a failed step of the OAuth callback flow.
type ErrOAuth struct {
	Code string
	Err  error
}

func (e *ErrOAuth) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("oauth %s: %v", e.Code, e.Err)
	}
	return "oauth " + e.Code
}

func (e *ErrOAuth) Unwrap() error {
	return e.Err
}

// ErrInvalidGrant indicates the provider rejected a refresh token for good.
type ErrInvalidGrant struct {
	Description string
}

func (e *ErrInvalidGrant) Error() string {
	return fmt.Sprintf("invalid_grant: %s", e.Description)
}
