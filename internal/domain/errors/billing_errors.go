package errors

import (
	"fmt"

	apperrors "github.com/richstorm00/saas-starter/pkg/errors"
)

var (
	// ErrInvalidSignature indicates that a webhook payload failed signature verification
	ErrInvalidSignature = apperrors.NewAppError(apperrors.ErrInvalidArgument, "Invalid signature", nil)

	// ErrMissingRequiredMetadata indicates that a checkout session lacks userId or priceId
	ErrMissingRequiredMetadata = apperrors.NewAppError(apperrors.ErrInvalidArgument, "Missing userId or priceId in session metadata", nil)

	// ErrUserNotFound indicates that no user owns the given customer
	ErrUserNotFound = apperrors.NewAppError(apperrors.ErrNotFound, "User not found", nil)

	// ErrInvalidSubscriptionData indicates a stored subscription that cannot be interpreted
	ErrInvalidSubscriptionData = apperrors.NewAppError(apperrors.ErrInvalidData, "Invalid subscription data", nil)

	// ErrNoSubscriptionFound indicates that the user has no subscription to act on
	ErrNoSubscriptionFound = apperrors.NewAppError(apperrors.ErrNotFound, "No subscription found", nil)

	// ErrNoCustomerFound indicates that the user has no processor customer
	ErrNoCustomerFound = apperrors.NewAppError(apperrors.ErrNotFound, "No customer found", nil)

	// ErrPortalCreationFailed indicates that the portal session could not be created
	ErrPortalCreationFailed = apperrors.NewAppError(apperrors.ErrInternal, "Failed to create portal", nil)

	// ErrSessionNotFound indicates an unknown checkout session
	ErrSessionNotFound = apperrors.NewAppError(apperrors.ErrNotFound, "Checkout session not found", nil)

	// ErrSessionUserMismatch indicates a checkout session owned by another user
	ErrSessionUserMismatch = apperrors.NewAppError(apperrors.ErrUnauthorized, "Session does not belong to this user", nil)

	// ErrSubscriptionUserMismatch indicates a subscription whose customer belongs to another user
	ErrSubscriptionUserMismatch = apperrors.NewAppError(apperrors.ErrUnauthorized, "Subscription does not belong to this user", nil)

	// ErrSubscriptionNotFound indicates that the processor has no such subscription
	ErrSubscriptionNotFound = apperrors.NewAppError(apperrors.ErrNotFound, "Subscription not found", nil)

	// ErrMetadataUpdateFailed indicates that the identity provider rejected a metadata write
	ErrMetadataUpdateFailed = apperrors.NewAppError(apperrors.ErrInternal, "Failed to update user metadata", nil)
)

// ConfigurationError is returned when the processor account is missing
// configuration that only an operator can add.
type ConfigurationError struct {
	Message string
	Cause   error
}

func (e *ConfigurationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("configuration error: %s: %v", e.Message, e.Cause)
	}
	return "configuration error: " + e.Message
}

func (e *ConfigurationError) Unwrap() error {
	return e.Cause
}

// NewConfigurationError wraps a ConfigurationError in an application error.
func NewConfigurationError(message string, cause error) error {
	return apperrors.NewAppError(apperrors.ErrConfiguration, message, &ConfigurationError{Message: message, Cause: cause})
}

// ProcessorError carries a failure reported by the payment processor.
type ProcessorError struct {
	Operation string
	Details   string
	Cause     error
}

func (e *ProcessorError) Error() string {
	return fmt.Sprintf("payment processor %s failed: %s", e.Operation, e.Details)
}

func (e *ProcessorError) Unwrap() error {
	return e.Cause
}

// NewProcessorError wraps a ProcessorError in an application error with message.
func NewProcessorError(message, operation string, cause error) error {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return apperrors.NewAppError(apperrors.ErrUpstream, message, &ProcessorError{
		Operation: operation,
		Details:   details,
		Cause:     cause,
	})
}
