// Package errors provides the standardized error taxonomy shared by the loan
// flow, the partner API client and the BPMN job workers.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Local validation and OTP errors
const (
	ErrCodeValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrCodeOTPInvalid        ErrorCode = "OTP_INVALID"
	ErrCodeOTPMaxAttempts    ErrorCode = "OTP_MAX_ATTEMPTS"
	ErrCodeOTPResendCooldown ErrorCode = "OTP_RESEND_COOLDOWN"
	ErrCodeOTPNotRequested   ErrorCode = "OTP_NOT_REQUESTED"
)

// Partner backend errors
const (
	ErrCodePartnerTokenFailed     ErrorCode = "PARTNER_TOKEN_FAILED"
	ErrCodeLeadCreateFailed       ErrorCode = "LEAD_CREATE_FAILED"
	ErrCodeLeadSubmitFailed       ErrorCode = "LEAD_SUBMIT_FAILED"
	ErrCodeUpstreamBadGateway     ErrorCode = "UPSTREAM_BAD_GATEWAY"
	ErrCodeUpstreamUnavailable    ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeUpstreamGatewayTimeout ErrorCode = "UPSTREAM_GATEWAY_TIMEOUT"
	ErrCodeUpstreamStatus         ErrorCode = "UPSTREAM_STATUS_ERROR"
	ErrCodeRequestTimeout         ErrorCode = "REQUEST_TIMEOUT"
	ErrCodeNetwork                ErrorCode = "NETWORK_ERROR"
	ErrCodeMalformedResponse      ErrorCode = "MALFORMED_RESPONSE"
	ErrCodeAuthentication         ErrorCode = "AUTHENTICATION_ERROR"
	ErrCodeLookupFailed           ErrorCode = "LOOKUP_FAILED"
)

// Storage and internal errors
const (
	ErrCodeStorage        ErrorCode = "STORAGE_ERROR"
	ErrCodeDatabaseInsert ErrorCode = "DATABASE_INSERT_FAILED"
	ErrCodeDuplicateLead  ErrorCode = "DUPLICATE_LEAD"
	ErrCodeInvalidInput   ErrorCode = "INVALID_INPUT"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying transport error, if any.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// StatusCode returns the upstream HTTP status recorded in Metadata, or 0.
func (e *StandardError) StatusCode() int {
	if e.Metadata == nil {
		return 0
	}
	if code, ok := e.Metadata["statusCode"].(int); ok {
		return code
	}
	return 0
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

// NewValidationError creates a non-retryable field validation error.
func NewValidationError(field, message string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   message,
		Details:   field,
		Retryable: false,
		Metadata:  map[string]interface{}{"field": field},
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidInputError is used by workers when job variables cannot be used.
func NewInvalidInputError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidInput,
		Message:   "Invalid job input",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewOTPInvalidError reports a wrong code with attempts still left.
func NewOTPInvalidError(remaining int) *StandardError {
	noun := "attempt"
	if remaining > 1 {
		noun = "attempts"
	}
	return &StandardError{
		Code:      ErrCodeOTPInvalid,
		Message:   fmt.Sprintf("Invalid OTP. %d %s remaining.", remaining, noun),
		Retryable: false,
		Metadata:  map[string]interface{}{"attemptsRemaining": remaining},
		Timestamp: time.Now().UTC(),
	}
}

// NewOTPMaxAttemptsError reports that the challenge is exhausted.
func NewOTPMaxAttemptsError(maxAttempts int) *StandardError {
	return &StandardError{
		Code:      ErrCodeOTPMaxAttempts,
		Message:   fmt.Sprintf("Maximum attempts (%d) reached. Please try with a different phone number.", maxAttempts),
		Retryable: false,
		Metadata:  map[string]interface{}{"maxAttempts": maxAttempts},
		Timestamp: time.Now().UTC(),
	}
}

// NewOTPResendCooldownError blocks a resend while the countdown runs.
func NewOTPResendCooldownError(remaining time.Duration) *StandardError {
	secs := int((remaining + time.Second - 1) / time.Second)
	return &StandardError{
		Code:      ErrCodeOTPResendCooldown,
		Message:   fmt.Sprintf("Please wait %d seconds before requesting a new OTP.", secs),
		Retryable: true,
		Metadata:  map[string]interface{}{"secondsRemaining": secs},
		Timestamp: time.Now().UTC(),
	}
}

// NewOTPNotRequestedError is returned when verification runs without a challenge.
func NewOTPNotRequestedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeOTPNotRequested,
		Message:   "Please request an OTP first.",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPartnerTokenError wraps a failure to obtain the partner token.
func NewPartnerTokenError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePartnerTokenFailed,
		Message:   "Failed to get partner token",
		Details:   err.Error(),
		Retryable: IsRetryable(err),
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewLeadCreateError wraps a phase-one failure. It is never retried.
func NewLeadCreateError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLeadCreateFailed,
		Message:   "Failed to create lead",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewUpstreamStatusError maps a non-2xx response of the lead submission
// endpoint to the user-facing sentence for that status.
func NewUpstreamStatusError(service string, status int, body string) *StandardError {
	stdErr := &StandardError{
		Details:   strings.TrimSpace(body),
		Retryable: true,
		Metadata:  map[string]interface{}{"service": service, "statusCode": status},
		Timestamp: time.Now().UTC(),
	}

	switch status {
	case http.StatusBadGateway:
		stdErr.Code = ErrCodeUpstreamBadGateway
		stdErr.Message = "Server temporarily unavailable (502). Please try again in a few moments."
	case http.StatusServiceUnavailable:
		stdErr.Code = ErrCodeUpstreamUnavailable
		stdErr.Message = "Service temporarily unavailable (503). Please try again later."
	case http.StatusGatewayTimeout:
		stdErr.Code = ErrCodeUpstreamGatewayTimeout
		stdErr.Message = "Request timeout (504). Please try again."
	case http.StatusUnauthorized, http.StatusForbidden:
		stdErr.Code = ErrCodeAuthentication
		stdErr.Message = fmt.Sprintf("Failed to %s: %d %s", service, status, http.StatusText(status))
		stdErr.Retryable = false
	default:
		stdErr.Code = ErrCodeUpstreamStatus
		stdErr.Message = fmt.Sprintf("Failed to %s: %d %s", service, status, http.StatusText(status))
	}
	return stdErr
}

// NewRequestTimeoutError is used when a per-attempt deadline fires.
func NewRequestTimeoutError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestTimeout,
		Message:   "Request timeout. Please try again.",
		Details:   fmt.Sprintf("%s: %v", service, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNetworkError wraps a transport failure (DNS, refused connection, reset).
func NewNetworkError(service string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNetwork,
		Message:   "Unable to reach the server. Please check your connection and try again.",
		Details:   fmt.Sprintf("%s: %v", service, err),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewMalformedResponseError is returned when a response cannot be decoded or
// misses required identifiers.
func NewMalformedResponseError(service, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeMalformedResponse,
		Message:   "Unexpected response from server. Please try again.",
		Details:   fmt.Sprintf("%s: %s", service, details),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewBusinessRuleError covers `status != "success"` replies from the partner.
func NewBusinessRuleError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLeadSubmitFailed,
		Message:   message,
		Details:   details,
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewAuthenticationError creates a non-retryable auth error.
func NewAuthenticationError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthentication,
		Message:   "Authentication failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLookupError wraps a company or pincode lookup transport failure.
func NewLookupError(kind string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLookupFailed,
		Message:   fmt.Sprintf("%s lookup failed", kind),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewStorageError wraps a session or client-state store failure.
func NewStorageError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStorage,
		Message:   fmt.Sprintf("storage %s failed", op),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDatabaseInsertError wraps a failed INSERT.
func NewDatabaseInsertError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseInsert,
		Message:   "Failed to insert record",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewDuplicateLeadError reports a lead_id that is already recorded.
func NewDuplicateLeadError(leadID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDuplicateLead,
		Message:   "Lead already recorded",
		Details:   leadID,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInternalError wraps anything that has no better classification.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended job retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeUpstreamBadGateway,
		ErrCodeUpstreamUnavailable,
		ErrCodeNetwork,
		ErrCodeStorage,
		ErrCodeDatabaseInsert,
		ErrCodePartnerTokenFailed:
		return 3

	case ErrCodeUpstreamGatewayTimeout,
		ErrCodeRequestTimeout,
		ErrCodeLeadSubmitFailed,
		ErrCodeLookupFailed:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	return &BPMNError{
		Code:      string(stdErr.Code),
		Message:   stdErr.Message,
		Details:   stdErr.Details,
		Retryable: stdErr.Retryable,
		Retries:   retries,
		ErrorVariables: map[string]interface{}{
			"originalErrorCode": string(stdErr.Code),
			"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
		},
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandard extracts a StandardError from an error chain.
func AsStandard(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// IsRetryable reports whether err is a StandardError marked retryable.
func IsRetryable(err error) bool {
	if stdErr, ok := AsStandard(err); ok {
		return stdErr.Retryable
	}
	return false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	stdErr, ok := AsStandard(err)
	return ok && stdErr.Code == code
}

// UserMessage returns the short sentence meant for the applicant.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	if stdErr, ok := AsStandard(err); ok && stdErr.Message != "" {
		return stdErr.Message
	}
	return "Something went wrong. Please try again."
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "OTP") || strings.Contains(codeStr, "AUTH") || strings.Contains(codeStr, "TOKEN"):
		return "AUTH"
	case strings.Contains(codeStr, "UPSTREAM") || strings.Contains(codeStr, "TIMEOUT") || strings.Contains(codeStr, "NETWORK"):
		return "TRANSIENT"
	case strings.Contains(codeStr, "LEAD"):
		return "SUBMISSION"
	case strings.Contains(codeStr, "LOOKUP"):
		return "LOOKUP"
	case strings.Contains(codeStr, "STORAGE") || strings.Contains(codeStr, "DATABASE"):
		return "STORAGE"
	case strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "MALFORMED"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
