package shared

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrorCategory represents different types of errors that can occur
type ErrorCategory string

const (
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryDatabase      ErrorCategory = "database"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryProcessing    ErrorCategory = "processing"
	ErrorCategoryTimeout       ErrorCategory = "timeout"
)

// ServiceError represents a standardized error with additional context
type ServiceError struct {
	Category    ErrorCategory `json:"category"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Details     interface{}   `json:"details,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	ServiceName string        `json:"service_name"`
	Operation   string        `json:"operation"`
	Retryable   bool          `json:"retryable"`
	Cause       error         `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *ServiceError) Error() string {
	return fmt.Sprintf("[%s:%s] %s", e.Category, e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *ServiceError) Unwrap() error {
	return e.Cause
}

// NewServiceError creates a new service error
func NewServiceError(category ErrorCategory, code, message, serviceName, operation string, retryable bool, cause error) *ServiceError {
	return &ServiceError{
		Category:    category,
		Code:        code,
		Message:     message,
		Timestamp:   time.Now(),
		ServiceName: serviceName,
		Operation:   operation,
		Retryable:   retryable,
		Cause:       cause,
	}
}

// WithDetails adds additional details to the error
func (e *ServiceError) WithDetails(details interface{}) *ServiceError {
	e.Details = details
	return e
}

// IsRetryable returns whether the error is retryable
func (e *ServiceError) IsRetryable() bool {
	return e.Retryable
}

// LogError logs the error with structured fields
func (e *ServiceError) LogError() {
	logrus.WithFields(logrus.Fields{
		"error_category":   e.Category,
		"error_code":       e.Code,
		"error_message":    e.Message,
		"service_name":     e.ServiceName,
		"operation":        e.Operation,
		"retryable":        e.Retryable,
		"timestamp":        e.Timestamp,
		"details":          e.Details,
		"underlying_error": e.Cause,
	}).Error("Service error occurred")
}

// FetchError is returned when a quote page could not be retrieved.
// Status is the HTTP status for non-2xx responses and zero for transport failures.
type FetchError struct {
	Symbol  string
	URL     string
	Status  int
	Network bool
	Timeout bool
	Cause   error
}

func (e *FetchError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("fetch %s: timed out: %v", e.Symbol, e.Cause)
	case e.Network:
		return fmt.Sprintf("fetch %s: network error: %v", e.Symbol, e.Cause)
	default:
		return fmt.Sprintf("fetch %s: upstream returned HTTP %d %s", e.Symbol, e.Status, http.StatusText(e.Status))
	}
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether a later attempt could plausibly succeed
func (e *FetchError) IsRetryable() bool {
	if e.Network || e.Timeout {
		return true
	}
	return e.Status == http.StatusTooManyRequests || e.Status >= http.StatusInternalServerError
}

// Category maps the fetch failure onto the shared error taxonomy
func (e *FetchError) Category() ErrorCategory {
	if e.Timeout {
		return ErrorCategoryTimeout
	}
	return ErrorCategoryNetwork
}

// UnknownInstrumentError is returned for index identifiers outside the supported set
type UnknownInstrumentError struct {
	Identifier string
	Supported  []string
}

func (e *UnknownInstrumentError) Error() string {
	return fmt.Sprintf("unknown index %q (supported: %s)", e.Identifier, strings.Join(e.Supported, ", "))
}

// StoreError is returned when the quote store rejects an upsert or read
type StoreError struct {
	Symbol    string
	Operation string
	Cause     error
}

func (e *StoreError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("quote store %s failed: %v", e.Operation, e.Cause)
	}
	return fmt.Sprintf("quote store %s failed for %s: %v", e.Operation, e.Symbol, e.Cause)
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// ExtractionFailure describes a page from which no numeric data could be recovered.
// The extractor never returns it; collectors attach it to degraded results.
type ExtractionFailure struct {
	Symbol string
	Reason string
}

func (e *ExtractionFailure) Error() string {
	return fmt.Sprintf("extract %s: %s", e.Symbol, e.Reason)
}

// ErrStaleQuote is returned by stores when a fresher quote for the symbol is already stored
var ErrStaleQuote = errors.New("stored quote is newer than the incoming quote")

// ErrQuoteNotFound is returned by stores for symbols that were never upserted
var ErrQuoteNotFound = errors.New("quote not found")

// BuildBatchProcessingErrorSummary creates a comprehensive error summary for batch processing results
func BuildBatchProcessingErrorSummary(successCount, totalErrorCount int, sampleErrors []error) string {
	var summaryBuilder strings.Builder
	summaryBuilder.WriteString(fmt.Sprintf("batch processing completed with %d successes and %d failures", successCount, totalErrorCount))

	// Include sample errors for debugging (limited to prevent memory issues)
	sampleSize := len(sampleErrors)
	if sampleSize > 3 {
		sampleSize = 3
	}

	for i := 0; i < sampleSize; i++ {
		summaryBuilder.WriteString(fmt.Sprintf("; %s", sampleErrors[i].Error()))
	}

	if totalErrorCount > len(sampleErrors) {
		summaryBuilder.WriteString(fmt.Sprintf("; and %d additional errors", totalErrorCount-len(sampleErrors)))
	}

	return summaryBuilder.String()
}

// WrapError wraps an existing error with service error context
func WrapError(err error, category ErrorCategory, code, serviceName, operation string, retryable bool) *ServiceError {
	if err == nil {
		return nil
	}

	// If it's already a ServiceError, just update the context
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		serviceErr.ServiceName = serviceName
		serviceErr.Operation = operation
		return serviceErr
	}

	return NewServiceError(category, code, err.Error(), serviceName, operation, retryable, err)
}

// IsRetryableError checks if an error is retryable
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.IsRetryable()
	}

	var unknownErr *UnknownInstrumentError
	if errors.As(err, &unknownErr) {
		return false
	}

	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		return serviceErr.IsRetryable()
	}

	// Default heuristics for standard errors
	errorMsg := strings.ToLower(err.Error())
	retryablePatterns := []string{
		"timeout", "connection refused", "connection reset",
		"temporary failure", "service unavailable", "too many requests",
		"network", "dns", "socket",
	}

	for _, pattern := range retryablePatterns {
		if strings.Contains(errorMsg, pattern) {
			return true
		}
	}

	return false
}
