package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeNetwork represents transport failures while fetching a page
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypeParsing represents HTML or JSON decoding errors
	ErrorTypeParsing ErrorType = "parsing"
	// ErrorTypeStructure represents an unexpected page or payload shape
	ErrorTypeStructure ErrorType = "structure"
	// ErrorTypeRateLimit represents rate limiting errors
	ErrorTypeRateLimit ErrorType = "rate_limit"
	// ErrorTypeClassification represents relevance gateway errors
	ErrorTypeClassification ErrorType = "classification"
	// ErrorTypeSnapshot represents snapshot store errors
	ErrorTypeSnapshot ErrorType = "snapshot"
	// ErrorTypeNotification represents notifier errors
	ErrorTypeNotification ErrorType = "notification"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
	// ErrorTypeValidation represents validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
)

// CrawlerError represents an error raised anywhere in the crawl pipeline
type CrawlerError struct {
	Type     ErrorType
	Provider string
	Message  string
	Err      error
	Time     time.Time
}

// Error implements the error interface
func (e *CrawlerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Provider, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Provider, e.Message)
}

// Unwrap returns the underlying error
func (e *CrawlerError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is retryable
func (e *CrawlerError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeNetwork, ErrorTypeClassification:
		return true
	default:
		return false
	}
}

// New creates a new CrawlerError
func New(errType ErrorType, provider, message string, err error) *CrawlerError {
	return &CrawlerError{
		Type:     errType,
		Provider: provider,
		Message:  message,
		Err:      err,
		Time:     time.Now(),
	}
}

// Is reports whether any error in err's chain is a CrawlerError of the given type
func Is(err error, errType ErrorType) bool {
	if ce, ok := AsCrawlerError(err); ok {
		return ce.Type == errType
	}
	return false
}

// AsCrawlerError returns the first CrawlerError in err's chain
func AsCrawlerError(err error) (*CrawlerError, bool) {
	var ce *CrawlerError
	ok := stderrors.As(err, &ce)
	return ce, ok
}

// NewNetwork creates a new network error
func NewNetwork(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeNetwork, provider, message, err)
}

// NewParsing creates a new parsing error
func NewParsing(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeParsing, provider, message, err)
}

// NewStructure creates a new structural mismatch error
func NewStructure(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeStructure, provider, message, err)
}

// NewRateLimit creates a new rate limit error
func NewRateLimit(provider string, retryAfter string) *CrawlerError {
	message := "rate limited"
	if retryAfter != "" {
		message = fmt.Sprintf("rate limited; retry after %s", retryAfter)
	}
	return New(ErrorTypeRateLimit, provider, message, nil)
}

// NewBlocked creates a rate limit error for a provider still inside its block window
func NewBlocked(provider string, duration time.Duration) *CrawlerError {
	message := fmt.Sprintf("blocked for %v after rate limiting", duration)
	return New(ErrorTypeRateLimit, provider, message, nil)
}

// NewClassification creates a new classification error
func NewClassification(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeClassification, provider, message, err)
}

// NewSnapshot creates a new snapshot store error
func NewSnapshot(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeSnapshot, provider, message, err)
}

// NewNotification creates a new notification error
func NewNotification(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeNotification, provider, message, err)
}

// NewCache creates a new cache error
func NewCache(provider, message string, err error) *CrawlerError {
	return New(ErrorTypeCache, provider, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(provider, message string, err error) *CrawlerError {
	return New(ErrorTypePublisher, provider, message, err)
}

// NewValidation creates a new validation error
func NewValidation(provider, message string) *CrawlerError {
	return New(ErrorTypeValidation, provider, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *CrawlerError {
	return New(ErrorTypeConfiguration, "", message, err)
}
