package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrorTypeCapture represents page rendering, navigation and DOM failures
	ErrorTypeCapture ErrorType = "capture"
	// ErrorTypeImageFetch represents image retrieval failures
	ErrorTypeImageFetch ErrorType = "image_fetch"
	// ErrorTypeOCR represents text recognition failures
	ErrorTypeOCR ErrorType = "ocr"
	// ErrorTypeUpload represents content store failures
	ErrorTypeUpload ErrorType = "upload"
	// ErrorTypeValidation represents request validation errors
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeConfiguration represents configuration errors
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeCache represents cache-related errors
	ErrorTypeCache ErrorType = "cache"
	// ErrorTypePublisher represents publisher-related errors
	ErrorTypePublisher ErrorType = "publisher"
)

// ExtractError is an error raised somewhere along the extraction pipeline
type ExtractError struct {
	Type      ErrorType
	Component string
	Message   string
	Err       error
	Time      time.Time
}

// Error implements the error interface
func (e *ExtractError) Error() string {
	if e.Component == "" {
		if e.Err != nil {
			return fmt.Sprintf("[%s] %s - %v", e.Type, e.Message, e.Err)
		}
		return fmt.Sprintf("[%s] %s", e.Type, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %s - %v", e.Type, e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Type, e.Component, e.Message)
}

// Unwrap returns the underlying error
func (e *ExtractError) Unwrap() error {
	return e.Err
}

// New creates a new ExtractError
func New(errType ErrorType, component, message string, err error) *ExtractError {
	return &ExtractError{
		Type:      errType,
		Component: component,
		Message:   message,
		Err:       err,
		Time:      time.Now(),
	}
}

// NewCapture creates a new capture error
func NewCapture(component, message string, err error) *ExtractError {
	return New(ErrorTypeCapture, component, message, err)
}

// NewImageFetch creates a new image fetch error
func NewImageFetch(component, message string, err error) *ExtractError {
	return New(ErrorTypeImageFetch, component, message, err)
}

// NewOCR creates a new OCR error
func NewOCR(component, message string, err error) *ExtractError {
	return New(ErrorTypeOCR, component, message, err)
}

// NewUpload creates a new upload error
func NewUpload(component, message string, err error) *ExtractError {
	return New(ErrorTypeUpload, component, message, err)
}

// NewValidation creates a new validation error
func NewValidation(component, message string) *ExtractError {
	return New(ErrorTypeValidation, component, message, nil)
}

// NewConfiguration creates a new configuration error
func NewConfiguration(message string, err error) *ExtractError {
	return New(ErrorTypeConfiguration, "", message, err)
}

// NewCache creates a new cache error
func NewCache(component, message string, err error) *ExtractError {
	return New(ErrorTypeCache, component, message, err)
}

// NewPublisher creates a new publisher error
func NewPublisher(component, message string, err error) *ExtractError {
	return New(ErrorTypePublisher, component, message, err)
}

// IsType reports whether err wraps an ExtractError of the given type
func IsType(err error, errType ErrorType) bool {
	var extractErr *ExtractError
	if stderrors.As(err, &extractErr) {
		return extractErr.Type == errType
	}
	return false
}
