package discovery

import "errors"

// ErrorType classifies terminal pipeline failures for clients.
type ErrorType string

// Pipeline error taxonomy. Input errors are rejected before any external call;
// business-rule outcomes are typed terminal states, not exceptions.
const (
	ErrTypeInvalidInput             ErrorType = "invalid_input"
	ErrTypeInputTooLong             ErrorType = "input_too_long"
	ErrTypeProjectNotFound          ErrorType = "project_not_found"
	ErrTypeProjectIncomplete        ErrorType = "project_incomplete"
	ErrTypeParsingFailed            ErrorType = "parsing_failed"
	ErrTypeIntentParsingFailed      ErrorType = "intent_parsing_failed"
	ErrTypePlatformNotSupported     ErrorType = "platform_not_supported"
	ErrTypeCriteriaValidationFailed ErrorType = "criteria_validation_failed"
	ErrTypeNoProductsFound          ErrorType = "no_products_found"
	ErrTypeCrawlFailed              ErrorType = "crawl_failed"
	ErrTypeNoProductsAfterFilter    ErrorType = "no_products_after_filter"
	ErrTypeImportFailed             ErrorType = "import_failed"
	ErrTypeExecutionError           ErrorType = "execution_error"
)

// Store sentinel errors surfaced by ProductStore / ProjectStore implementations.
var (
	ErrNotFound   = errors.New("not found")
	ErrDuplicate  = errors.New("duplicate")
	ErrPermission = errors.New("permission denied")
)
