package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 13000-13999: Submission & Judge errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	TooManyRequests     ErrorCode = 10006
	ServiceUnavailable  ErrorCode = 10007
	Timeout             ErrorCode = 10008

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	InvalidFormat      ErrorCode = 10301
	InvalidValue       ErrorCode = 10302
	RequiredFieldEmpty ErrorCode = 10303

	// ========== Submission & Judge Errors (13000-13999) ==========

	// Submission (13000-13099)
	CodeTooLarge         ErrorCode = 13002
	LanguageNotSupported ErrorCode = 13003
	TooManyTestCases     ErrorCode = 13006

	// Judge infrastructure (13100-13199)
	JudgeQueueFull        ErrorCode = 13100
	JudgeSystemError      ErrorCode = 13101
	WorkspaceStorageError ErrorCode = 13107
	ExecutionInfraError   ErrorCode = 13108
	SubmissionAborted     ErrorCode = 13109
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	TooManyRequests:     "Too many requests, please try again later",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	CacheError: "Cache operation failed",

	ValidationFailed:   "Validation failed",
	InvalidFormat:      "Invalid format",
	InvalidValue:       "Invalid value",
	RequiredFieldEmpty: "Required field is empty",

	CodeTooLarge:         "Code is too large",
	LanguageNotSupported: "Programming language not supported",
	TooManyTestCases:     "Too many test cases",

	JudgeQueueFull:        "Judge queue is full, please try again later",
	JudgeSystemError:      "Judge system error",
	WorkspaceStorageError: "Workspace storage is not writable",
	ExecutionInfraError:   "Failed to execute process",
	SubmissionAborted:     "Submission aborted before completion",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// IsInfra reports whether the code marks a failure of the judge itself
// rather than of the request or the submitted program.
func (c ErrorCode) IsInfra() bool {
	switch c {
	case LanguageNotSupported, WorkspaceStorageError, ExecutionInfraError,
		SubmissionAborted, JudgeSystemError, InternalServerError:
		return true
	default:
		return false
	}
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == NotFound:
		return 404
	case c == TooManyRequests, c == JudgeQueueFull:
		return 429
	case c == ServiceUnavailable:
		return 503
	case c == Timeout, c == SubmissionAborted:
		return 504
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == CodeTooLarge, c == TooManyTestCases:
		return 400
	default:
		return 500
	}
}
