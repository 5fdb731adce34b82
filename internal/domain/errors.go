package domain

import "errors"

var (
	// Benchmark errors
	ErrUnknownBenchmark = errors.New("unknown benchmark")
	ErrInvalidBenchmark = errors.New("invalid benchmark configuration")
	ErrRunInProgress    = errors.New("collection run already in progress")
	ErrNotRunning       = errors.New("scheduler not running")

	// Collector errors
	ErrNotConfigured  = errors.New("collector not configured")
	ErrNoCollector    = errors.New("no collector registered for platform")
	ErrSoftBlocked    = errors.New("request blocked by anti-automation challenge")
	ErrRunCancelled   = errors.New("collection run cancelled")
	ErrInvalidPrice   = errors.New("invalid price")
	ErrInvalidProduct = errors.New("invalid product identifier")

	// Remote errors
	ErrPlatformUnavailable = errors.New("platform unavailable")
	ErrRateLimited         = errors.New("rate limited by platform")
	ErrInvalidResponse     = errors.New("invalid response from platform")
	ErrAuthentication      = errors.New("platform authentication failed")

	// History errors
	ErrNoHistory    = errors.New("no history available")
	ErrHistoryStore = errors.New("history store failure")

	// General errors
	ErrInternal = errors.New("internal error")
)

// DomainError wraps domain errors with additional context
type DomainError struct {
	Err     error
	Message string
	Code    string
}

func (e *DomainError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Err.Error()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error with context
func NewDomainError(err error, message, code string) *DomainError {
	return &DomainError{
		Err:     err,
		Message: message,
		Code:    code,
	}
}

// IsDomainError checks if the error is a domain error
func IsDomainError(err error) bool {
	var domainErr *DomainError
	return errors.As(err, &domainErr)
}
