package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
)

// --- Sentinel Errors for Categorization ---
var (
	ErrPageUnavailable  = errors.New("page unavailable after all fetch attempts") // Wraps the last underlying error
	ErrHTTPStatus       = errors.New("non-success HTTP status")                   // Wraps status code text
	ErrMissingField     = errors.New("required field missing from page")
	ErrMalformedNumeric = errors.New("malformed numeric content")
	ErrEmptyFilmography = errors.New("no films extracted for director")
	ErrRobotsDisallowed = errors.New("disallowed by robots.txt")
	ErrParsing          = errors.New("parsing error") // Wraps HTML/URL parse errors
	ErrDatabase         = errors.New("cache database error")
	ErrRequestCreation  = errors.New("failed to create HTTP request")
	ErrResponseBodyRead = errors.New("failed to read response body")
	ErrConfigValidation = errors.New("configuration validation error")
)

// WrapErrorf wraps a sentinel error with formatted context.
// Returns nil if sentinel is nil.
func WrapErrorf(sentinel error, format string, args ...interface{}) error {
	if sentinel == nil {
		return nil
	}
	return fmt.Errorf("%w: %s", sentinel, fmt.Sprintf(format, args...))
}

// CategorizeError maps an error to a predefined category string for logging/metrics.
func CategorizeError(err error) string {
	if err == nil {
		return "None"
	}

	// Check against sentinel errors first
	switch {
	case errors.Is(err, ErrPageUnavailable):
		if errors.Is(err, ErrHTTPStatus) {
			return "Unavailable_" + httpStatusCategory(err.Error())
		}
		errMsg := strings.ToLower(err.Error())
		if strings.Contains(errMsg, "timeout") || strings.Contains(errMsg, "deadline exceeded") {
			return "Unavailable_NetworkTimeout"
		}
		if strings.Contains(errMsg, "connection refused") {
			return "Unavailable_ConnectionRefused"
		}
		if strings.Contains(errMsg, "no such host") {
			return "Unavailable_DNSLookup"
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return "Unavailable_NetworkTimeout"
		}
		if errors.Is(err, ErrResponseBodyRead) {
			return "Unavailable_BodyRead"
		}
		return "Unavailable_NetworkOther"
	case errors.Is(err, ErrHTTPStatus):
		return httpStatusCategory(err.Error())
	case errors.Is(err, ErrMissingField):
		return "Content_MissingField"
	case errors.Is(err, ErrMalformedNumeric):
		return "Content_MalformedNumeric"
	case errors.Is(err, ErrEmptyFilmography):
		return "Content_EmptyFilmography"
	case errors.Is(err, ErrRobotsDisallowed):
		return "Policy_Robots"
	case errors.Is(err, ErrParsing):
		errMsg := err.Error()
		if strings.Contains(errMsg, "URL") {
			return "Content_ParsingURL"
		}
		if strings.Contains(errMsg, "HTML") {
			return "Content_ParsingHTML"
		}
		return "Content_ParsingOther"
	case errors.Is(err, ErrDatabase):
		return "Database_Other"
	case errors.Is(err, ErrRequestCreation):
		return "Internal_RequestCreation"
	case errors.Is(err, ErrResponseBodyRead):
		return "Network_BodyRead"
	case errors.Is(err, ErrConfigValidation):
		return "Config_Validation"
	}

	// --- Fallback checks for common underlying error types/strings ---

	// Context errors
	if errors.Is(err, context.Canceled) {
		return "System_ContextCanceled"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "System_ContextDeadlineExceeded"
	}

	// Filesystem errors
	if errors.Is(err, os.ErrPermission) {
		return "Filesystem_Permission"
	}
	if errors.Is(err, os.ErrNotExist) {
		return "Filesystem_NotExist"
	}

	// Network errors (if not wrapped by custom sentinels)
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return "Network_Timeout"
		}
	}
	lowerErrMsg := strings.ToLower(err.Error())
	if strings.Contains(lowerErrMsg, "timeout") {
		return "Network_TimeoutGeneric"
	}
	if strings.Contains(lowerErrMsg, "connection refused") {
		return "Network_ConnectionRefused"
	}
	if strings.Contains(lowerErrMsg, "no such host") {
		return "Network_DNSLookup"
	}
	if strings.Contains(lowerErrMsg, "tls") || strings.Contains(lowerErrMsg, "certificate") {
		return "Network_TLS"
	}
	if strings.Contains(lowerErrMsg, "reset by peer") {
		return "Network_ConnectionReset"
	}
	if strings.Contains(lowerErrMsg, "broken pipe") {
		return "Network_BrokenPipe"
	}

	return "Unknown"
}

// httpStatusCategory extracts a coarse status label from an error message
// produced by the fetcher (which embeds "status <code> <text>").
func httpStatusCategory(errMsg string) string {
	switch {
	case strings.Contains(errMsg, " 404 "):
		return "HTTP_404"
	case strings.Contains(errMsg, " 403 "):
		return "HTTP_403"
	case strings.Contains(errMsg, " 401 "):
		return "HTTP_401"
	case strings.Contains(errMsg, " 429 "):
		return "HTTP_429"
	case strings.Contains(errMsg, "status 5"):
		return "HTTP_5xx"
	case strings.Contains(errMsg, "status 4"):
		return "HTTP_4xx"
	case strings.Contains(errMsg, "status 3"):
		return "HTTP_3xx"
	}
	return "HTTP_OtherStatus"
}
