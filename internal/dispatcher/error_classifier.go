package dispatcher

import (
	"context"
	"errors"
	"strings"

	"github.com/local/reportcompiler/internal/converter"
	"github.com/local/reportcompiler/internal/reporterr"
	"github.com/local/reportcompiler/internal/storage"
)

// isTransientError reports whether a retry may succeed: renderer timeouts,
// 5xx/429 download answers and network failures.
func isTransientError(err error) bool {
	if err == nil || isFatalError(err) {
		return false
	}

	if isTimeoutError(err) {
		return true
	}

	var httpErr *storage.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 500 || httpErr.StatusCode == 429
	}

	// LibreOffice crashes are retried, its output is not deterministic under load
	if reporterr.KindOf(err) == reporterr.KindRenderFailure {
		return true
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "network") ||
		strings.Contains(errStr, "eof")
}

// isFatalError reports failures rooted in the report itself, which fail the
// same way on every attempt.
func isFatalError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrCanceled) {
		return true
	}

	var valErr *ValidationError
	if errors.As(err, &valErr) {
		return true
	}

	var httpErr *storage.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode >= 400 && httpErr.StatusCode < 500 && httpErr.StatusCode != 429
	}

	switch reporterr.KindOf(err) {
	case reporterr.KindUnknown, reporterr.KindRenderFailure:
		return false
	}
	return true
}

// isTimeoutError checks if error is specifically a timeout
func isTimeoutError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, converter.ErrTimeout) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded")
}
