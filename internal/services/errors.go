package services

import (
	"errors"
	"fmt"
)

// Sentinel errors for the upstream failure taxonomy. Adapters map vendor-specific error
// shapes onto these so callers can branch without knowing the provider.
var (
	// ErrAuthentication indicates a rejected or missing API credential.
	ErrAuthentication = errors.New("invalid API key or authentication error")
	// ErrRateLimited indicates the upstream rate limit or quota was exhausted.
	ErrRateLimited = errors.New("rate limit exceeded or quota reached")
	// ErrEmptyResponse indicates the upstream answered successfully but produced no content.
	ErrEmptyResponse = errors.New("model returned an empty response")
	// ErrUnknownModel indicates the requested model identifier maps to no provider.
	ErrUnknownModel = errors.New("invalid model selection")
)

// UpstreamError carries the upstream's own error description for failures that fit none of
// the sentinel categories.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *UpstreamError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s API error (%d)", e.Provider, e.StatusCode)
	}
	return fmt.Sprintf("%s API error (%d): %s", e.Provider, e.StatusCode, e.Message)
}

// classifyStatus maps an upstream HTTP status and error message into the failure taxonomy.
func classifyStatus(provider string, status int, message string) error {
	switch status {
	case 401, 403:
		return fmt.Errorf("%s: %w", provider, ErrAuthentication)
	case 429:
		return fmt.Errorf("%s: %w", provider, ErrRateLimited)
	default:
		return &UpstreamError{Provider: provider, StatusCode: status, Message: message}
	}
}
