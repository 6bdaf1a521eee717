package scanning

import (
	"errors"
	"strings"

	"google.golang.org/api/googleapi"
)

var (
	// ErrMissingCredential is returned before any network attempt when no API key is configured
	ErrMissingCredential = errors.New("extraction credential is missing")

	// ErrEmptyResponse is returned when the provider answers without any content
	ErrEmptyResponse = errors.New("empty response from provider")

	// ErrMalformedResponse is returned when the response is not a valid bill record
	ErrMalformedResponse = errors.New("malformed response from provider")
)

// Messages shown to the user for each failure class
const (
	MissingCredentialMessage = "API Key is missing. Please check your environment variables."
	EmptyResponseMessage     = "No data returned from the extraction provider."
	MalformedResponseMessage = "The extraction provider returned data that could not be read as a bill."
	FallbackMessage          = "Failed to process document."
)

// ProviderError wraps a transport or provider-reported failure
type ProviderError struct {
	// Message is the provider's own description, if it gave one
	Message string
	Err     error
}

func (e *ProviderError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return FallbackMessage
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// newProviderError builds a ProviderError, lifting the message out of a Google API error
func newProviderError(err error) *ProviderError {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && strings.TrimSpace(apiErr.Message) != "" {
		return &ProviderError{Message: strings.TrimSpace(apiErr.Message), Err: err}
	}
	return &ProviderError{Message: strings.TrimSpace(err.Error()), Err: err}
}

// Reason maps an extraction failure to the human-readable text shown in the error panel
func Reason(err error) string {
	if err == nil {
		return ""
	}

	var providerErr *ProviderError
	switch {
	case errors.Is(err, ErrMissingCredential):
		return MissingCredentialMessage
	case errors.Is(err, ErrEmptyResponse):
		return EmptyResponseMessage
	case errors.Is(err, ErrMalformedResponse):
		return MalformedResponseMessage
	case errors.As(err, &providerErr):
		if providerErr.Message != "" {
			return providerErr.Message
		}
		return FallbackMessage
	}

	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	return FallbackMessage
}
