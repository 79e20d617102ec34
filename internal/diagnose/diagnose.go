// Package diagnose sorts errors returned by the provider SDKs into the fixed
// categories a proxy smoke test reports on.
package diagnose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	openai "github.com/sashabaranov/go-openai"
)

type Category string

const (
	CategoryNone           Category = ""
	CategoryConnection     Category = "connection"
	CategoryRateLimit      Category = "rate_limit"
	CategoryAuthentication Category = "authentication"
	CategoryAPIStatus      Category = "api_status"
	CategoryUnexpected     Category = "unexpected"
)

// Diagnosis is the classified form of a scenario error.
type Diagnosis struct {
	Category   Category
	StatusCode int
	// Body is the response body returned with an error status, if any.
	Body string
	// Cause is the underlying transport error for connection failures.
	Cause error
	Err   error
}

// Classify inspects err and assigns it a category. A nil error yields CategoryNone.
func Classify(err error) Diagnosis {
	if err == nil {
		return Diagnosis{}
	}
	d := Diagnosis{Err: err}

	var anthropicErr *anthropic.Error
	var apiErr *openai.APIError
	var reqErr *openai.RequestError

	switch {
	case errors.As(err, &anthropicErr):
		d.StatusCode = anthropicErr.StatusCode
		d.Body = anthropicErr.RawJSON()
		if d.Body == "" && anthropicErr.Response != nil {
			d.Body = string(anthropicErr.DumpResponse(true))
		}
	case errors.As(err, &apiErr):
		d.StatusCode = apiErr.HTTPStatusCode
		d.Body = apiErr.Message
		if apiErr.Type != "" {
			d.Body = fmt.Sprintf("%s (%s)", apiErr.Message, apiErr.Type)
		}
	case errors.As(err, &reqErr):
		d.StatusCode = reqErr.HTTPStatusCode
		if reqErr.Err != nil {
			d.Body = reqErr.Err.Error()
		}
	}

	if d.StatusCode != 0 {
		d.Category = categoryForStatus(d.StatusCode)
		return d
	}

	if cause, ok := connectionCause(err); ok {
		d.Category = CategoryConnection
		d.Cause = cause
		return d
	}

	d.Category = CategoryUnexpected
	return d
}

func categoryForStatus(code int) Category {
	switch code {
	case http.StatusUnauthorized:
		return CategoryAuthentication
	case http.StatusTooManyRequests:
		return CategoryRateLimit
	default:
		return CategoryAPIStatus
	}
}

// connectionCause reports whether err is a transport failure and returns the
// innermost error worth showing.
func connectionCause(err error) (error, bool) {
	if errors.Is(err, context.Canceled) {
		return nil, false
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr, true
	}

	switch {
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, io.ErrUnexpectedEOF):
		return err, true
	}
	return nil, false
}

// Message renders the diagnosis as the single human-readable line printed after
// a scenario's error prefix.
func (d Diagnosis) Message() string {
	switch d.Category {
	case CategoryNone:
		return ""
	case CategoryConnection:
		return fmt.Sprintf("Connection error: %v", d.Cause)
	case CategoryRateLimit:
		return fmt.Sprintf("Rate limit exceeded: %v", d.Err)
	case CategoryAuthentication:
		return fmt.Sprintf("Authentication failed (Check API Key?): %v", d.Err)
	case CategoryAPIStatus:
		return fmt.Sprintf("API returned an error status:\n  Status Code: %d\n  Response: %s",
			d.StatusCode, strings.TrimSpace(d.Body))
	default:
		return fmt.Sprintf("An unexpected error occurred: %v", d.Err)
	}
}
