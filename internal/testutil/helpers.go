// Package testutil holds helpers shared by proxycheck tests.
package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelplex/proxycheck/internal/config"
	"github.com/modelplex/proxycheck/internal/stub"
)

const (
	TestAnthropicKey = "sk-ant-test123"
	TestOpenAIKey    = "sk-test123"
)

// StartStub serves the stub proxy on a loopback port for the lifetime of the test.
func StartStub(t *testing.T, opts stub.Options) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(stub.NewHandler(opts))
	t.Cleanup(server.Close)
	return server
}

// StartHandler serves an arbitrary handler, for responses the stub never produces.
func StartHandler(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

// CreateTestConfig returns a configuration aimed at baseURL with literal
// test keys and no pause between scenarios.
func CreateTestConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.Proxy.BaseURL = baseURL
	cfg.Credentials = config.Credentials{
		AnthropicAPIKey: TestAnthropicKey,
		OpenAIAPIKey:    TestOpenAIKey,
	}
	cfg.Run.Pause = 0
	return cfg
}

// UnreachableURL returns a base URL on which nothing is listening.
func UnreachableURL(t *testing.T) string {
	t.Helper()
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()
	return url
}
