package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelplex/proxycheck/internal/stub"
	"github.com/modelplex/proxycheck/internal/testutil"
)

func runArgs(t *testing.T, extra ...string) []string {
	t.Helper()
	args := []string{"--env-file", filepath.Join(t.TempDir(), "absent.env"), "run", "--pause", "0s"}
	return append(args, extra...)
}

func setKeys(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", testutil.TestAnthropicKey)
	t.Setenv("OPENAI_API_KEY", testutil.TestOpenAIKey)
}

func TestRun_AllScenariosPass(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	setKeys(t)
	server := testutil.StartStub(t, stub.Options{Reply: "Cloudflare runs a global network."})

	var stdout, stderr bytes.Buffer
	code := execute(runArgs(t, "--proxy-url", server.URL), &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	output := stdout.String()
	assert.True(t, strings.HasPrefix(output, "--- Starting Go SDK Proxy Tests ---\nProxy URL Base: "+server.URL+"\n"))
	assert.Contains(t, output, "(Ensure the proxy server is running and configured)\n")

	anthropicAt := strings.Index(output, ">>> Testing Anthropic SDK via Proxy")
	openaiAt := strings.Index(output, ">>> Testing OpenAI SDK via Proxy")
	streamAt := strings.Index(output, ">>> Testing OpenAI SDK Streaming via Proxy")
	require.NotEqual(t, -1, anthropicAt)
	assert.Less(t, anthropicAt, openaiAt)
	assert.Less(t, openaiAt, streamAt)

	assert.Equal(t, 2, strings.Count(output, "Status: Success"))
	assert.Equal(t, 3, strings.Count(output, "\n"+strings.Repeat("-", 30)+"\n")-1)
	assert.Contains(t, output, "Streaming Content:\nCloudflare runs a global network.\n--- End OpenAI SDK Streaming ---\n")
	assert.NotContains(t, output, "ERROR")
	assert.True(t, strings.HasSuffix(output, "--- All Go SDK Tests Completed ---\n"))
	assert.Contains(t, stderr.String(), "passed=3")
}

func TestRun_FailuresStillExitZero(t *testing.T) {
	setKeys(t)
	server := testutil.StartStub(t, stub.Options{FailStatus: http.StatusTooManyRequests})

	var stdout, stderr bytes.Buffer
	code := execute(runArgs(t, "--proxy-url", server.URL), &stdout, &stderr)
	assert.Equal(t, 0, code)

	output := stdout.String()
	assert.Contains(t, output, "Anthropic SDK ERROR: Rate limit exceeded: ")
	assert.Contains(t, output, "OpenAI SDK ERROR: Rate limit exceeded: ")
	assert.Contains(t, output, "\nOpenAI SDK STREAMING ERROR: Rate limit exceeded: ")
	assert.Contains(t, output, "--- All Go SDK Tests Completed ---\n")
	assert.Contains(t, stderr.String(), "failed=3")
}

func TestRun_ProxyDown(t *testing.T) {
	setKeys(t)

	var stdout, stderr bytes.Buffer
	code := execute(runArgs(t, "--proxy-url", testutil.UnreachableURL(t), "--only", "openai"), &stdout, &stderr)
	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "OpenAI SDK ERROR: Connection error: ")
}

func TestRun_MissingCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")

	var stdout, stderr bytes.Buffer
	code := execute(runArgs(t), &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "ERROR: Missing required API keys in .env file or environment: ANTHROPIC_API_KEY, OPENAI_API_KEY\n")
	assert.NotContains(t, stdout.String(), ">>> Testing")
}

func TestRun_OnlyRequiresSelectedCredentials(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", testutil.TestOpenAIKey)
	server := testutil.StartStub(t, stub.Options{})

	var stdout, stderr bytes.Buffer
	code := execute(runArgs(t, "--proxy-url", server.URL, "--only", "openai-stream"), &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), ">>> Testing OpenAI SDK Streaming via Proxy\n")
	assert.NotContains(t, stdout.String(), "Anthropic")
}

func TestRun_DotenvSuppliesKeys(t *testing.T) {
	// t.Setenv registers cleanup; Unsetenv lets godotenv fill the variables.
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("OPENAI_API_KEY", "")
	os.Unsetenv("ANTHROPIC_API_KEY")
	os.Unsetenv("OPENAI_API_KEY")

	server := testutil.StartStub(t, stub.Options{})
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("ANTHROPIC_API_KEY=from-dotenv\nOPENAI_API_KEY=from-dotenv\n"), 0o600))

	var stdout, stderr bytes.Buffer
	code := execute([]string{"--env-file", envFile, "run", "--pause", "0s", "--proxy-url", server.URL}, &stdout, &stderr)

	assert.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "(Loading API keys from "+envFile+" file)\n")
	assert.NotContains(t, stdout.String(), "ERROR")
}

func TestRun_ConfigFile(t *testing.T) {
	server := testutil.StartStub(t, stub.Options{})
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "proxycheck.toml")
	metricsPath := filepath.Join(dir, "proxycheck.prom")
	cfgData := `
[proxy]
base_url = "` + server.URL + `"

[credentials]
anthropic_api_key = "sk-ant-file"
openai_api_key = "sk-file"

[run]
pause = "0s"
only = ["anthropic"]

[scenarios.anthropic]
model = "claude-custom"

[log]
requests = true
metrics_file = "` + metricsPath + `"
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfgData), 0o600))

	var stdout, stderr bytes.Buffer
	code := execute([]string{"--config", cfgPath, "--env-file", filepath.Join(dir, "absent.env")}, &stdout, &stderr)
	require.Equal(t, 0, code, stderr.String())

	assert.Contains(t, stdout.String(), "Model Used: claude-custom\n")
	assert.NotContains(t, stdout.String(), ">>> Testing OpenAI")

	var record map[string]interface{}
	found := false
	scanner := bufio.NewScanner(&stderr)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "{") {
			continue
		}
		require.NoError(t, json.Unmarshal([]byte(line), &record))
		found = true
	}
	require.True(t, found, "expected a JSON run record on stderr")
	assert.Equal(t, "anthropic", record["scenario"])
	assert.Equal(t, "passed", record["outcome"])

	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `proxycheck_scenario_runs_total{outcome="passed",scenario="anthropic"} 1`)
}

func TestRun_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"unknown scenario", []string{"--only", "google"}},
		{"relative proxy url", []string{"--proxy-url", "localhost:9000"}},
		{"missing config file", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setKeys(t)
			args := runArgs(t, tt.args...)
			if tt.args == nil {
				args = append([]string{"--config", filepath.Join(t.TempDir(), "absent.toml")}, args...)
			}

			var stdout, stderr bytes.Buffer
			code := execute(args, &stdout, &stderr)
			assert.Equal(t, 1, code)
			assert.NotContains(t, stdout.String(), ">>> Testing")
		})
	}
}
