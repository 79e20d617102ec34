// Package config loads proxycheck settings from defaults, a TOML file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"
)

// Provider names used to look up credentials.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
)

type Config struct {
	Proxy       Proxy       `toml:"proxy"`
	Credentials Credentials `toml:"credentials"`
	Run         Run         `toml:"run"`
	Scenarios   Scenarios   `toml:"scenarios"`
	Log         Log         `toml:"log"`
}

type Proxy struct {
	BaseURL       string   `toml:"base_url"`
	AnthropicPath string   `toml:"anthropic_path"`
	OpenAIPath    string   `toml:"openai_path"`
	Timeout       Duration `toml:"timeout"`
	MaxRetries    int      `toml:"max_retries"`
}

type Credentials struct {
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	OpenAIAPIKey    string `toml:"openai_api_key"`
}

type Run struct {
	Pause Duration `toml:"pause"`
	Only  []string `toml:"only"`
}

type Scenario struct {
	Model     string `toml:"model"`
	MaxTokens int    `toml:"max_tokens"`
	Prompt    string `toml:"prompt"`
}

type Scenarios struct {
	Anthropic    Scenario `toml:"anthropic"`
	OpenAI       Scenario `toml:"openai"`
	OpenAIStream Scenario `toml:"openai_stream"`
}

type Log struct {
	Requests    bool   `toml:"requests"`
	MetricsFile string `toml:"metrics_file"`
}

// Duration is a time.Duration written as a string ("1s", "250ms") in TOML.
type Duration time.Duration

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

const defaultPrompt = "Briefly, what is Cloudflare using the SDK?"

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Proxy: Proxy{
			BaseURL:       "http://localhost:9000",
			AnthropicPath: "/anthropic",
			OpenAIPath:    "/openai/v1",
			Timeout:       Duration(60 * time.Second),
		},
		Credentials: Credentials{
			AnthropicAPIKey: "${ANTHROPIC_API_KEY}",
			OpenAIAPIKey:    "${OPENAI_API_KEY}",
		},
		Run: Run{
			Pause: Duration(time.Second),
		},
		Scenarios: Scenarios{
			Anthropic: Scenario{
				Model:     "claude-3-haiku-20240307",
				MaxTokens: 50,
				Prompt:    defaultPrompt,
			},
			OpenAI: Scenario{
				Model:     "gpt-4o-mini",
				MaxTokens: 250,
				Prompt:    defaultPrompt,
			},
			OpenAIStream: Scenario{
				Model:     "gpt-4o-mini",
				MaxTokens: 300,
				Prompt:    "Tell me a very short story about a proxy server using the SDK.",
			},
		},
	}
}

// Load reads the TOML file at path on top of Default. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotenv populates the process environment from a dotenv file without
// overriding variables that are already set. A missing file is ignored.
func LoadDotenv(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// expandEnv resolves a "${NAME}" reference. It returns the resolved value and
// the referenced variable name, or the literal value and "" otherwise.
func expandEnv(value string) (string, string) {
	if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
		name := strings.TrimSuffix(strings.TrimPrefix(value, "${"), "}")
		return os.Getenv(name), name
	}
	return value, ""
}

func (c Credentials) raw(provider string) (string, string) {
	switch provider {
	case ProviderAnthropic:
		return c.AnthropicAPIKey, "anthropic_api_key"
	case ProviderOpenAI:
		return c.OpenAIAPIKey, "openai_api_key"
	default:
		return "", provider + "_api_key"
	}
}

// Key returns the API key for provider with environment references expanded.
func (c Credentials) Key(provider string) string {
	value, _ := c.raw(provider)
	key, _ := expandEnv(value)
	return key
}

// Source names where the key for provider comes from: the environment
// variable it references, or the TOML key holding it.
func (c Credentials) Source(provider string) string {
	value, field := c.raw(provider)
	if _, name := expandEnv(value); name != "" {
		return name
	}
	return field
}

// MissingCredentials lists the sources of every empty key among providers,
// sorted and without duplicates.
func (c *Config) MissingCredentials(providers ...string) []string {
	missing := lo.Uniq(lo.FilterMap(providers, func(p string, _ int) (string, bool) {
		return c.Credentials.Source(p), c.Credentials.Key(p) == ""
	}))
	sort.Strings(missing)
	return missing
}

// AnthropicURL is the base URL handed to the Anthropic SDK.
func (p Proxy) AnthropicURL() string {
	return joinURL(p.BaseURL, p.AnthropicPath)
}

// OpenAIURL is the base URL handed to the OpenAI SDK.
func (p Proxy) OpenAIURL() string {
	return joinURL(p.BaseURL, p.OpenAIPath)
}

func joinURL(base, path string) string {
	if path == "" {
		return strings.TrimRight(base, "/")
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// Validate reports the first structural problem in the configuration.
func (c *Config) Validate() error {
	u, err := url.Parse(c.Proxy.BaseURL)
	if err != nil {
		return fmt.Errorf("proxy.base_url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("proxy.base_url: %q is not an absolute http(s) URL", c.Proxy.BaseURL)
	}
	if c.Proxy.Timeout < 0 {
		return fmt.Errorf("proxy.timeout: must not be negative")
	}
	if c.Proxy.MaxRetries < 0 {
		return fmt.Errorf("proxy.max_retries: must not be negative")
	}
	if c.Run.Pause < 0 {
		return fmt.Errorf("run.pause: must not be negative")
	}

	scenarios := []struct {
		key string
		s   Scenario
	}{
		{"anthropic", c.Scenarios.Anthropic},
		{"openai", c.Scenarios.OpenAI},
		{"openai_stream", c.Scenarios.OpenAIStream},
	}
	for _, sc := range scenarios {
		if sc.s.Model == "" {
			return fmt.Errorf("scenarios.%s.model: required", sc.key)
		}
		if sc.s.MaxTokens <= 0 {
			return fmt.Errorf("scenarios.%s.max_tokens: must be positive", sc.key)
		}
		if sc.s.Prompt == "" {
			return fmt.Errorf("scenarios.%s.prompt: required", sc.key)
		}
	}
	return nil
}
