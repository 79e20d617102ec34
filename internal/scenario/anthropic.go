package scenario

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/modelplex/proxycheck/internal/config"
)

// Anthropic sends a single Messages request through the proxy's Anthropic route.
type Anthropic struct {
	baseURL    string
	apiKey     string
	credential string
	maxRetries int
	settings   config.Scenario
	httpClient *http.Client
}

func NewAnthropic(cfg *config.Config, httpClient *http.Client) *Anthropic {
	return &Anthropic{
		baseURL:    cfg.Proxy.AnthropicURL(),
		apiKey:     cfg.Credentials.Key(config.ProviderAnthropic),
		credential: cfg.Credentials.Source(config.ProviderAnthropic),
		maxRetries: cfg.Proxy.MaxRetries,
		settings:   cfg.Scenarios.Anthropic,
		httpClient: httpClient,
	}
}

func (a *Anthropic) Info() Info {
	return Info{
		Name:        NameAnthropic,
		Provider:    config.ProviderAnthropic,
		Model:       a.settings.Model,
		Title:       "Anthropic SDK via Proxy",
		Label:       "Anthropic SDK",
		ErrorPrefix: "Anthropic SDK",
		Credential:  a.credential,
		Configured:  a.apiKey != "",
	}
}

func (a *Anthropic) Run(ctx context.Context, w io.Writer) error {
	client := anthropic.NewClient(
		option.WithAPIKey(a.apiKey),
		option.WithBaseURL(a.baseURL),
		option.WithMaxRetries(a.maxRetries),
		option.WithHTTPClient(a.httpClient),
	)

	fmt.Fprintln(w, "Sending request to Anthropic via proxy...")
	message, err := client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.settings.Model),
		MaxTokens: int64(a.settings.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(a.settings.Prompt)),
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "--- Anthropic SDK Response ---")
	fmt.Fprintln(w, "Status: Success")
	if text, ok := firstText(message); ok {
		fmt.Fprintf(w, "Content: %s\n", text)
	} else {
		fmt.Fprintf(w, "Raw Response: %s\n", message.RawJSON())
	}
	fmt.Fprintf(w, "Stop Reason: %s\n", message.StopReason)
	fmt.Fprintf(w, "Model Used: %s\n", message.Model)
	fmt.Fprintln(w, "--- End Anthropic SDK Response ---")
	return nil
}

func firstText(message *anthropic.Message) (string, bool) {
	if len(message.Content) == 0 {
		return "", false
	}
	block := message.Content[0]
	if block.Type != "text" {
		return "", false
	}
	return block.Text, true
}
