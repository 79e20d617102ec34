package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	openai "github.com/sashabaranov/go-openai"

	"github.com/modelplex/proxycheck/internal/config"
)

type openAIBase struct {
	baseURL    string
	apiKey     string
	credential string
	settings   config.Scenario
	httpClient *http.Client
}

func newOpenAIBase(cfg *config.Config, settings config.Scenario, httpClient *http.Client) openAIBase {
	return openAIBase{
		baseURL:    cfg.Proxy.OpenAIURL(),
		apiKey:     cfg.Credentials.Key(config.ProviderOpenAI),
		credential: cfg.Credentials.Source(config.ProviderOpenAI),
		settings:   settings,
		httpClient: httpClient,
	}
}

// client builds a fresh go-openai client pointed at the proxy. go-openai does
// not retry, so proxy.max_retries does not apply here.
func (b openAIBase) client() *openai.Client {
	oaConfig := openai.DefaultConfig(b.apiKey)
	oaConfig.BaseURL = b.baseURL
	oaConfig.HTTPClient = b.httpClient
	return openai.NewClientWithConfig(oaConfig)
}

func (b openAIBase) request() openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:     b.settings.Model,
		MaxTokens: b.settings.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: b.settings.Prompt},
		},
	}
}

// OpenAIChat sends a single non-streaming chat completion through the proxy's OpenAI route.
type OpenAIChat struct {
	openAIBase
}

func NewOpenAIChat(cfg *config.Config, httpClient *http.Client) *OpenAIChat {
	return &OpenAIChat{newOpenAIBase(cfg, cfg.Scenarios.OpenAI, httpClient)}
}

func (o *OpenAIChat) Info() Info {
	return Info{
		Name:        NameOpenAI,
		Provider:    config.ProviderOpenAI,
		Model:       o.settings.Model,
		Title:       "OpenAI SDK via Proxy",
		Label:       "OpenAI SDK",
		ErrorPrefix: "OpenAI SDK",
		Credential:  o.credential,
		Configured:  o.apiKey != "",
	}
}

func (o *OpenAIChat) Run(ctx context.Context, w io.Writer) error {
	client := o.client()

	fmt.Fprintln(w, "Sending request to OpenAI via proxy...")
	resp, err := client.CreateChatCompletion(ctx, o.request())
	if err != nil {
		return err
	}

	fmt.Fprintln(w, "--- OpenAI SDK Response ---")
	fmt.Fprintln(w, "Status: Success")
	if len(resp.Choices) > 0 {
		fmt.Fprintf(w, "Content: %s\n", resp.Choices[0].Message.Content)
		fmt.Fprintf(w, "Finish Reason: %s\n", resp.Choices[0].FinishReason)
	} else {
		fmt.Fprintln(w, "No choices found in response.")
	}
	fmt.Fprintf(w, "Model Used: %s\n", resp.Model)
	fmt.Fprintln(w, "--- End OpenAI SDK Response ---")
	return nil
}

// OpenAIStream requests a streamed chat completion and echoes each delta as it arrives.
type OpenAIStream struct {
	openAIBase
}

func NewOpenAIStream(cfg *config.Config, httpClient *http.Client) *OpenAIStream {
	return &OpenAIStream{newOpenAIBase(cfg, cfg.Scenarios.OpenAIStream, httpClient)}
}

func (o *OpenAIStream) Info() Info {
	return Info{
		Name:           NameOpenAIStream,
		Provider:       config.ProviderOpenAI,
		Model:          o.settings.Model,
		Stream:         true,
		Title:          "OpenAI SDK Streaming via Proxy",
		Label:          "OpenAI Streaming SDK",
		ErrorPrefix:    "OpenAI SDK STREAMING",
		ErrorOnNewLine: true,
		Credential:     o.credential,
		Configured:     o.apiKey != "",
	}
}

func (o *OpenAIStream) Run(ctx context.Context, w io.Writer) error {
	client := o.client()

	fmt.Fprintln(w, "Sending streaming request to OpenAI via proxy...")
	req := o.request()
	req.Stream = true
	stream, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return err
	}
	defer stream.Close()

	fmt.Fprintln(w, "--- OpenAI SDK Streaming Response ---")
	fmt.Fprintln(w, "Streaming Content:")
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			fmt.Fprint(w, content)
		}
	}
	fmt.Fprintln(w, "\n--- End OpenAI SDK Streaming ---")
	return nil
}
