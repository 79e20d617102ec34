package stub

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

type handlers struct {
	opts Options
}

// chatRequest holds the fields the stub reads from both providers' request bodies.
type chatRequest struct {
	Model     string            `json:"model"`
	MaxTokens int               `json:"max_tokens"`
	Messages  []json.RawMessage `json:"messages"`
	Stream    bool              `json:"stream"`
}

func (h *handlers) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"service": "proxycheck-stub",
	})
}

func (h *handlers) handleAnthropicMessages(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("x-api-key") == "" {
		writeAnthropicError(w, http.StatusUnauthorized, "x-api-key header is required")
		return
	}
	if h.opts.FailStatus != 0 {
		writeAnthropicError(w, h.opts.FailStatus, "stub configured to fail")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAnthropicError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if req.Stream {
		writeAnthropicError(w, http.StatusBadRequest, "streaming is not supported by the stub")
		return
	}
	if len(req.Messages) == 0 {
		writeAnthropicError(w, http.StatusBadRequest, "messages: at least one message is required")
		return
	}

	words, truncated := limitWords(h.opts.reply(), req.MaxTokens)
	stopReason := "end_turn"
	if truncated {
		stopReason = "max_tokens"
	}

	slog.Debug("Stub answered Anthropic message", "model", req.Model, "words", len(words))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":   "msg_" + uuid.NewString(),
		"type": "message",
		"role": "assistant",
		"content": []map[string]interface{}{
			{"type": "text", "text": strings.Join(words, " ")},
		},
		"model":         req.Model,
		"stop_reason":   stopReason,
		"stop_sequence": nil,
		"usage": map[string]interface{}{
			"input_tokens":  len(req.Messages),
			"output_tokens": len(words),
		},
	})
}

func (h *handlers) handleOpenAIChatCompletions(w http.ResponseWriter, r *http.Request) {
	if !strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") ||
		strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") == "" {
		writeOpenAIError(w, http.StatusUnauthorized, "You didn't provide an API key.")
		return
	}
	if h.opts.FailStatus != 0 {
		writeOpenAIError(w, h.opts.FailStatus, "stub configured to fail")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeOpenAIError(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err))
		return
	}
	if len(req.Messages) == 0 {
		writeOpenAIError(w, http.StatusBadRequest, "messages: at least one message is required")
		return
	}

	words, truncated := limitWords(h.opts.reply(), req.MaxTokens)
	finishReason := "stop"
	if truncated {
		finishReason = "length"
	}

	id := "chatcmpl-" + uuid.NewString()
	created := time.Now().Unix()

	if req.Stream {
		h.streamOpenAI(w, id, created, req.Model, words, finishReason)
		return
	}

	slog.Debug("Stub answered OpenAI chat completion", "model", req.Model, "words", len(words))
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":      id,
		"object":  "chat.completion",
		"created": created,
		"model":   req.Model,
		"choices": []map[string]interface{}{
			{
				"index": 0,
				"message": map[string]interface{}{
					"role":    "assistant",
					"content": strings.Join(words, " "),
				},
				"finish_reason": finishReason,
			},
		},
		"usage": map[string]interface{}{
			"prompt_tokens":     len(req.Messages),
			"completion_tokens": len(words),
			"total_tokens":      len(req.Messages) + len(words),
		},
	})
}

// streamOpenAI writes the reply as server-sent chat.completion.chunk events,
// one word per chunk, terminated by [DONE].
func (h *handlers) streamOpenAI(w http.ResponseWriter, id string, created int64, model string, words []string, finishReason string) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeOpenAIError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	chunk := func(delta map[string]interface{}, finish interface{}) map[string]interface{} {
		return map[string]interface{}{
			"id":      id,
			"object":  "chat.completion.chunk",
			"created": created,
			"model":   model,
			"choices": []map[string]interface{}{
				{"index": 0, "delta": delta, "finish_reason": finish},
			},
		}
	}

	events := make([]map[string]interface{}, 0, len(words)+2)
	events = append(events, chunk(map[string]interface{}{"role": "assistant", "content": ""}, nil))
	for i, word := range words {
		if i > 0 {
			word = " " + word
		}
		events = append(events, chunk(map[string]interface{}{"content": word}, nil))
	}
	events = append(events, chunk(map[string]interface{}{}, finishReason))

	for _, event := range events {
		data, err := json.Marshal(event)
		if err != nil {
			slog.Error("Failed to encode stream chunk", "error", err)
			return
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			slog.Debug("Stream client went away", "error", err)
			return
		}
		flusher.Flush()
	}
	if _, err := fmt.Fprint(w, "data: [DONE]\n\n"); err != nil {
		slog.Debug("Stream client went away", "error", err)
		return
	}
	flusher.Flush()
	slog.Debug("Stub streamed OpenAI chat completion", "model", model, "chunks", len(events))
}

// limitWords splits text into words and keeps at most max of them. A
// non-positive max keeps everything.
func limitWords(text string, max int) ([]string, bool) {
	words := strings.Fields(text)
	if max > 0 && len(words) > max {
		return words[:max], true
	}
	return words, false
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode stub response", "error", err)
	}
}

func writeAnthropicError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"type": "error",
		"error": map[string]interface{}{
			"type":    anthropicErrorType(status),
			"message": message,
		},
	})
}

func writeOpenAIError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]interface{}{
			"message": message,
			"type":    openAIErrorType(status),
			"param":   nil,
			"code":    nil,
		},
	})
}

func anthropicErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request_error"
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusForbidden:
		return "permission_error"
	case http.StatusNotFound:
		return "not_found_error"
	case http.StatusTooManyRequests:
		return "rate_limit_error"
	case 529:
		return "overloaded_error"
	default:
		return "api_error"
	}
}

func openAIErrorType(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return "rate_limit_exceeded"
	case status == http.StatusUnauthorized, status < http.StatusInternalServerError:
		return "invalid_request_error"
	default:
		return "server_error"
	}
}
