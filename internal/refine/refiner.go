package refine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Refiner is the best-effort text-refinement collaborator. Callers must treat
// every error as "use the text you already have"; refinement never gates an
// errand operation.
type Refiner interface {
	RefineDescription(ctx context.Context, text string) (string, error)
	SuggestReplies(ctx context.Context, incoming, contextTitle string) ([]string, error)
}

const descriptionPrompt = "You are a professional editor. Rewrite the following errand description to be clear, concise, and professional. Return ONLY the rewritten text, do not add conversational filler."

// OpenAIRefiner talks to an OpenAI-style chat-completions endpoint.
type OpenAIRefiner struct {
	apiKey  string
	baseURL string
	model   string
	client  *http.Client
}

func NewOpenAIRefiner(apiKey, baseURL string) *OpenAIRefiner {
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	return &OpenAIRefiner{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		model:   "gpt-3.5-turbo",
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (r *OpenAIRefiner) RefineDescription(ctx context.Context, text string) (string, error) {
	content, err := r.complete(ctx, descriptionPrompt, text)
	if err != nil {
		return "", err
	}
	return content, nil
}

func (r *OpenAIRefiner) SuggestReplies(ctx context.Context, incoming, contextTitle string) ([]string, error) {
	system := fmt.Sprintf(
		"You are helping with a campus errand titled %q. Suggest three short replies to the message below, one per line, no numbering.",
		contextTitle,
	)
	content, err := r.complete(ctx, system, incoming)
	if err != nil {
		return nil, err
	}

	var replies []string
	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			replies = append(replies, line)
		}
	}
	return replies, nil
}

func (r *OpenAIRefiner) complete(ctx context.Context, system, user string) (string, error) {
	if r.apiKey == "" {
		return "", fmt.Errorf("refine: no API key configured")
	}

	body, err := json.Marshal(chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	res, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	payload, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("refine: unexpected status %d", res.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("refine: empty completion")
	}
	return strings.TrimSpace(parsed.Choices[0].Message.Content), nil
}
