// Package ai implements the Classifier interface against chat-completion
// style language model APIs
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/marisel-vam/ai-inbox-zero/internal/classify"
	"github.com/marisel-vam/ai-inbox-zero/internal/classify/local"
	"github.com/marisel-vam/ai-inbox-zero/internal/database/models"
	"github.com/marisel-vam/ai-inbox-zero/internal/mailbox"
)

var (
	// ErrNotConfigured indicates the AI client is not configured
	ErrNotConfigured = errors.New("AI client not configured")
	// ErrAPICallFailed indicates the AI API call failed
	ErrAPICallFailed = errors.New("AI API call failed")
	// ErrInvalidResponse indicates an invalid response from the AI API
	ErrInvalidResponse = errors.New("invalid AI API response")
)

// Provider represents an AI provider
type Provider string

const (
	// ProviderOpenAI represents OpenAI API
	ProviderOpenAI Provider = "openai"
	// ProviderGroq represents the Groq API
	ProviderGroq Provider = "groq"
	// ProviderClaude represents Anthropic Claude API
	ProviderClaude Provider = "claude"
	// ProviderCustom represents a custom API endpoint
	ProviderCustom Provider = "custom"
)

// bodyPreviewLength bounds how much message body goes into the prompt
const bodyPreviewLength = 1500

// Client classifies messages through a chat-completion API. It implements
// classify.Classifier and performs no retries of its own.
type Client struct {
	provider   Provider
	apiKey     string
	model      string
	baseURL    string
	userName   string
	httpClient *http.Client
	configured bool
}

// NewClient creates a new AI Client instance. The per-call timeout comes
// from the caller's context, not from the HTTP client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
	}
}

// Configure configures the AI client with provider settings
func (c *Client) Configure(provider, apiKey, model, baseURL, userName string) {
	c.provider = Provider(strings.ToLower(provider))
	c.apiKey = apiKey
	c.model = model
	c.userName = userName
	c.configured = apiKey != ""

	if baseURL != "" {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
		return
	}

	switch c.provider {
	case ProviderGroq:
		c.baseURL = "https://api.groq.com/openai/v1"
		if c.model == "" {
			c.model = "llama-3.3-70b-versatile"
		}
	case ProviderClaude:
		c.baseURL = "https://api.anthropic.com/v1"
		if c.model == "" {
			c.model = "claude-3-haiku-20240307"
		}
	case ProviderOpenAI:
		c.baseURL = "https://api.openai.com/v1"
		if c.model == "" {
			c.model = "gpt-4o-mini"
		}
	default:
		c.provider = ProviderOpenAI
		c.baseURL = "https://api.openai.com/v1"
		if c.model == "" {
			c.model = "gpt-4o-mini"
		}
	}
}

// IsConfigured returns whether the client is configured
func (c *Client) IsConfigured() bool {
	return c.configured && c.apiKey != ""
}

// Classify analyzes a message and returns a structured classification.
// No-reply senders are short-circuited without an API call; the returned
// result still counts as a confident classification.
func (c *Client) Classify(ctx context.Context, msg mailbox.RawMessage) (classify.Result, error) {
	if local.IsNoReplySender(msg.Sender) {
		return classify.Result{
			Category:   models.CategoryNewsletter,
			Priority:   models.PriorityLow,
			Reply:      "No reply needed",
			Reasoning:  "Automated no-reply sender",
			NeedsReply: false,
		}, nil
	}

	if !c.IsConfigured() {
		return classify.Result{}, ErrNotConfigured
	}

	response, err := c.sendChatRequest(ctx, []ChatMessage{
		{Role: "user", Content: c.buildPrompt(msg)},
	})
	if err != nil {
		return classify.Result{}, err
	}

	return c.parseResponse(response)
}

// ChatMessage represents a message in a chat conversation
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float64       `json:"temperature,omitempty"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	ID      string `json:"id"`
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// sendChatRequest sends a chat completion request to the AI API
func (c *Client) sendChatRequest(ctx context.Context, messages []ChatMessage) (string, error) {
	request := ChatRequest{
		Model:       c.model,
		Messages:    messages,
		MaxTokens:   600,
		Temperature: 0.3,
	}

	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	req.Header.Set("Content-Type", "application/json")

	// Set authorization header based on provider
	switch c.provider {
	case ProviderClaude:
		req.Header.Set("x-api-key", c.apiKey)
		req.Header.Set("anthropic-version", "2023-06-01")
	default:
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrAPICallFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrAPICallFailed, resp.StatusCode, string(respBody))
	}

	var chatResp ChatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if chatResp.Error != nil {
		return "", fmt.Errorf("%w: %s", ErrAPICallFailed, chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return "", ErrInvalidResponse
	}

	return strings.TrimSpace(chatResp.Choices[0].Message.Content), nil
}

// buildPrompt builds the classification prompt for a message
func (c *Client) buildPrompt(msg mailbox.RawMessage) string {
	body := msg.Body
	if body == "" {
		body = msg.Snippet
	}
	if len(body) > bodyPreviewLength {
		body = body[:bodyPreviewLength]
	}

	userName := c.userName
	if userName == "" {
		userName = "the recipient"
	}

	return fmt.Sprintf(`You are an executive assistant AI for %s, known for professional, warm communication.

EMAIL TO ANALYZE:
From: %s
Subject: %s
Preview: %s

Classify the email into exactly one category:
- Important: work matters, urgent requests, meetings, deadlines, business opportunities
- Personal: friends, family, personal contacts, social invitations
- Newsletter: marketing, updates, subscriptions, promotional content
- Spam: unsolicited, irrelevant, suspicious or low-quality content

Assign a priority: High (needs immediate attention), Medium (respond within 24-48 hours), Low (can wait or no response needed).

Draft a reply for Important and Personal emails: warm, professional, 3-5 sentences, addressing the specific points raised, signed "Best regards,\n%s". For Newsletter and Spam output exactly "No reply needed".

Respond with strict JSON only:
{
  "category": "Important|Personal|Newsletter|Spam",
  "priority": "High|Medium|Low",
  "reply": "Your drafted reply OR 'No reply needed'",
  "reasoning": "Brief explanation of the classification",
  "needs_reply": true|false
}`, userName, msg.Sender, msg.Subject, body, userName)
}

// classificationPayload mirrors the JSON schema the prompt demands
type classificationPayload struct {
	Category   string `json:"category"`
	Priority   string `json:"priority"`
	Reply      string `json:"reply"`
	Reasoning  string `json:"reasoning"`
	NeedsReply *bool  `json:"needs_reply"`
}

// parseResponse parses a model response into a classification result. It
// first extracts the outermost JSON object from the text; if that fails
// it falls back to line-oriented "Category: ..." parsing.
func (c *Client) parseResponse(text string) (classify.Result, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		var payload classificationPayload
		if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err == nil && payload.Category != "" {
			return payloadToResult(payload)
		}
	}

	return parseTextResponse(text)
}

// parseTextResponse handles models that ignore the JSON instruction and
// answer in "Category: X" lines
func parseTextResponse(text string) (classify.Result, error) {
	payload := classificationPayload{
		Category: string(models.CategoryPersonal),
		Priority: string(models.PriorityMedium),
		Reply:    text,
	}

	for _, line := range strings.Split(text, "\n") {
		switch {
		case strings.HasPrefix(line, "Category:"):
			payload.Category = strings.TrimSpace(strings.TrimPrefix(line, "Category:"))
		case strings.HasPrefix(line, "Priority:"):
			payload.Priority = strings.TrimSpace(strings.TrimPrefix(line, "Priority:"))
		case strings.HasPrefix(line, "Reply:"):
			payload.Reply = strings.TrimSpace(strings.TrimPrefix(line, "Reply:"))
		}
	}

	return payloadToResult(payload)
}

func payloadToResult(payload classificationPayload) (classify.Result, error) {
	result := classify.Result{
		Category:  models.Category(payload.Category),
		Priority:  models.Priority(payload.Priority),
		Reply:     payload.Reply,
		Reasoning: payload.Reasoning,
	}

	if !result.Category.IsValid() {
		return classify.Result{}, fmt.Errorf("%w: unknown category %q", ErrInvalidResponse, payload.Category)
	}
	if !result.Priority.IsValid() {
		result.Priority = models.PriorityMedium
	}

	if payload.NeedsReply != nil {
		result.NeedsReply = *payload.NeedsReply
	} else {
		result.NeedsReply = !strings.Contains(result.Reply, "No reply needed")
	}

	return result, nil
}
