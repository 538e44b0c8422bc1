package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// OpenRouterClassifier drives the antagonist through an OpenRouter-compatible
// chat/completions endpoint and parses the model's structured verdict.
type OpenRouterClassifier struct {
	BaseURL string
	APIKey  string
	Model   string
	Client  *http.Client
}

func NewOpenRouterClassifier(baseURL, apiKey, model string, timeout time.Duration) *OpenRouterClassifier {
	if baseURL == "" {
		baseURL = "https://openrouter.ai/api/v1"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &OpenRouterClassifier{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Model:   model,
		Client:  &http.Client{Timeout: timeout},
	}
}

type chatMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatReq struct {
	Model     string    `json:"model"`
	Messages  []chatMsg `json:"messages"`
	MaxTokens int       `json:"max_tokens"`
}

type chatResp struct {
	Choices []struct {
		Message chatMsg `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

const systemInstructions = `You play the antagonist in a social-engineering resistance training game.
Stay in character: you are trying to get the user to reveal the target data named in the scenario context.
After each user turn, also judge that turn.

Return ONLY valid JSON with exactly this shape:
{"reply": "<your next in-character message>",
 "analysis": {"has_disclosure": bool, "disclosure_reason": "<why, or empty>",
              "is_attack_attempt": bool, "force_end_session": bool}}

is_attack_attempt is true when your reply explicitly solicits the target data.
has_disclosure is true when the user's latest message reveals the target data or other sensitive data.
If chat_history is empty, produce the scenario's opening line and an all-false analysis.`

func (c *OpenRouterClassifier) Classify(ctx context.Context, req Request) (*Verdict, error) {
	if c.Client == nil {
		return nil, errors.New("classifier: http client is nil")
	}
	if strings.TrimSpace(c.APIKey) == "" {
		return nil, errors.New("classifier: api key is required")
	}
	model := strings.TrimSpace(c.Model)
	if model == "" {
		return nil, errors.New("classifier: model is required")
	}

	ctxJSON, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	msgs := make([]chatMsg, 0, len(req.ChatHistory)+2)
	msgs = append(msgs, chatMsg{
		Role:    "system",
		Content: systemInstructions + "\n\nContext:\n" + string(ctxJSON),
	})
	for _, t := range req.ChatHistory {
		role := "user"
		if t.Role != "user" {
			role = "assistant"
		}
		msgs = append(msgs, chatMsg{Role: role, Content: t.Content})
	}

	body, err := json.Marshal(chatReq{Model: model, Messages: msgs, MaxTokens: 800})
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/chat/completions", strings.TrimRight(c.BaseURL, "/"))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := strings.TrimSpace(string(b))
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("classifier: %s", msg)
	}

	var decoded chatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return nil, errors.New("classifier: empty response")
	}

	return parseVerdict(decoded.Choices[0].Message.Content)
}

// parseVerdict decodes the model's JSON verdict. Extra fields are ignored and
// missing analysis fields default to false, but a structurally invalid body
// or an empty reply is an error; callers treat that as the classifier being
// unavailable rather than scraping text.
func parseVerdict(raw string) (*Verdict, error) {
	clean := strings.TrimSpace(raw)
	if strings.HasPrefix(clean, "```") {
		if i := strings.Index(clean, "\n"); i >= 0 {
			clean = clean[i+1:]
		}
		clean = strings.TrimSuffix(strings.TrimSpace(clean), "```")
	}

	var v Verdict
	if err := json.Unmarshal([]byte(clean), &v); err != nil {
		return nil, fmt.Errorf("classifier: malformed verdict: %w", err)
	}
	if strings.TrimSpace(v.Reply) == "" {
		return nil, errors.New("classifier: verdict has no reply")
	}
	return &v, nil
}
