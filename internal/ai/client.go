// Package ai calls the generative advisor endpoint for skill
// recommendations, resume feedback, and reporting summaries. All
// features degrade gracefully: callers treat an error as "no advice".
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
	"time"

	"saedportal.org/internal/portal"
)

// ErrDisabled marks a client constructed without an API key.
var ErrDisabled = errors.New("ai: advisor disabled, no api key configured")

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	defaultModel   = "gemini-2.5-flash"
)

// SkillSuggestion pairs a recommended skill with the reasoning and the
// approved instructors who teach it.
type SkillSuggestion struct {
	SkillName     string   `json:"skill_name"`
	Reason        string   `json:"reason"`
	InstructorIDs []string `json:"instructor_ids,omitempty"`
}

// Client talks to the advisor API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient substitutes the transport, used by tests.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// WithBaseURL points the client at a different endpoint.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithModel overrides the generation model.
func WithModel(m string) ClientOption {
	return func(c *Client) {
		if m != "" {
			c.model = m
		}
	}
}

// NewClient builds the advisor client. An empty key yields a client
// whose calls all return ErrDisabled.
func NewClient(apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		model:      defaultModel,
		apiKey:     strings.TrimSpace(apiKey),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// RecommendSkills suggests training paths for the stated interests,
// matched against the approved instructor roster.
func (c *Client) RecommendSkills(ctx context.Context, interests string, instructors []portal.InstructorRecord) ([]SkillSuggestion, error) {
	roster := make([]map[string]any, 0, len(instructors))
	for _, rec := range instructors {
		roster = append(roster, map[string]any{
			"id":     rec.ID,
			"name":   rec.Name,
			"skills": rec.Skills,
		})
	}
	rosterJSON, _ := json.Marshal(roster)

	prompt := fmt.Sprintf(
		"A corps member stated these interests: %q.\n"+
			"Available instructors and their skills: %s\n"+
			"Recommend up to 3 skills as a JSON array of objects with keys "+
			"skill_name, reason, instructor_ids.",
		interests, rosterJSON)

	raw, err := c.generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	var suggestions []SkillSuggestion
	if err := json.Unmarshal([]byte(raw), &suggestions); err != nil {
		return nil, fmt.Errorf("ai: decode suggestions: %w", err)
	}
	return suggestions, nil
}

// AnalyzeResume returns improvement feedback for the given resume text.
func (c *Client) AnalyzeResume(ctx context.Context, resume string) (string, error) {
	prompt := "Review this NYSC corps member resume and give concise, " +
		"actionable feedback in plain text:\n\n" + resume
	return c.generate(ctx, prompt)
}

// QuarterlySummary drafts a narrative report over the period's
// enrollment activity for admin reporting.
func (c *Client) QuarterlySummary(ctx context.Context, regs []portal.Registration) (string, error) {
	data, _ := json.Marshal(regs)
	prompt := "Summarize this quarter's skill acquisition activity for a " +
		"state coordinator report. Registrations: " + string(data)
	return c.generate(ctx, prompt)
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("ai: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("ai: decode response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		if out.Error != nil {
			return "", fmt.Errorf("ai: %s (status %d)", out.Error.Message, resp.StatusCode)
		}
		return "", fmt.Errorf("ai: unexpected status %d", resp.StatusCode)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("ai: empty response")
	}
	return cleanFences(out.Candidates[0].Content.Parts[0].Text), nil
}

// cleanFences strips markdown code fences the model wraps JSON in.
func cleanFences(s string) string {
	s = strings.TrimSpace(s)
	if after, ok := strings.CutPrefix(s, "```json"); ok {
		s = after
	} else if after, ok := strings.CutPrefix(s, "```"); ok {
		s = after
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
