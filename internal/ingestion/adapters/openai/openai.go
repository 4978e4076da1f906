// Package openai extracts clause drafts through the OpenAI Responses API with a
// strict JSON schema.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"permitpulse/internal/rules"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4.1-mini"
	DefaultTimeout = 30 * time.Second

	systemPrompt = "Extract short-term rental regulations into normalized JSON clauses. Use conservative confidence values."
	schemaName   = "str_rules"
	schemaURL    = "https://permitpulse.local/schemas/str_rules.schema.json"
)

// clauseSchema is sent to the model and enforced again on the reply.
const clauseSchema = `{
  "type": "object",
  "properties": {
    "clauses": {
      "type": "array",
      "items": {
        "type": "object",
        "properties": {
          "clause_id": {"type": "string"},
          "category": {"type": "string"},
          "condition_expr": {"type": "object"},
          "requirement_text": {"type": "string"},
          "penalty_text": {"type": "string"},
          "confidence": {"type": "number"}
        },
        "required": ["clause_id", "category", "condition_expr", "requirement_text", "penalty_text", "confidence"],
        "additionalProperties": false
      }
    }
  },
  "required": ["clauses"],
  "additionalProperties": false
}`

// Client calls the Responses API.
type Client struct {
	apiKey  string
	baseURL string
	model   string
	http    *http.Client
	schema  *jsonschema.Schema
	logger  *slog.Logger
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithModel(model string) Option {
	return func(c *Client) {
		if model != "" {
			c.model = model
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.http = client
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New compiles the reply schema and returns a client for apiKey.
func New(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: api key is required")
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	if err := compiler.AddResource(schemaURL, strings.NewReader(clauseSchema)); err != nil {
		return nil, fmt.Errorf("openai: load schema: %w", err)
	}
	schema, err := compiler.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("openai: compile schema: %w", err)
	}

	c := &Client{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		model:   DefaultModel,
		http:    &http.Client{Timeout: DefaultTimeout},
		schema:  schema,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type inputMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type textFormat struct {
	Type   string          `json:"type"`
	Name   string          `json:"name"`
	Schema json.RawMessage `json:"schema"`
	Strict bool            `json:"strict"`
}

type responsesRequest struct {
	Model string         `json:"model"`
	Input []inputMessage `json:"input"`
	Text  struct {
		Format textFormat `json:"format"`
	} `json:"text"`
}

type responsesReply struct {
	OutputText *string `json:"output_text"`
	Output     []struct {
		Content []struct {
			Type string  `json:"type"`
			Text *string `json:"text"`
		} `json:"content"`
	} `json:"output"`
}

// ResponseText returns output_text when present, otherwise the joined text parts
// of output[].content[].
func ResponseText(raw []byte) (string, error) {
	var reply responsesReply
	if err := json.Unmarshal(raw, &reply); err != nil {
		return "", fmt.Errorf("decode reply: %w", err)
	}
	if reply.OutputText != nil {
		return *reply.OutputText, nil
	}
	var chunks []string
	for _, item := range reply.Output {
		for _, part := range item.Content {
			if (part.Type == "output_text" || part.Type == "text") && part.Text != nil {
				chunks = append(chunks, *part.Text)
			}
		}
	}
	return strings.TrimSpace(strings.Join(chunks, "\n")), nil
}

// Extract sends text to the model and returns the schema-conforming clauses.
// Clauses whose condition cannot be parsed are dropped.
func (c *Client) Extract(ctx context.Context, text string) ([]rules.ClauseDraft, error) {
	body := responsesRequest{
		Model: c.model,
		Input: []inputMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: text},
		},
	}
	body.Text.Format = textFormat{
		Type:   "json_schema",
		Name:   schemaName,
		Schema: json.RawMessage(clauseSchema),
		Strict: true,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("openai: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/responses", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("openai: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("openai error: %d", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("openai: read reply: %w", err)
	}
	out, err := ResponseText(raw)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if out == "" {
		return nil, nil
	}
	return c.decodeClauses(ctx, out)
}

func (c *Client) decodeClauses(ctx context.Context, out string) ([]rules.ClauseDraft, error) {
	var doc any
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		return nil, fmt.Errorf("openai: malformed output: %w", err)
	}
	if err := c.schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("openai: output does not match %s: %w", schemaName, err)
	}

	items, _ := doc.(map[string]any)["clauses"].([]any)
	drafts := make([]rules.ClauseDraft, 0, len(items))
	for _, item := range items {
		m := item.(map[string]any)
		clauseID, _ := m["clause_id"].(string)
		condRaw, _ := m["condition_expr"].(map[string]any)
		cond, err := rules.ParseCondition(condRaw)
		if err != nil {
			c.logger.WarnContext(ctx, "dropping model clause with malformed condition",
				"clause_id", clauseID,
				"error", err,
			)
			continue
		}
		category, _ := m["category"].(string)
		requirement, _ := m["requirement_text"].(string)
		penalty, _ := m["penalty_text"].(string)
		confidence, _ := m["confidence"].(float64)
		if confidence < 0 || confidence > 1 {
			c.logger.WarnContext(ctx, "clamping model clause confidence to [0,1]",
				"clause_id", clauseID,
				"confidence", confidence,
			)
			confidence = min(max(confidence, 0), 1)
		}
		drafts = append(drafts, rules.ClauseDraft{
			ClauseID:        clauseID,
			Category:        category,
			Condition:       rules.NewExpression(cond),
			RequirementText: requirement,
			PenaltyText:     penalty,
			Confidence:      rules.Float(confidence),
		})
	}
	return drafts, nil
}
