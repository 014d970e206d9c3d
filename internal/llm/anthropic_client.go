// Package llm implements clients for the reasoning service.
package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"labagent/internal/agent/ports"
	laberrors "labagent/internal/errors"
	"labagent/internal/logging"
	jsonx "labagent/internal/shared/json"
)

const (
	defaultAnthropicBaseURL     = "https://api.anthropic.com/v1"
	defaultAnthropicVersion     = "2023-06-01"
	anthropicVersionHeaderKey   = "anthropic-version"
	anthropicRequestHeaderKey   = "x-api-key"
	anthropicMessagesPath       = "/messages"
	anthropicRequestContentType = "application/json"
	maxResponseBytes            = 8 << 20
)

// Config configures a reasoning-service client.
type Config struct {
	APIKey  string
	BaseURL string
	Timeout time.Duration
	Headers map[string]string
	Logger  logging.Logger
}

type anthropicClient struct {
	model      string
	apiKey     string
	baseURL    string
	httpClient *http.Client
	logger     logging.Logger
	headers    map[string]string
}

// NewAnthropicClient returns a client for the Anthropic Messages API.
func NewAnthropicClient(model string, config Config) (ports.LLMClient, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("model is required")
	}
	if strings.TrimSpace(config.APIKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if config.BaseURL == "" {
		config.BaseURL = defaultAnthropicBaseURL
	}
	timeout := 120 * time.Second
	if config.Timeout > 0 {
		timeout = config.Timeout
	}

	return &anthropicClient{
		model:      model,
		apiKey:     config.APIKey,
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logging.OrNop(config.Logger),
		headers:    config.Headers,
	}, nil
}

func (c *anthropicClient) Complete(ctx context.Context, req ports.CompletionRequest) (*ports.CompletionResponse, error) {
	requestID := uuid.NewString()
	prefix := fmt.Sprintf("[req:%s] ", requestID)

	payload := anthropicRequest{
		Model:     c.model,
		MaxTokens: req.MaxTokens,
		System:    req.System,
		Messages:  convertMessages(req.Messages),
		Tools:     convertAnthropicTools(req.Tools),
	}
	body, err := jsonx.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("%s=== LLM Request ===", prefix)
	c.logger.Debug("%sURL: POST %s%s", prefix, c.baseURL, anthropicMessagesPath)
	c.logger.Debug("%sModel: %s, messages: %d, tools: %d", prefix, c.model, len(payload.Messages), len(payload.Tools))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+anthropicMessagesPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", anthropicRequestContentType)
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	if httpReq.Header.Get(anthropicRequestHeaderKey) == "" {
		httpReq.Header.Set(anthropicRequestHeaderKey, c.apiKey)
	}
	if httpReq.Header.Get(anthropicVersionHeaderKey) == "" {
		httpReq.Header.Set(anthropicVersionHeaderKey, defaultAnthropicVersion)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Debug("%sHTTP request failed: %v", prefix, err)
		return nil, wrapRequestError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", wrapRequestError(err))
	}
	c.logger.Debug("%sStatus: %d", prefix, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Debug("%sError Response Body: %s", prefix, string(respBody))
		return nil, laberrors.NewHTTPError(resp.StatusCode, errorDetail(respBody), resp.Header.Get("Retry-After"))
	}

	var apiResp anthropicResponse
	if err := jsonx.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if apiResp.Error != nil && apiResp.Error.Message != "" {
		return nil, laberrors.NewHTTPError(resp.StatusCode, []byte(apiResp.Error.String()), "")
	}

	result := &ports.CompletionResponse{
		ID:         strings.TrimSpace(apiResp.ID),
		Content:    parseAnthropicContent(apiResp.Content),
		StopReason: apiResp.StopReason,
		Usage: ports.TokenUsage{
			InputTokens:  apiResp.Usage.InputTokens,
			OutputTokens: apiResp.Usage.OutputTokens,
		},
	}

	c.logger.Debug("%sStop Reason: %s, blocks: %d, usage: %d in + %d out",
		prefix, result.StopReason, len(result.Content), result.Usage.InputTokens, result.Usage.OutputTokens)
	return result, nil
}

func (c *anthropicClient) Model() string {
	return c.model
}

func convertMessages(msgs []ports.Message) []anthropicMessage {
	messages := make([]anthropicMessage, 0, len(msgs))
	for _, msg := range msgs {
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		if role == "" || len(msg.Content) == 0 {
			continue
		}
		blocks := make([]anthropicContentBlock, 0, len(msg.Content))
		for _, b := range msg.Content {
			switch b.Type {
			case ports.BlockText:
				if b.Text == "" {
					continue
				}
				blocks = append(blocks, anthropicContentBlock{Type: b.Type, Text: b.Text})
			case ports.BlockToolUse:
				blocks = append(blocks, anthropicContentBlock{
					Type:  b.Type,
					ID:    b.ID,
					Name:  b.Name,
					Input: normalizeToolInput(b.Input),
				})
			case ports.BlockToolResult:
				blocks = append(blocks, anthropicContentBlock{
					Type:      b.Type,
					ToolUseID: b.ToolUseID,
					Content:   b.Content,
				})
			}
		}
		if len(blocks) == 0 {
			continue
		}
		messages = append(messages, anthropicMessage{Role: role, Content: blocks})
	}
	return messages
}

func convertAnthropicTools(tools []ports.ToolDefinition) []anthropicTool {
	result := make([]anthropicTool, 0, len(tools))
	for _, tool := range tools {
		if !isValidToolName(tool.Name) {
			continue
		}
		result = append(result, anthropicTool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.Parameters,
		})
	}
	return result
}

func parseAnthropicContent(blocks []anthropicContentBlock) []ports.ContentBlock {
	out := make([]ports.ContentBlock, 0, len(blocks))
	for _, block := range blocks {
		switch strings.ToLower(strings.TrimSpace(block.Type)) {
		case ports.BlockText:
			out = append(out, ports.TextBlock(block.Text))
		case ports.BlockToolUse:
			out = append(out, ports.ToolUseBlock(block.ID, block.Name, normalizeToolInput(block.Input)))
		}
	}
	return out
}

func errorDetail(body []byte) []byte {
	var envelope anthropicResponse
	if err := jsonx.Unmarshal(body, &envelope); err == nil && envelope.Error != nil && envelope.Error.Message != "" {
		return []byte(envelope.Error.String())
	}
	return body
}

// wrapRequestError marks transport failures as transient so the session log
// classifies them as network errors. Context errors pass through unchanged.
func wrapRequestError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return &laberrors.TransientError{Err: err, Message: fmt.Sprintf("network error: %v", err)}
	}
	return err
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicTool struct {
	Name        string                `json:"name"`
	Description string                `json:"description"`
	InputSchema ports.ParameterSchema `json:"input_schema"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicContentBlock struct {
	Type      string           `json:"type"`
	Text      string           `json:"text,omitempty"`
	ID        string           `json:"id,omitempty"`
	Name      string           `json:"name,omitempty"`
	Input     jsonx.RawMessage `json:"input,omitempty"`
	ToolUseID string           `json:"tool_use_id,omitempty"`
	Content   string           `json:"content,omitempty"`
}

type anthropicResponse struct {
	ID         string                  `json:"id"`
	Type       string                  `json:"type"`
	Role       string                  `json:"role"`
	Content    []anthropicContentBlock `json:"content"`
	StopReason string                  `json:"stop_reason"`
	Usage      anthropicUsage          `json:"usage"`
	Error      *anthropicError         `json:"error"`
}

type anthropicUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *anthropicError) String() string {
	if e.Type == "" {
		return e.Message
	}
	return e.Type + ": " + e.Message
}
