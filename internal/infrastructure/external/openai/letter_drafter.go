package openai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/smbgAlokk/bharatforce/internal/application/port"
)

// LetterDrafter implements port.LetterDrafter using an OpenAI-compatible chat API
type LetterDrafter struct {
	client  *openai.Client
	model   string
	prompts *PromptConfig
	logger  *zap.Logger
}

// NewLetterDrafter creates a new drafter. An empty baseURL uses the OpenAI endpoint.
func NewLetterDrafter(apiKey, baseURL, model string, prompts *PromptConfig, logger *zap.Logger) *LetterDrafter {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if prompts == nil {
		prompts = DefaultPrompts()
	}

	return &LetterDrafter{
		client:  openai.NewClientWithConfig(cfg),
		model:   model,
		prompts: prompts,
		logger:  logger,
	}
}

// DraftLetter asks the model for the body of an increment or promotion letter
func (d *LetterDrafter) DraftLetter(ctx context.Context, req port.LetterRequest) (string, error) {
	d.logger.Debug("Drafting letter",
		zap.String("employee_id", req.EmployeeID),
		zap.String("kind", req.Kind))

	prompt, err := renderTemplate(d.prompts.LetterDraft.UserTemplate, req)
	if err != nil {
		return "", err
	}

	resp, err := d.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       d.model,
		Temperature: d.prompts.LetterDraft.Temperature,
		MaxTokens:   d.prompts.LetterDraft.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: d.prompts.LetterDraft.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
	})
	if err != nil {
		d.logger.Error("OpenAI API call failed", zap.Error(err))
		return "", fmt.Errorf("OpenAI API call failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from OpenAI")
	}

	body := strings.TrimSpace(stripFence(resp.Choices[0].Message.Content))
	if body == "" {
		return "", fmt.Errorf("empty letter from OpenAI")
	}

	d.logger.Info("Letter drafted",
		zap.String("employee_id", req.EmployeeID),
		zap.Int("tokens", resp.Usage.TotalTokens))

	return body, nil
}

// stripFence removes a surrounding markdown code fence if the model added one
func stripFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if nl := strings.IndexByte(trimmed, '\n'); nl >= 0 {
		trimmed = trimmed[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
}

// Verify interface compliance
var _ port.LetterDrafter = (*LetterDrafter)(nil)
