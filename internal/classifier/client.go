package classifier

import (
	"context"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"mail-triage-go/internal/config"
)

// Region identifies which classification endpoint answered a call.
const (
	RegionPrimary = "primary"
	RegionBackup  = "backup"
)

// ChatResult is the raw outcome of one chat completion call.
type ChatResult struct {
	Content          string
	PromptTokens     int
	CompletionTokens int
	Region           string
}

// ChatClient is the boundary to the external text-classification service.
// Implementations must request a machine-parseable JSON response.
type ChatClient interface {
	Complete(ctx context.Context, model, system, user string) (*ChatResult, error)
}

// FailoverClient calls a primary OpenAI-compatible endpoint and retries the
// same request against a backup endpoint when the primary fails.
type FailoverClient struct {
	primary *openai.Client
	backup  *openai.Client
}

// NewFailoverClient builds the failover client from config. The backup
// client is nil when no backup credentials are configured.
func NewFailoverClient(cfg *config.OpenAIConfig) *FailoverClient {
	c := &FailoverClient{
		primary: newOpenAIClient(cfg.APIKey, cfg.BaseURL),
	}
	if cfg.BackupAPIKey != "" {
		c.backup = newOpenAIClient(cfg.BackupAPIKey, cfg.BackupBaseURL)
	}
	return c
}

func newOpenAIClient(apiKey, baseURL string) *openai.Client {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(clientCfg)
}

// Complete runs one chat completion in JSON mode, falling back to the
// backup endpoint if the primary call fails.
func (c *FailoverClient) Complete(ctx context.Context, model, system, user string) (*ChatResult, error) {
	req := openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: 0.1,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	}

	resp, err := c.primary.CreateChatCompletion(ctx, req)
	if err == nil {
		return chatResult(&resp, RegionPrimary)
	}
	primaryErr := err

	if c.backup == nil {
		return nil, fmt.Errorf("primary endpoint failed and no backup configured: %w", primaryErr)
	}

	logrus.Warnf("Primary classification endpoint failed, trying backup: %v", primaryErr)

	resp, err = c.backup.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("both classification endpoints failed: primary: %v; backup: %w", primaryErr, err)
	}
	return chatResult(&resp, RegionBackup)
}

func chatResult(resp *openai.ChatCompletionResponse, region string) (*ChatResult, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("classification service returned no choices")
	}
	return &ChatResult{
		Content:          resp.Choices[0].Message.Content,
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		Region:           region,
	}, nil
}

// modelCosts holds per-million-token prices in USD.
var modelCosts = map[string]struct {
	PromptPerM     float64
	CompletionPerM float64
}{
	"gpt-4o":      {PromptPerM: 5, CompletionPerM: 15},
	"gpt-4o-mini": {PromptPerM: 0.15, CompletionPerM: 0.60},
}

// costUSD prices one call; unknown models cost zero.
func costUSD(model string, promptTokens, completionTokens int) float64 {
	c, ok := modelCosts[model]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1e6*c.PromptPerM + float64(completionTokens)/1e6*c.CompletionPerM
}
