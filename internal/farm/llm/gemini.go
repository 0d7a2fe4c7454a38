// Package llm wraps the gemini chat models behind the analysis
// capability the stage runner invokes: messages in, raw text plus
// token usage out, with transient transport failures retried.
package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"google.golang.org/genai"

	"github.com/terra-hawk/smartfarm/internal/farm/model"
	logx "github.com/terra-hawk/smartfarm/pkg/logger"
)

// ChatModels holds the two models the pipeline talks to: a standard
// analysis model and a reasoning model with a thinking budget for the
// compliance and aggregation stages.
type ChatModels struct {
	Analysis  *Capability
	Reasoning *Capability
}

// Capability is one configured chat model. It satisfies the stage
// runner's inference contract.
type Capability struct {
	model einomodel.BaseChatModel
	name  string
}

// ClientConfig carries what is needed to reach the Gemini API.
type ClientConfig struct {
	APIKey  string
	BaseURL string
}

// NewChatModels builds both capabilities over one shared API client.
func NewChatModels(ctx context.Context, cc ClientConfig, analysis model.AnalysisModelConfig, reasoning model.ReasoningModelConfig) (*ChatModels, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cc.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cc.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cc.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	analysisModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       analysis.Model,
		Temperature: &analysis.Temperature,
		MaxTokens:   &analysis.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating analysis model")
		return nil, fmt.Errorf("error creating analysis model: %w", err)
	}

	reasoningModel, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       reasoning.Model,
		Temperature: &reasoning.Temperature,
		MaxTokens:   &reasoning.MaxTokens,
		ThinkingConfig: &genai.ThinkingConfig{
			IncludeThoughts: false,
			ThinkingBudget:  genai.Ptr(reasoning.ThinkingBudget),
		},
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating reasoning model")
		return nil, fmt.Errorf("error creating reasoning model: %w", err)
	}

	return &ChatModels{
		Analysis:  &Capability{model: analysisModel, name: analysis.Model},
		Reasoning: &Capability{model: reasoningModel, name: reasoning.Model},
	}, nil
}

// NewCapability wraps an already constructed chat model. Tests use it
// with fakes.
func NewCapability(m einomodel.BaseChatModel, name string) *Capability {
	return &Capability{model: m, name: name}
}

func (c *Capability) Name() string {
	return c.name
}

// Generate runs one inference call, retrying transient failures with
// exponential backoff.
func (c *Capability) Generate(ctx context.Context, messages []*schema.Message) (string, model.TokenUsage, error) {
	var out *schema.Message

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.MaxInterval = 30 * time.Second

	err := backoff.Retry(func() error {
		resp, err := c.model.Generate(ctx, messages)
		if err != nil {
			logx.Warn().Str("model", c.name).Err(err).Msg("inference call failed, retrying")
			return err
		}
		out = resp
		return nil
	}, backoff.WithContext(backoff.WithMaxRetries(b, 3), ctx))
	if err != nil {
		return "", model.TokenUsage{}, fmt.Errorf("inference failed for %s: %w", c.name, err)
	}

	var usage model.TokenUsage
	if out.ResponseMeta != nil && out.ResponseMeta.Usage != nil {
		usage = model.TokenUsage{
			PromptTokens:     out.ResponseMeta.Usage.PromptTokens,
			CompletionTokens: out.ResponseMeta.Usage.CompletionTokens,
			TotalTokens:      out.ResponseMeta.Usage.TotalTokens,
			Requests:         1,
		}
	} else {
		usage.Requests = 1
	}
	return out.Content, usage, nil
}
