package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/intakeflow/intake-backend/internal/config"
	"github.com/intakeflow/intake-backend/internal/entity"
)

// Connector talks to an OpenAI-compatible chat completion API. Both pipeline
// programs go through it; the per-program model/temperature/timeout arrive on
// each request, so one connector serves planner and renderer alike.
//
// No retries: a failed or slow call degrades the batch instead of stalling
// the widget behind backoff.
type Connector struct {
	client *openai.Client
	logger *zap.Logger
}

func NewConnector(cfg config.LLMConnectorConfig, logger *zap.Logger) *Connector {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Connector{
		client: openai.NewClientWithConfig(clientCfg),
		logger: logger,
	}
}

// PlanQuestions runs the planner program: compact context in, raw plan JSON
// out. The output is returned as-is; parsing and repair happen downstream.
func (c *Connector) PlanQuestions(ctx context.Context, req *entity.PlannerRequest) (*entity.PlannerResult, error) {
	ctxzap.Info(ctx, "planning questions via LLM",
		zap.String("model", req.LM.Model),
		zap.Int("max_steps", req.MaxSteps),
	)

	user := buildPlannerUserPrompt(req)
	text, usage, err := c.complete(ctx, req.LM, plannerSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("planner call failed: %w", err)
	}

	ctxzap.Info(ctx, "question plan generated", zap.Int("output_length", len(text)))
	return &entity.PlannerResult{QuestionPlanJSON: text, Usage: usage}, nil
}

// RenderSteps runs the renderer program: sliced plan plus render context in,
// raw JSONL out.
func (c *Connector) RenderSteps(ctx context.Context, req *entity.RendererRequest) (*entity.RendererResult, error) {
	ctxzap.Info(ctx, "rendering steps via LLM",
		zap.String("model", req.LM.Model),
		zap.Int("max_steps", req.MaxSteps),
	)

	user := buildRendererUserPrompt(req)
	text, usage, err := c.complete(ctx, req.LM, rendererSystemPrompt, user)
	if err != nil {
		return nil, fmt.Errorf("renderer call failed: %w", err)
	}

	ctxzap.Info(ctx, "steps rendered", zap.Int("output_length", len(text)))
	return &entity.RendererResult{MiniStepsJSONL: text, Usage: usage}, nil
}

func (c *Connector) complete(ctx context.Context, lm entity.LMConfig, system, user string) (string, *entity.LMUsage, error) {
	if !lm.Configured {
		return "", nil, fmt.Errorf("lm not configured: %s", lm.Reason)
	}

	callCtx := ctx
	if lm.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, lm.Timeout)
		defer cancel()
	}

	resp, err := c.client.CreateChatCompletion(callCtx, openai.ChatCompletionRequest{
		Model:       lm.Model,
		Temperature: lm.Temperature,
		MaxTokens:   lm.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
	})
	if err != nil {
		return "", nil, err
	}
	if len(resp.Choices) == 0 {
		return "", nil, fmt.Errorf("chat completion returned no choices")
	}

	usage := &entity.LMUsage{
		PromptTokens:     resp.Usage.PromptTokens,
		CompletionTokens: resp.Usage.CompletionTokens,
		TotalTokens:      resp.Usage.TotalTokens,
	}
	return resp.Choices[0].Message.Content, usage, nil
}

func buildPlannerUserPrompt(req *entity.PlannerRequest) string {
	var b strings.Builder
	b.WriteString("context_json:\n")
	b.WriteString(req.ContextJSON)
	b.WriteString("\n\nmax_steps: ")
	b.WriteString(strconv.Itoa(req.MaxSteps))
	b.WriteString("\nallowed_mini_types: ")
	b.WriteString(strings.Join(req.AllowedMiniTypes, ","))
	b.WriteString("\n\nquestion_plan_json:")
	return b.String()
}

func buildRendererUserPrompt(req *entity.RendererRequest) string {
	var b strings.Builder
	b.WriteString("plan_json:\n")
	b.WriteString(req.PlanJSON)
	b.WriteString("\n\nrender_context_json:\n")
	b.WriteString(req.RenderContextJSON)
	b.WriteString("\n\nmax_steps: ")
	b.WriteString(strconv.Itoa(req.MaxSteps))
	b.WriteString("\nallowed_mini_types: ")
	b.WriteString(strings.Join(req.AllowedMiniTypes, ","))
	b.WriteString("\n\nmini_steps_jsonl:")
	return b.String()
}
