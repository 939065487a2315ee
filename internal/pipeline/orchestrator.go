package pipeline

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/intakeflow/intake-backend/internal/entity"
	"github.com/intakeflow/intake-backend/internal/flow"
	"github.com/intakeflow/intake-backend/internal/pkg/cache"
	"github.com/intakeflow/intake-backend/internal/schema"
)

// LMClient runs the two LLM programs. Implemented by the OpenAI connector
// and by the deterministic mock.
type LMClient interface {
	PlanQuestions(ctx context.Context, req *entity.PlannerRequest) (*entity.PlannerResult, error)
	RenderSteps(ctx context.Context, req *entity.RendererRequest) (*entity.RendererResult, error)
}

// SchemaVersionSource resolves the UI contract version when the payload does
// not carry one.
type SchemaVersionSource interface {
	ContractVersion(ctx context.Context) string
}

// Config carries the resolved pipeline settings. LM configs are resolved once
// at startup; Configured=false fails requests fast instead of erroring deep
// inside a call.
type Config struct {
	PlannerLM  entity.LMConfig
	RendererLM entity.LMConfig

	PlannerCacheTTL    time.Duration
	RenderCacheTTL     time.Duration
	RenderCacheEnabled bool

	TokenOverageAllowance int
	TriggerPosition       int
	DefaultSchemaVersion  string

	Flow flow.Options
}

// Service is the planner -> renderer orchestrator. One instance serves all
// requests; the TTL caches are the only shared mutable state.
type Service struct {
	lm       LMClient
	versions SchemaVersionSource

	plannerCache *cache.TTLCache
	renderCache  *cache.TTLCache
	triggerMemo  *cache.TTLCache

	tokens *TokenEstimator
	logger *zap.Logger
	cfg    Config
}

func NewService(lm LMClient, versions SchemaVersionSource, logger *zap.Logger, cfg Config) *Service {
	return &Service{
		lm:           lm,
		versions:     versions,
		plannerCache: cache.New(cfg.PlannerCacheTTL),
		renderCache:  cache.New(cfg.RenderCacheTTL),
		triggerMemo:  cache.New(cfg.PlannerCacheTTL),
		tokens:       NewTokenEstimator(),
		logger:       logger,
		cfg:          cfg,
	}
}

// PlannerCache exposes the plan cache for warm-up and tests.
func (s *Service) PlannerCache() *cache.TTLCache { return s.plannerCache }

// RenderCache exposes the render-output cache for warm-up and tests.
func (s *Service) RenderCache() *cache.TTLCache { return s.renderCache }

// NextSteps generates the next batch of form steps. Single pass, no retries
// across stages: unparseable LLM output degrades to "produced nothing" and
// the deterministic backstops fill the gap. The caller always gets a
// response object; ok:false plus an error string is the only failure signal.
func (s *Service) NextSteps(ctx context.Context, payload *entity.NextStepsPayload) *entity.NextStepsResponse {
	start := time.Now()
	requestID := "next_steps_" + uuid.NewString()
	if payload == nil {
		payload = &entity.NextStepsPayload{}
	}

	schemaVersion := s.resolveSchemaVersion(ctx, payload)

	if !s.cfg.PlannerLM.Configured {
		return entity.ErrorResponse(requestID, schemaVersion, entity.ErrPlannerNotConfigured.Error())
	}
	if !s.cfg.RendererLM.Configured {
		return entity.ErrorResponse(requestID, schemaVersion, entity.ErrRendererNotConfigured.Error())
	}

	tokensTotal, tokensUsed := flow.ExtractTokenBudget(payload.BatchState)
	if BudgetExhausted(tokensTotal, tokensUsed, s.cfg.TokenOverageAllowance) {
		return entity.ErrorResponse(requestID, schemaVersion, entity.ErrTokenBudgetExhausted.Error())
	}

	fctx := flow.BuildContext(payload, s.cfg.Flow)
	if !fctx.HasServiceContext() {
		return entity.ErrorResponse(requestID, schemaVersion, entity.ErrMissingServiceContext.Error())
	}

	fctx.Capabilities = flow.ComputeCapabilities(
		payload.StepDataSoFar,
		fctx.AnsweredQA,
		flow.PreviousCapabilities(payload.StepDataSoFar),
	)

	pack := schema.LoadCopyPack("")
	fctx.CopyStyleJSON = pack.StyleJSON()

	batchNumber := flow.ExtractBatchNumber(payload)
	maxSteps := flow.ExtractMaxStepsThisCall(payload)
	allowed := flow.EnsureAllowedMiniTypes(flow.ExtractAllowedMiniTypes(payload))
	allowed, maxSteps = flow.ApplyGuide(fctx, batchNumber, allowed, maxSteps)
	if fctx.PreferStructuredInputs {
		allowed = flow.PreferStructuredMiniTypes(allowed)
	}

	asked := fctx.AskedSet()
	noCache := payload.NoCache
	usage := &entity.LMUsage{}

	// Stage 1: planner, cached per session.
	maxPlanItems := ResolveMaxPlanItems(fctx.Constraints)
	plannerContextJSON := plannerContextJSON(fctx, asked, allowed, maxPlanItems)
	plannerKey := PlannerCacheKey(fctx.SessionID, ShortHash(fctx.ServicesSummary, 10), fctx.UseCase)

	rawPlan, plannerHit := s.cachedPlan(plannerKey, noCache)
	if !plannerHit {
		res, err := s.lm.PlanQuestions(ctx, &entity.PlannerRequest{
			ContextJSON:      plannerContextJSON,
			MaxSteps:         maxPlanItems,
			AllowedMiniTypes: allowed,
			LM:               s.cfg.PlannerLM,
		})
		if err != nil {
			ctxzap.Warn(ctx, "planner failed, continuing with empty plan", zap.Error(err))
		} else {
			rawPlan = res.QuestionPlanJSON
			usage.Add(res.Usage)
			if plannerKey != "" && strings.TrimSpace(rawPlan) != "" {
				s.plannerCache.Set(plannerKey, rawPlan, s.cfg.PlannerCacheTTL)
			}
		}
	}

	// Augment and merge: planner items first, deterministic suffix last.
	fullPlan, planTier := ExtractPlanItemsTiered(rawPlan, maxPlanItems, asked)
	ctxzap.Debug(ctx, "planner output parsed",
		zap.String("tier", planTier.String()),
		zap.Int("items", len(fullPlan)),
	)
	fullPlan = AugmentPlanForFunctionCalls(s.triggerMemo, fctx.SessionID, fullPlan, s.cfg.TriggerPosition)
	suffix := BuildDeterministicSuffix(fctx)
	singleBatch := fctx.Constraints.MaxBatches <= 1
	merged := MergePlanItems(fullPlan, suffix, asked, maxSteps, singleBatch)
	sliced := SlicePlan(merged, asked, maxSteps)
	allowed = ForcedTypes(allowed, sliced)

	allowedSet := make(map[string]struct{}, len(allowed))
	for _, t := range allowed {
		allowedSet[t] = struct{}{}
	}
	requiredUploadIDs := RequiredUploadIDSet(fctx.RequiredUploads)

	// Stage 2: renderer, cached per sliced plan.
	planJSON := schema.CompactJSON(entity.QuestionPlan{Plan: sliced})
	renderContextJSON := renderContextJSON(fctx, asked)
	renderKey := ""
	if s.cfg.RenderCacheEnabled {
		renderKey = RenderCacheKey(fctx.SessionID, schemaVersion, planJSON, renderContextJSON, allowed)
	}

	emitted, renderHit := s.cachedSteps(renderKey, noCache)
	renderedCount := len(emitted)
	var renderStats schema.JSONLStats
	if !renderHit {
		rawJSONL := ""
		res, err := s.lm.RenderSteps(ctx, &entity.RendererRequest{
			PlanJSON:          planJSON,
			RenderContextJSON: renderContextJSON,
			MaxSteps:          len(sliced),
			AllowedMiniTypes:  allowed,
			LM:                s.cfg.RendererLM,
		})
		if err != nil {
			ctxzap.Warn(ctx, "renderer failed, relying on deterministic backstop", zap.Error(err))
		} else {
			rawJSONL = res.MiniStepsJSONL
			usage.Add(res.Usage)
		}

		var candidates []map[string]any
		candidates, renderStats = schema.ParseJSONLObjectsStats(rawJSONL)
		renderedCount = len(candidates)
		ctxzap.Debug(ctx, "renderer output parsed",
			zap.String("tier", renderStats.Tier.String()),
			zap.Int("candidates", len(candidates)),
			zap.Int("skipped_lines", renderStats.SkippedLines),
		)

		taken := make(map[string]struct{}, len(asked))
		for id := range asked {
			taken[id] = struct{}{}
		}
		emitted = FilterRenderedSteps(candidates, allowedSet, requiredUploadIDs, taken)
		emitted = BackstopDeterministicSteps(sliced, emitted, allowedSet, requiredUploadIDs, taken)
		emitted = AttachFunctionCalls(emitted, sliced)
		emitted = schema.SanitizeSteps(emitted, pack.Lint)
		if violations := schema.LintSteps(emitted, pack.Lint); len(violations) > 0 {
			ctxzap.Debug(ctx, "copy lint violations", zap.Int("count", len(violations)))
		}

		// Only post-validation output ever enters the render cache.
		if renderKey != "" && len(emitted) > 0 {
			s.renderCache.Set(renderKey, cloneSteps(emitted), s.cfg.RenderCacheTTL)
		}
	}
	if emitted == nil {
		emitted = []entity.Step{}
	}

	resp := &entity.NextStepsResponse{
		RequestID:     requestID,
		SchemaVersion: schemaVersion,
		MiniSteps:     emitted,
	}
	if usage.TotalTokens > 0 {
		resp.LMUsage = usage
	}
	if payload.IncludeMeta {
		resp.CopyPackID = pack.PackID
		dbg := s.buildDebugContext(fctx, allowed, maxSteps, plannerHit, renderHit,
			len(sliced), renderedCount, len(emitted),
			tokensTotal, tokensUsed,
			s.tokens.Estimate(plannerContextJSON)+s.tokens.Estimate(planJSON)+s.tokens.Estimate(renderContextJSON),
			time.Since(start),
		)
		dbg.PlanParseTier = planTier.String()
		if !renderHit {
			dbg.RenderParseTier = renderStats.Tier.String()
			dbg.RenderSkippedLines = renderStats.SkippedLines
		}
		resp.DebugContext = dbg
	}

	ctxzap.Info(ctx, "next steps generated",
		zap.String("request_id", requestID),
		zap.Int("steps", len(emitted)),
		zap.Bool("planner_cache_hit", plannerHit),
		zap.Bool("render_cache_hit", renderHit),
		zap.Duration("latency", time.Since(start)),
	)
	return resp
}

func (s *Service) resolveSchemaVersion(ctx context.Context, payload *entity.NextStepsPayload) string {
	v := strings.TrimSpace(payload.SchemaVersion)
	if v == "" && s.versions != nil {
		v = strings.TrimSpace(s.versions.ContractVersion(ctx))
	}
	if v == "" {
		v = strings.TrimSpace(s.cfg.DefaultSchemaVersion)
	}
	if v == "" {
		v = "0"
	}
	return v
}

func (s *Service) cachedPlan(key string, noCache bool) (string, bool) {
	if key == "" || noCache {
		return "", false
	}
	v, ok := s.plannerCache.Get(key)
	if !ok {
		return "", false
	}
	raw, ok := v.(string)
	if !ok || strings.TrimSpace(raw) == "" {
		return "", false
	}
	return raw, true
}

func (s *Service) cachedSteps(key string, noCache bool) ([]entity.Step, bool) {
	if key == "" || noCache {
		return nil, false
	}
	v, ok := s.renderCache.Get(key)
	if !ok {
		return nil, false
	}
	steps, ok := v.([]entity.Step)
	if !ok {
		return nil, false
	}
	return cloneSteps(steps), true
}

func (s *Service) buildDebugContext(
	fctx *flow.Context,
	allowed []string,
	maxSteps int,
	plannerHit, renderHit bool,
	planned, rendered, emitted int,
	tokensTotal, tokensUsed, tokensEstimated int,
	latency time.Duration,
) *entity.DebugContext {
	stage := flow.StageEarly
	if fctx.FlowGuide != nil {
		stage = fctx.FlowGuide.Stage
	}
	return &entity.DebugContext{
		Industry:          fctx.Industry,
		Service:           fctx.Service,
		UseCase:           fctx.UseCase,
		GoalIntent:        fctx.GoalIntent,
		Stage:             stage,
		AllowedMiniTypes:  allowed,
		MaxSteps:          maxSteps,
		PlannerCacheHit:   plannerHit,
		RenderCacheHit:    renderHit,
		PlannedSteps:      planned,
		RenderedSteps:     rendered,
		EmittedSteps:      emitted,
		TokensTotalBudget: tokensTotal,
		TokensUsedSoFar:   tokensUsed,
		TokensRemaining:   tokensTotal - tokensUsed,
		TokensEstimated:   tokensEstimated,
		OverageAllowance:  s.cfg.TokenOverageAllowance,
		Capabilities:      fctx.Capabilities,
		LatencyMS:         latency.Milliseconds(),
	}
}

// plannerContextJSON is the compact planning context: grounding + memory +
// constraints, intentionally without per-item rendering detail.
func plannerContextJSON(fctx *flow.Context, asked map[string]struct{}, allowed []string, maxPlanItems int) string {
	return schema.CompactJSON(map[string]any{
		"vertical_context": map[string]any{
			"industry":          fctx.Industry,
			"service":           fctx.Service,
			"grounding_summary": fctx.GroundingSummary,
		},
		"goal_context": map[string]any{
			"use_case":    fctx.UseCase,
			"goal_intent": fctx.GoalIntent,
		},
		"memory_context": map[string]any{
			"asked_step_ids": sortedIDs(asked),
			"answered_qa":    fctx.AnsweredQA,
		},
		"constraints": map[string]any{
			"max_steps":            maxPlanItems,
			"allowed_mini_types":   allowed,
			"choice_option_min":    fctx.ChoiceOptionMin,
			"choice_option_max":    fctx.ChoiceOptionMax,
			"choice_option_target": fctx.ChoiceOptionTarget,
		},
		"flow_guide": fctx.FlowGuide,
	})
}

// renderContextJSON is the minimal render-only context; planning fields stay
// out to keep the renderer prompt small and the cache key stable.
func renderContextJSON(fctx *flow.Context, asked map[string]struct{}) string {
	return schema.CompactJSON(map[string]any{
		"services_summary":     fctx.ServicesSummary,
		"grounding_summary":    fctx.GroundingSummary,
		"copy_style":           fctx.CopyStyleJSON,
		"choice_option_min":    fctx.ChoiceOptionMin,
		"choice_option_max":    fctx.ChoiceOptionMax,
		"choice_option_target": fctx.ChoiceOptionTarget,
		"required_uploads":     fctx.RequiredUploads,
		"asked_step_ids":       sortedIDs(asked),
	})
}

func sortedIDs(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func cloneSteps(steps []entity.Step) []entity.Step {
	out := make([]entity.Step, len(steps))
	copy(out, steps)
	return out
}
