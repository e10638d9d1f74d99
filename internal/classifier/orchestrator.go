package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"mail-triage-go/internal/config"
)

// Orchestrator drives the three-stage classification sequence against the
// external service and merges the stage outputs into one draft. Stages 2
// and 3 depend on stage 1; a stage-1 failure fails the whole run, while
// later stages degrade gracefully.
type Orchestrator struct {
	client    ChatClient
	model     string
	miniModel string
	priority  []string
}

// NewOrchestrator creates an orchestrator using the given chat client.
func NewOrchestrator(client ChatClient, cfg *config.OpenAIConfig, priority []string) *Orchestrator {
	return &Orchestrator{
		client:    client,
		model:     cfg.Model,
		miniModel: cfg.MiniModel,
		priority:  priority,
	}
}

// Classify runs categorise, action-check and prioritize in order and
// returns the merged draft. The error is non-nil only when the primary
// categorise stage fails on every endpoint or returns an unusable schema.
func (o *Orchestrator) Classify(ctx context.Context, text string) (*ClassificationDraft, error) {
	draft := &ClassificationDraft{}

	cat, usage, err := o.categorise(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("categorise stage failed: %w", err)
	}
	draft.Stages = append(draft.Stages, usage)
	draft.Categories = cat.Classification
	draft.Reason = cat.Reason
	draft.ActionRequired, _ = parseYesNo(cat.ActionRequired)
	draft.Sentiment = cat.Sentiment
	draft.FinalCategory = cat.Classification[0]

	// The narrow latest-message-only pass is more reliable for this single
	// binary decision; its answer overrides stage 1 on disagreement.
	if action, usage, err := o.actionCheck(ctx, text); err != nil {
		logrus.Warnf("Action check stage failed, keeping categorise result: %v", err)
	} else {
		draft.Stages = append(draft.Stages, usage)
		checked, _ := parseYesNo(action.ActionRequired)
		if checked != draft.ActionRequired {
			logrus.Infof("Action check override: %t -> %t", draft.ActionRequired, checked)
			draft.ActionRequired = checked
		}
	}

	if pri, usage, err := o.prioritize(ctx, text, draft.Categories); err != nil {
		logrus.Warnf("Prioritize stage failed, using top-ranked candidate %q: %v",
			draft.FinalCategory, err)
	} else {
		draft.Stages = append(draft.Stages, usage)
		draft.FinalCategory = strings.ToLower(strings.TrimSpace(pri.FinalCategory))
		draft.Reason = pri.Reason
	}

	for _, s := range draft.Stages {
		draft.CostUSD += s.CostUSD
	}

	logrus.WithFields(logrus.Fields{
		"category":  draft.FinalCategory,
		"action":    draft.ActionRequired,
		"sentiment": draft.Sentiment,
		"cost_usd":  draft.CostUSD,
	}).Info("Classification complete")

	return draft, nil
}

func (o *Orchestrator) categorise(ctx context.Context, text string) (*categoriseResult, StageUsage, error) {
	res, err := o.client.Complete(ctx, o.model, categoriseSystemPrompt,
		"Classify the following email text:\n\n"+text)
	if err != nil {
		return nil, StageUsage{}, err
	}
	usage := stageUsage(StageCategorise, o.model, res)

	var out categoriseResult
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		return nil, usage, fmt.Errorf("failed to parse categorise response: %w", err)
	}
	if err := out.validate(); err != nil {
		return nil, usage, fmt.Errorf("invalid categorise response: %w", err)
	}
	return &out, usage, nil
}

func (o *Orchestrator) actionCheck(ctx context.Context, text string) (*actionCheckResult, StageUsage, error) {
	res, err := o.client.Complete(ctx, o.miniModel, actionCheckSystemPrompt,
		"Analyze this email chain and determine if the latest email requires action:\n\n"+text)
	if err != nil {
		return nil, StageUsage{}, err
	}
	usage := stageUsage(StageActionCheck, o.miniModel, res)

	var out actionCheckResult
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		return nil, usage, fmt.Errorf("failed to parse action check response: %w", err)
	}
	if err := out.validate(); err != nil {
		return nil, usage, fmt.Errorf("invalid action check response: %w", err)
	}
	return &out, usage, nil
}

func (o *Orchestrator) prioritize(ctx context.Context, text string, categories []string) (*prioritizeResult, StageUsage, error) {
	user := fmt.Sprintf(
		"Analyze this email and the candidate list to provide a single category classification. Check complaints first, then cancellation+refund, then document direction, then evaluate normally:\n\nEmail text: %s\n\nCategory list: %s",
		text, strings.Join(categories, ", "))

	res, err := o.client.Complete(ctx, o.miniModel, buildPrioritizePrompt(o.priority), user)
	if err != nil {
		return nil, StageUsage{}, err
	}
	usage := stageUsage(StagePrioritize, o.miniModel, res)

	var out prioritizeResult
	if err := json.Unmarshal([]byte(res.Content), &out); err != nil {
		return nil, usage, fmt.Errorf("failed to parse prioritize response: %w", err)
	}
	if err := out.validate(); err != nil {
		return nil, usage, fmt.Errorf("invalid prioritize response: %w", err)
	}
	return &out, usage, nil
}

func stageUsage(stage, model string, res *ChatResult) StageUsage {
	return StageUsage{
		Stage:            stage,
		Model:            model,
		PromptTokens:     res.PromptTokens,
		CompletionTokens: res.CompletionTokens,
		Region:           res.Region,
		CostUSD:          costUSD(model, res.PromptTokens, res.CompletionTokens),
	}
}
