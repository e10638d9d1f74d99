package triage

import (
	"strings"

	"github.com/sirupsen/logrus"

	"mail-triage-go/internal/classifier"
)

// Resolver applies the business overrides on top of the orchestrator's
// merged output and picks exactly one final category. Rules are evaluated
// in a fixed order; the first match wins.
type Resolver struct {
	priority *Priority
}

// NewResolver creates a resolver using the configured priority ordering.
func NewResolver(priority *Priority) *Resolver {
	return &Resolver{priority: priority}
}

// Resolve overwrites draft.FinalCategory with the single final category
// and returns it.
func (r *Resolver) Resolve(text string, draft *classifier.ClassificationDraft) string {
	final := r.resolve(text, draft)
	if final != draft.FinalCategory {
		logrus.WithFields(logrus.Fields{
			"from": draft.FinalCategory,
			"to":   final,
		}).Info("Business rule override applied")
	}
	draft.FinalCategory = final
	return final
}

func (r *Resolver) resolve(text string, draft *classifier.ClassificationDraft) string {
	lowered := strings.ToLower(text + " " + draft.Reason)

	if containsAny(lowered, complaintPhrases) {
		return CategoryBadService
	}

	if containsAny(lowered, cancellationPhrases) && containsAny(lowered, refundPhrases) {
		return CategoryRetentions
	}

	if containsAny(lowered, documentPhrases) {
		switch {
		case containsAny(lowered, requestingPhrases):
			return CategoryDocumentRequest
		case containsAny(lowered, submittingPhrases):
			if purpose := documentPurpose(lowered); purpose != "" {
				return purpose
			}
		}
	}

	// No override: keep the prioritized result. When the prioritize stage
	// degraded, fall back to the highest-priority stage-1 candidate.
	if !draft.HasStage(classifier.StagePrioritize) && len(draft.Categories) > 0 {
		return r.priority.Highest(draft.Categories)
	}
	return draft.FinalCategory
}

// documentPurpose classifies a submitted document by its underlying
// business purpose, e.g. a tracking certificate belongs to vehicle
// tracking rather than document handling.
func documentPurpose(text string) string {
	switch {
	case strings.Contains(text, "tracking"):
		return CategoryVehicleTracking
	case strings.Contains(text, "claim"):
		return CategoryClaims
	default:
		return ""
	}
}

func containsAny(text string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(text, p) {
			return true
		}
	}
	return false
}

// Phrase lists mirror the indicators the classification prompts use, so
// the deterministic pass and the model reinforce each other.
var complaintPhrases = []string{
	"poorly done",
	"bad service",
	"poor service",
	"disappointed",
	"frustrated",
	"frustrating",
	"unhappy",
	"terrible",
	"awful",
	"unacceptable",
	"unprofessional",
	"waste of time",
	"incompetent",
	"rude",
	"poor quality",
	"not satisfied",
	"took too long",
	"complaint",
}

var cancellationPhrases = []string{
	"cancel",
	"terminate",
	"close my policy",
	"end my policy",
	"close the policy",
	"end the policy",
}

var refundPhrases = []string{
	"refund",
	"money back",
	"reimburse",
}

var documentPhrases = []string{
	"document",
	"certificate",
	"policy schedule",
	"statement",
	"confirmation letter",
}

var requestingPhrases = []string{
	"please send",
	"send me",
	"resend",
	"request a copy",
	"need a copy",
	"copy of my",
	"provide me with",
}

var submittingPhrases = []string{
	"attached",
	"please find",
	"herewith",
	"submitting",
	"i have sent",
	"as requested, the",
}
