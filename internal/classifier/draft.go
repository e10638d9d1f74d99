package classifier

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Sentiment values accepted from the classification service.
const (
	SentimentPositive = "Positive"
	SentimentNeutral  = "Neutral"
	SentimentNegative = "Negative"
)

// Stage names used for per-stage accounting.
const (
	StageCategorise  = "categorise"
	StageActionCheck = "action_check"
	StagePrioritize  = "prioritize"
)

// StageUsage records token, cost and region metadata for one model stage.
type StageUsage struct {
	Stage            string  `json:"stage"`
	Model            string  `json:"model"`
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	Region           string  `json:"region"`
	CostUSD          float64 `json:"cost_usd"`
}

// ClassificationDraft is the merged output of the three model stages.
// FinalCategory starts as the prioritized (or top-ranked) category and may
// be overwritten once by the business-rule resolver.
type ClassificationDraft struct {
	Categories     []string     `json:"categories"`
	Reason         string       `json:"reason"`
	ActionRequired bool         `json:"action_required"`
	Sentiment      string       `json:"sentiment"`
	FinalCategory  string       `json:"final_category"`
	CostUSD        float64      `json:"cost_usd"`
	Stages         []StageUsage `json:"stages"`
}

// HasStage reports whether the named stage completed and was accounted.
func (d *ClassificationDraft) HasStage(stage string) bool {
	for _, s := range d.Stages {
		if s.Stage == stage {
			return true
		}
	}
	return false
}

// Region returns the region of the primary categorise stage, the value
// recorded against the whole classification in the audit log.
func (d *ClassificationDraft) Region() string {
	for _, s := range d.Stages {
		if s.Stage == StageCategorise {
			return s.Region
		}
	}
	return ""
}

// categoriseResult is the strict schema for the stage-1 response. The
// classification field arrives either as a JSON list or a bare string; any
// missing or out-of-range field is a parse failure, never defaulted.
type categoriseResult struct {
	Classification categoryList `json:"classification"`
	Reason         string       `json:"rsn_classification"`
	ActionRequired string       `json:"action_required"`
	Sentiment      string       `json:"sentiment"`
}

func (r *categoriseResult) validate() error {
	if len(r.Classification) == 0 {
		return fmt.Errorf("missing classification")
	}
	if strings.TrimSpace(r.Reason) == "" {
		return fmt.Errorf("missing rsn_classification")
	}
	if _, err := parseYesNo(r.ActionRequired); err != nil {
		return fmt.Errorf("invalid action_required: %w", err)
	}
	switch r.Sentiment {
	case SentimentPositive, SentimentNeutral, SentimentNegative:
	default:
		return fmt.Errorf("invalid sentiment %q", r.Sentiment)
	}
	return nil
}

// actionCheckResult is the strict schema for the stage-2 response.
type actionCheckResult struct {
	ActionRequired string `json:"action_required"`
}

func (r *actionCheckResult) validate() error {
	if _, err := parseYesNo(r.ActionRequired); err != nil {
		return fmt.Errorf("invalid action_required: %w", err)
	}
	return nil
}

// prioritizeResult is the strict schema for the stage-3 response.
type prioritizeResult struct {
	FinalCategory string `json:"final_category"`
	Reason        string `json:"rsn_classification"`
}

func (r *prioritizeResult) validate() error {
	if strings.TrimSpace(r.FinalCategory) == "" {
		return fmt.Errorf("missing final_category")
	}
	return nil
}

// categoryList unmarshals from either a JSON array of strings or a single
// string, normalizing categories to lower case.
type categoryList []string

func (c *categoryList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*c = normalizeCategories(list)
		return nil
	}
	var single string
	if err := json.Unmarshal(data, &single); err != nil {
		return fmt.Errorf("classification must be a string or list of strings")
	}
	*c = normalizeCategories([]string{single})
	return nil
}

func normalizeCategories(in []string) []string {
	out := make([]string, 0, len(in))
	for _, c := range in {
		c = strings.ToLower(strings.TrimSpace(c))
		if c != "" {
			out = append(out, c)
		}
	}
	return out
}

func parseYesNo(v string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes":
		return true, nil
	case "no":
		return false, nil
	}
	return false, fmt.Errorf("expected yes or no, got %q", v)
}
