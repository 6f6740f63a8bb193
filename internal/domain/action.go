// Package domain holds the data model shared by every pipeline stage:
// raw parser output, finalized actions, and the envelopes around them.
package domain

import "time"

// ActionType tags whether an action is an ordinary activity or a notable
// achievement. It is serialized as its lowercase string value.
type ActionType string

const (
	ActionTypeActivity    ActionType = "activity"
	ActionTypeAchievement ActionType = "achievement"
)

// TimeSource records which rule in the duration-source priority ladder
// produced an action's estimated_time_minutes.
type TimeSource string

const (
	TimeSourceText    TimeSource = "text"
	TimeSourceHistory TimeSource = "history"
	TimeSourceModel   TimeSource = "model"
	TimeSourceDefault TimeSource = "default"
)

// timeSourcePriority ranks time sources for postprocessor merge decisions;
// higher wins. Keep in sync with spec §4.G.
var timeSourcePriority = map[TimeSource]int{
	TimeSourceText:    4,
	TimeSourceHistory: 3,
	TimeSourceModel:   2,
	TimeSourceDefault: 1,
}

// Priority returns the merge-precedence rank of a time source.
func (t TimeSource) Priority() int {
	return timeSourcePriority[t]
}

// ActionSource identifies which parser produced a RawAction.
type ActionSource string

const (
	ActionSourceHeuristic ActionSource = "heuristic"
	ActionSourceLLM       ActionSource = "llm"
	ActionSourceUnknown   ActionSource = "unknown"
)

// RawAction is the intermediate record emitted by a parser, before fusion
// resolves its duration source and the postprocessor normalizes it.
type RawAction struct {
	Category             string       `json:"category"`
	Subcategory          string       `json:"subcategory,omitempty"`
	Action               string       `json:"action"`
	Type                 ActionType   `json:"type"`
	EstimatedTimeMinutes *int         `json:"estimated_time_minutes,omitempty"`
	Confidence           float64      `json:"confidence"`
	AchievementWeight    *int         `json:"achievement_weight,omitempty"`
	Source               ActionSource `json:"source"`
}

// Action is a finalized, enriched action ready to be returned to a caller.
type Action struct {
	Category             string     `json:"category"`
	Subcategory          string     `json:"subcategory,omitempty"`
	Action               string     `json:"action"`
	Type                 ActionType `json:"type"`
	EstimatedTimeMinutes int        `json:"estimated_time_minutes"`
	TimeSource           TimeSource `json:"time_source"`
	Confidence           float64    `json:"confidence"`
	AchievementWeight    *int       `json:"achievement_weight,omitempty"`
	Points               float64    `json:"points"`
}

// CanonicalPoints recomputes the points value the formula in spec §3 prescribes,
// independent of whatever is currently stored on the Action.
func (a Action) CanonicalPoints() float64 {
	if a.Type == ActionTypeAchievement {
		if a.AchievementWeight != nil {
			return float64(*a.AchievementWeight)
		}
		return 0
	}
	return float64(a.EstimatedTimeMinutes) / 10.0
}

// ParseResult is what a parser (heuristic or LLM) returns for one request.
type ParseResult struct {
	Actions    []RawAction `json:"actions"`
	Confidence float64     `json:"confidence"`
	LatencyMS  int         `json:"latency_ms"`
	Errors     []string    `json:"errors,omitempty"`

	// LLM-only fields; zero values when produced by the heuristic parser.
	ModelName  string `json:"model_name,omitempty"`
	TokensUsed int    `json:"tokens_used,omitempty"`
}

// AnalysisMeta records what happened during analysis: which heuristics ran,
// whether the LLM was invoked, and any swallowed errors worth surfacing.
type AnalysisMeta struct {
	UsedHeuristics     []string `json:"used_heuristics"`
	UsedLLM            bool     `json:"used_llm"`
	HeuristicLatencyMS *int     `json:"heuristic_latency_ms,omitempty"`
	LLMLatencyMS       *int     `json:"llm_latency_ms,omitempty"`
	Errors             []string `json:"errors"`
}

// AnalysisResult is the final, caller-visible output of one analyze call.
type AnalysisResult struct {
	UserID  int64        `json:"user_id"`
	Date    string       `json:"date"` // YYYY-MM-DD
	RawText *string      `json:"raw_text"`
	Actions []Action     `json:"actions"`
	Meta    AnalysisMeta `json:"meta"`
}

// ActionTemplate is one HistoryStore row: the running average duration
// observed for a (user, normalized action) pair.
type ActionTemplate struct {
	UserID         int64
	NormalizedText string
	AvgTimeMinutes float64
	Occurrences    int
	LastSeen       time.Time
}

// UserStats summarizes a user's HistoryStore footprint.
type UserStats struct {
	UserID         int64 `json:"user_id"`
	TotalTemplates int   `json:"total_templates"`
	TotalActions   int   `json:"total_actions"`
}

// GlobalUserID is the reserved user_id for global (cross-user) templates.
const GlobalUserID int64 = 0
