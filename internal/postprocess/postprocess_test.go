package postprocess

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diarynlp/internal/domain"
)

func TestNormalizeAppliesSynonyms(t *testing.T) {
	p := New(0)
	actions := []domain.Action{{Category: "спорт", Action: "сходил в спортзале", Type: domain.ActionTypeActivity}}
	out := p.Process(actions)
	require.Len(t, out, 1)
	assert.Contains(t, out[0].Action, "зал")
	assert.NotContains(t, out[0].Action, "спортзале")
}

func TestDeduplicateMergesSimilarActions(t *testing.T) {
	p := New(0.85)
	actions := []domain.Action{
		{Category: "спорт", Action: "сходил в зал", Type: domain.ActionTypeActivity,
			EstimatedTimeMinutes: 10, TimeSource: domain.TimeSourceDefault, Confidence: 0.5, Points: 1.0},
		{Category: "спорт", Action: "сходил в зал", Type: domain.ActionTypeActivity,
			EstimatedTimeMinutes: 90, TimeSource: domain.TimeSourceText, Confidence: 0.9, Points: 9.0},
	}
	out := p.Process(actions)
	require.Len(t, out, 1)
	assert.Equal(t, domain.TimeSourceText, out[0].TimeSource)
	assert.Equal(t, 90, out[0].EstimatedTimeMinutes)
	assert.Equal(t, 0.9, out[0].Confidence)
}

func TestDeduplicateLeavesDistinctCategoriesAlone(t *testing.T) {
	p := New(0.85)
	actions := []domain.Action{
		{Category: "спорт", Action: "сходил в зал", Type: domain.ActionTypeActivity, EstimatedTimeMinutes: 60, Points: 6.0},
		{Category: "учёба", Action: "почитал книгу", Type: domain.ActionTypeActivity, EstimatedTimeMinutes: 30, Points: 3.0},
	}
	out := p.Process(actions)
	assert.Len(t, out, 2)
}

func TestDeduplicateIsIdempotent(t *testing.T) {
	p := New(0.85)
	actions := []domain.Action{
		{Category: "спорт", Action: "сходил в зал", Type: domain.ActionTypeActivity, EstimatedTimeMinutes: 60, Confidence: 0.6, Points: 6.0},
		{Category: "спорт", Action: "сходил в зал", Type: domain.ActionTypeActivity, EstimatedTimeMinutes: 60, Confidence: 0.6, Points: 6.0},
	}
	once := p.Process(actions)
	twice := p.Process(once)
	assert.Equal(t, once, twice)
}

func TestValidateClampsNegativeTimeAndConfidence(t *testing.T) {
	p := New(0)
	actions := []domain.Action{{
		Category: "спорт", Action: "зал", Type: domain.ActionTypeActivity,
		EstimatedTimeMinutes: -5, Confidence: 1.5, Points: 0,
	}}
	out := p.Process(actions)
	require.Len(t, out, 1)
	assert.Equal(t, 10, out[0].EstimatedTimeMinutes)
	assert.Equal(t, 1.0, out[0].Confidence)
}

func TestValidateRecomputesDeviatingPoints(t *testing.T) {
	p := New(0)
	actions := []domain.Action{{
		Category: "спорт", Action: "зал", Type: domain.ActionTypeActivity,
		EstimatedTimeMinutes: 100, Confidence: 0.8, Points: 5.0,
	}}
	out := p.Process(actions)
	require.Len(t, out, 1)
	assert.Equal(t, 10.0, out[0].Points)
}

func TestValidateDefaultsMissingAchievementWeight(t *testing.T) {
	p := New(0)
	actions := []domain.Action{{Category: "спорт", Action: "рекорд", Type: domain.ActionTypeAchievement, Confidence: 0.9}}
	out := p.Process(actions)
	require.Len(t, out, 1)
	require.NotNil(t, out[0].AchievementWeight)
	assert.Equal(t, 10, *out[0].AchievementWeight)
}
