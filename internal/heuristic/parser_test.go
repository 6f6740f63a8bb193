package heuristic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"diarynlp/internal/domain"
)

func TestParseSimpleSport(t *testing.T) {
	p := New()
	result := p.Parse(1, "Сходил в зал")
	require.Len(t, result.Actions, 1)
	assert.Equal(t, "спорт", result.Actions[0].Category)
	assert.Equal(t, domain.ActionTypeActivity, result.Actions[0].Type)
	assert.Equal(t, domain.ActionSourceHeuristic, result.Actions[0].Source)
}

func TestParseExplicitDuration(t *testing.T) {
	p := New()
	result := p.Parse(1, "Читал 2 часа")
	require.Len(t, result.Actions, 1)
	require.NotNil(t, result.Actions[0].EstimatedTimeMinutes)
	assert.Equal(t, 120, *result.Actions[0].EstimatedTimeMinutes)
	assert.Equal(t, "учёба", result.Actions[0].Category)
}

func TestParseMultiAction(t *testing.T) {
	p := New()
	result := p.Parse(1, "Сходил в зал, приготовил обед, почитал книгу")
	categories := map[string]bool{}
	for _, a := range result.Actions {
		categories[a.Category] = true
	}
	assert.GreaterOrEqual(t, len(result.Actions), 2)
	for cat := range categories {
		assert.Contains(t, []string{"спорт", "готовка", "учёба"}, cat)
	}
}

func TestParseAchievement(t *testing.T) {
	p := New()
	result := p.Parse(1, "Впервые пробежал 10 км без остановок!")
	require.NotEmpty(t, result.Actions)
	found := false
	for _, a := range result.Actions {
		if a.Type == domain.ActionTypeAchievement {
			found = true
			require.NotNil(t, a.AchievementWeight)
			assert.Positive(t, *a.AchievementWeight)
		}
	}
	assert.True(t, found)
}

func TestParseNoMatchYieldsNoActions(t *testing.T) {
	p := New()
	result := p.Parse(1, "абвгд ёжзи")
	assert.Empty(t, result.Actions)
	assert.Equal(t, float64(0), result.Confidence)
}

func TestParseSecondsRoundsToAtLeastOneMinute(t *testing.T) {
	p := New()
	result := p.Parse(1, "отжимался 30 секунд")
	require.Len(t, result.Actions, 1)
	require.NotNil(t, result.Actions[0].EstimatedTimeMinutes)
	assert.Equal(t, 1, *result.Actions[0].EstimatedTimeMinutes)
}

func TestDetectCategorySubcategory(t *testing.T) {
	cat, sub, ok := detectCategory("качал железо в зале")
	require.True(t, ok)
	assert.Equal(t, "спорт", cat)
	assert.Equal(t, "бодибилдинг", sub)
}
