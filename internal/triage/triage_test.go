package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/nbakr/mailtriage/internal/rules"
)

func TestPriority_TieBreakPrefersHigh(t *testing.T) {
	r := rules.Default()

	// Matches both "urgent" (high) and "please review" (medium).
	content := "Subject: urgent\nBody: please review the incident report"
	assert.Equal(t, PriorityHigh, Priority(content, r))
}

func TestPriority_Tiers(t *testing.T) {
	r := rules.Default()

	assert.Equal(t, PriorityHigh, Priority("action required on the contract", r))
	assert.Equal(t, PriorityMedium, Priority("please confirm the schedule", r))
	assert.Equal(t, PriorityLow, Priority("photos from the team offsite", r))
}

func TestCategory_ApproveOverridesExtractor(t *testing.T) {
	assert.Equal(t, CategoryQuickAction, Category(true, CategoryDeepWork, 120))
}

func TestCategory_ValidExtractorValueVerbatim(t *testing.T) {
	assert.Equal(t, CategoryWaitingFor, Category(false, CategoryWaitingFor, 5))
	assert.Equal(t, CategoryDeepWork, Category(false, CategoryDeepWork, 5))
}

func TestCategory_EffortFallback(t *testing.T) {
	assert.Equal(t, CategoryQuickAction, Category(false, "", 10))
	assert.Equal(t, CategoryDeepWork, Category(false, "", 60))
	assert.Equal(t, CategoryDeepWork, Category(false, "sideways", 0))
}

func TestValidCategory(t *testing.T) {
	assert.True(t, ValidCategory(CategoryQuickAction))
	assert.False(t, ValidCategory("blocked"))
	assert.False(t, ValidCategory(""))
}
