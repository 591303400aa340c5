// Package triage derives a task's priority tier and triage bucket from rule
// matches and extractor output.
package triage

import "github.com/nbakr/mailtriage/internal/rules"

// Priority tiers.
const (
	PriorityHigh   = "high"
	PriorityMedium = "medium"
	PriorityLow    = "low"
)

// Triage buckets.
const (
	CategoryQuickAction = "quick_action"
	CategoryDeepWork    = "deep_work"
	CategoryWaitingFor  = "waiting_for"
)

// quickActionMaxMinutes is the effort bound below which a task counts as a
// quick action when the extractor gave no usable category.
const quickActionMaxMinutes = 15

// Priority evaluates the high then medium rule sets against the full message
// content (subject + body). First match wins; no match means low.
func Priority(content string, r *rules.Rules) string {
	if r.HighPriority.Match(content) {
		return PriorityHigh
	}
	if r.MediumPriority.Match(content) {
		return PriorityMedium
	}
	return PriorityLow
}

// ValidCategory reports whether c is one of the three triage buckets.
func ValidCategory(c string) bool {
	switch c {
	case CategoryQuickAction, CategoryDeepWork, CategoryWaitingFor:
		return true
	}
	return false
}

// Category picks the triage bucket for an extracted task.
//
// An APPROVE subject prefix forces quick_action over anything the extractor
// said. A valid extractor category is used verbatim. Otherwise the effort
// estimate decides: under 15 minutes is a quick action, everything else is
// deep work. waiting_for is never derived here; it only arrives via
// delegation or the extractor.
func Category(approveOverride bool, extractorCategory string, effortMinutes int) string {
	if approveOverride {
		return CategoryQuickAction
	}
	if ValidCategory(extractorCategory) {
		return extractorCategory
	}
	if effortMinutes > 0 && effortMinutes < quickActionMaxMinutes {
		return CategoryQuickAction
	}
	return CategoryDeepWork
}
