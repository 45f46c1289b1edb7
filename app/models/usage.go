package models

import "time"

// FeatureType names one metered feature. The values double as the
// usage_tracking column prefixes.
type FeatureType string

const (
	FeatureVideoSummaries    FeatureType = "video_summaries"
	FeatureFlashcardSets     FeatureType = "flashcard_sets"
	FeatureTextHumanizations FeatureType = "text_humanizations"
)

// ValidFeature reports whether f is a known metered feature.
func ValidFeature(f FeatureType) bool {
	switch f {
	case FeatureVideoSummaries, FeatureFlashcardSets, FeatureTextHumanizations:
		return true
	}
	return false
}

// UsagePeriod is the rolling window after which counters reset to zero.
const UsagePeriod = 7 * 24 * time.Hour

// FeatureLimits caps each metered feature for one tier per UsagePeriod.
type FeatureLimits struct {
	VideoSummaries    int `json:"video_summaries"`
	FlashcardSets     int `json:"flashcard_sets"`
	TextHumanizations int `json:"text_humanizations"`
}

// For returns the cap for a single feature.
func (l FeatureLimits) For(f FeatureType) int {
	switch f {
	case FeatureVideoSummaries:
		return l.VideoSummaries
	case FeatureFlashcardSets:
		return l.FlashcardSets
	case FeatureTextHumanizations:
		return l.TextHumanizations
	}
	return 0
}

// TierLimits maps every tier to its feature caps. The table is the single
// definition site for limits; both the usage gate and the usage projection
// receive it from here.
type TierLimits map[Tier]FeatureLimits

// DefaultTierLimits is the production limit table.
var DefaultTierLimits = TierLimits{
	TierFree:  {VideoSummaries: 5, FlashcardSets: 5, TextHumanizations: 10},
	TierBasic: {VideoSummaries: 20, FlashcardSets: 20, TextHumanizations: 40},
	TierPro:   {VideoSummaries: 1000, FlashcardSets: 1000, TextHumanizations: 500},
}

// For returns the caps for a tier, falling back to free for unknown tiers.
func (t TierLimits) For(tier Tier) FeatureLimits {
	if l, ok := t[tier]; ok {
		return l
	}
	return t[TierFree]
}

// UsageCounts holds one user's counters for the current period.
type UsageCounts struct {
	VideoSummaries    int `json:"video_summaries"`
	FlashcardSets     int `json:"flashcard_sets"`
	TextHumanizations int `json:"text_humanizations"`
}

// For returns the count for a single feature.
func (u UsageCounts) For(f FeatureType) int {
	switch f {
	case FeatureVideoSummaries:
		return u.VideoSummaries
	case FeatureFlashcardSets:
		return u.FlashcardSets
	case FeatureTextHumanizations:
		return u.TextHumanizations
	}
	return 0
}

// UsageTracking is the per-user ledger row.
type UsageTracking struct {
	UserID    string      `json:"user_id"`
	Counts    UsageCounts `json:"counts"`
	ResetDate time.Time   `json:"reset_date"`
}

// UsageSummary is the read-only projection served to the UI.
type UsageSummary struct {
	Tier   Tier          `json:"tier"`
	Usage  UsageCounts   `json:"usage"`
	Limits FeatureLimits `json:"limits"`
}
