package app

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Skibfizz/studydrop-backend/app/models"
)

// ErrLimitExceeded is returned by the usage gate when an increment would
// push a counter past the tier cap.
var ErrLimitExceeded = errors.New("usage limit exceeded")

// CheckAndIncrement atomically charges n uses of feature against the
// user's current tier cap. It runs as a single serializable transaction
// with the ledger row locked, so two concurrent requests from the same
// user cannot both slip under the cap. Any storage error denies: failing
// open would make the cap unenforceable.
//
// If the stored reset date is older than one usage period the counters
// are zeroed inside the same transaction before the increment is
// evaluated, and the reset is persisted even when the increment itself
// is denied.
func (s *Store) CheckAndIncrement(ctx context.Context, userID string, feature models.FeatureType, n int, limits models.TierLimits) (bool, error) {
	if n < 0 {
		n = 0
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	tier, err := tierForUpdate(ctx, tx, userID)
	if err != nil {
		return false, err
	}
	limit := limits.For(tier).For(feature)

	row, err := usageForUpdate(ctx, tx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return false, err
		}
		if err := insertDefaultUsage(ctx, tx, userID); err != nil {
			return false, err
		}
		row, err = usageForUpdate(ctx, tx, userID)
		if err != nil {
			return false, err
		}
	}

	now := time.Now().UTC()
	rolledOver := now.Sub(row.ResetDate) >= models.UsagePeriod
	if rolledOver {
		row.Counts = models.UsageCounts{}
		row.ResetDate = now
	}

	allowed := row.Counts.For(feature)+n <= limit
	if allowed {
		switch feature {
		case models.FeatureVideoSummaries:
			row.Counts.VideoSummaries += n
		case models.FeatureFlashcardSets:
			row.Counts.FlashcardSets += n
		case models.FeatureTextHumanizations:
			row.Counts.TextHumanizations += n
		}
	}

	if allowed || rolledOver {
		if err := updateUsageRow(ctx, tx, userID, row); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return allowed, nil
}

// PeekUsage reports whether n more uses of feature would fit under the
// cap right now. It never mutates the ledger; feature endpoints call it
// before spending money on a generation request.
func (s *Store) PeekUsage(ctx context.Context, userID string, feature models.FeatureType, n int, limits models.TierLimits) (bool, error) {
	summary, err := s.GetUsage(ctx, userID, limits)
	if err != nil {
		return false, err
	}
	return summary.Usage.For(feature)+n <= summary.Limits.For(feature), nil
}

// GetUsage returns the read-only usage projection for display. A stale
// reset date is reported as zero usage without writing anything; the next
// CheckAndIncrement persists the rollover.
func (s *Store) GetUsage(ctx context.Context, userID string, limits models.TierLimits) (models.UsageSummary, error) {
	tier, err := s.currentTier(ctx, userID)
	if err != nil {
		return models.UsageSummary{}, err
	}

	row, err := s.usageRow(ctx, userID)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return models.UsageSummary{}, err
		}
		row = models.UsageTracking{UserID: userID, ResetDate: time.Now().UTC()}
	}
	if time.Now().UTC().Sub(row.ResetDate) >= models.UsagePeriod {
		row.Counts = models.UsageCounts{}
	}

	return models.UsageSummary{
		Tier:   tier,
		Usage:  row.Counts,
		Limits: limits.For(tier),
	}, nil
}

func tierForUpdate(ctx context.Context, tx *sql.Tx, userID string) (models.Tier, error) {
	var tier models.Tier
	err := tx.QueryRowContext(ctx, `
		SELECT tier
		FROM subscriptions
		WHERE user_id = $1;
	`, userID).Scan(&tier)
	if errors.Is(err, sql.ErrNoRows) {
		return models.TierFree, nil
	}
	if err != nil {
		return "", err
	}
	return tier, nil
}

func usageForUpdate(ctx context.Context, tx *sql.Tx, userID string) (models.UsageTracking, error) {
	row := models.UsageTracking{UserID: userID}
	err := tx.QueryRowContext(ctx, `
		SELECT video_summaries_count, flashcard_sets_count, text_humanizations_count, reset_date
		FROM usage_tracking
		WHERE user_id = $1
		FOR UPDATE;
	`, userID).Scan(
		&row.Counts.VideoSummaries,
		&row.Counts.FlashcardSets,
		&row.Counts.TextHumanizations,
		&row.ResetDate,
	)
	if err != nil {
		return models.UsageTracking{}, err
	}
	return row, nil
}

func insertDefaultUsage(ctx context.Context, tx *sql.Tx, userID string) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO usage_tracking (user_id, video_summaries_count, flashcard_sets_count, text_humanizations_count, reset_date)
		VALUES ($1, 0, 0, 0, $2)
		ON CONFLICT (user_id) DO NOTHING;
	`, userID, time.Now().UTC())
	return err
}

func updateUsageRow(ctx context.Context, tx *sql.Tx, userID string, row models.UsageTracking) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE usage_tracking
		SET video_summaries_count = $1,
		    flashcard_sets_count = $2,
		    text_humanizations_count = $3,
		    reset_date = $4
		WHERE user_id = $5;
	`, row.Counts.VideoSummaries, row.Counts.FlashcardSets, row.Counts.TextHumanizations, row.ResetDate, userID)
	return err
}

func (s *Store) usageRow(ctx context.Context, userID string) (models.UsageTracking, error) {
	row := models.UsageTracking{UserID: userID}
	err := s.db.QueryRowContext(ctx, `
		SELECT video_summaries_count, flashcard_sets_count, text_humanizations_count, reset_date
		FROM usage_tracking
		WHERE user_id = $1;
	`, userID).Scan(
		&row.Counts.VideoSummaries,
		&row.Counts.FlashcardSets,
		&row.Counts.TextHumanizations,
		&row.ResetDate,
	)
	if err != nil {
		return models.UsageTracking{}, err
	}
	return row, nil
}
