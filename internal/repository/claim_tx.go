package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	errorvalues "github.com/croftcommon/streaks/internal/error_values"
	"github.com/croftcommon/streaks/pkg/entity"
)

// ClaimTx runs the claim-and-reset sequence on a single transaction.
// Row locks are taken by ActiveRewards; the advisory lock was taken by
// BeginClaim and is released with the transaction.
type ClaimTx struct {
	tx  pgx.Tx
	uid uuid.UUID
}

func (ct *ClaimTx) ActiveRewards(ctx context.Context) ([]entity.StreakReward, error) {
	rows, err := ct.tx.Query(ctx, `SELECT id, user_id, reward_tier, is_active, earned_date, claimed_date
		FROM streak_rewards WHERE user_id = $1 AND is_active = TRUE ORDER BY reward_tier DESC, earned_date ASC, id ASC FOR UPDATE;`, ct.uid)
	if err != nil {
		return nil, errors.New("locking active rewards error: " + err.Error())
	}
	defer rows.Close()
	rewards := make([]entity.StreakReward, 0)
	for rows.Next() {
		r := entity.StreakReward{}
		err = rows.Scan(&r.ID, &r.UserID, &r.RewardTier, &r.IsActive, &r.EarnedDate, &r.ClaimedDate)
		if err != nil {
			return nil, errors.New("unmarshalling reward error: " + err.Error())
		}
		rewards = append(rewards, r)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected error after scanning rewards: " + rows.Err().Error())
	}
	return rewards, nil
}

func (ct *ClaimTx) MarkAllClaimed(ctx context.Context, claimedAt time.Time) error {
	tag, err := ct.tx.Exec(ctx, `UPDATE streak_rewards SET is_active = FALSE, claimed_date = $2
		WHERE user_id = $1 AND is_active = TRUE;`, ct.uid, claimedAt)
	if err != nil {
		return errors.New("marking rewards claimed error: " + err.Error())
	}
	if tag.RowsAffected() == 0 {
		return errorvalues.ErrNoActiveRewards
	}
	return nil
}

func (ct *ClaimTx) ResetMemberStreak(ctx context.Context) error {
	tag, err := ct.tx.Exec(ctx, `UPDATE member_streaks SET current_week_receipts = 0, current_week_start_date = NULL,
		current_set_number = 1, current_set_progress = 0, current_reward_tier = 0, available_grace_weeks = 0, updated_at = NOW()
		WHERE user_id = $1;`, ct.uid)
	if err != nil {
		return errors.New("resetting member streak error: " + err.Error())
	}
	if tag.RowsAffected() == 0 {
		return errorvalues.ErrMemberNotFound
	}
	return nil
}

// Completed weeks are history and stay untouched.
func (ct *ClaimTx) ResetIncompleteWeeks(ctx context.Context) error {
	_, err := ct.tx.Exec(ctx, `UPDATE streak_weeks SET receipt_count = 0, completed_at = NULL
		WHERE user_id = $1 AND is_complete = FALSE;`, ct.uid)
	if err != nil {
		return errors.New("resetting incomplete weeks error: " + err.Error())
	}
	return nil
}

func (ct *ClaimTx) ResetIncompleteSets(ctx context.Context) error {
	_, err := ct.tx.Exec(ctx, `UPDATE streak_sets SET completed_weeks = 0, reward_tier = NULL
		WHERE user_id = $1 AND is_complete = FALSE;`, ct.uid)
	if err != nil {
		return errors.New("resetting incomplete sets error: " + err.Error())
	}
	return nil
}

// Unused grace is forfeited at claim time, not carried over.
func (ct *ClaimTx) ForfeitGracePeriods(ctx context.Context) error {
	_, err := ct.tx.Exec(ctx, `UPDATE streak_grace_periods SET is_used = TRUE, used_date = NOW()
		WHERE user_id = $1 AND is_used = FALSE;`, ct.uid)
	if err != nil {
		return errors.New("forfeiting grace periods error: " + err.Error())
	}
	return nil
}

func (ct *ClaimTx) UpsertClaimBadge(ctx context.Context, discount int) error {
	_, err := ct.tx.Exec(ctx, `INSERT INTO streak_badges (user_id, badge_type, milestone_value, name, description, icon)
		VALUES ($1, 'reward_claimed', $2, 'Reward Claimed', 'Claimed a streak reward', 'gift')
		ON CONFLICT (user_id, badge_type) DO UPDATE
		SET milestone_value = EXCLUDED.milestone_value, earned_date = NOW();`, ct.uid, discount)
	if err != nil {
		return errors.New("upserting claim badge error: " + err.Error())
	}
	return nil
}

func (ct *ClaimTx) Commit(ctx context.Context) error {
	return ct.tx.Commit(ctx)
}

func (ct *ClaimTx) Rollback(ctx context.Context) error {
	return ct.tx.Rollback(ctx)
}
