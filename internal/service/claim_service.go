package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"

	"github.com/google/uuid"
	errorvalues "github.com/croftcommon/streaks/internal/error_values"
	"github.com/croftcommon/streaks/internal/notifier"
	"github.com/croftcommon/streaks/internal/repository"
	"github.com/croftcommon/streaks/pkg/entity"
)

// Each reward tier is worth a flat 25 percentage points of discount.
const DiscountPointsPerTier = 25

type RewardClaimService struct {
	repo   repository.RewardsRepositoryI
	sender PushSenderI
}

func NewRewardClaimService(rewardsRepo repository.RewardsRepositoryI, sender PushSenderI) *RewardClaimService {
	if rewardsRepo == nil {
		log.Fatal("provided nil rewardsRepo")
	}
	return &RewardClaimService{
		repo:   rewardsRepo,
		sender: sender,
	}
}

// ClaimReward consumes every active reward the member holds, not only the
// selected one: the discount is cumulative over all tiers up to the claimed
// tier, and a claim always resets streak progress in full. The whole
// sequence rides one transaction, so concurrent claims for the same member
// serialize and the loser sees ErrNoActiveRewards.
func (cs *RewardClaimService) ClaimReward(ctx context.Context, uid uuid.UUID, rewardID *uuid.UUID) (*entity.ClaimResult, error) {
	tx, err := cs.repo.BeginClaim(ctx, uid)
	if err != nil {
		return nil, errors.New("rewards repository error: " + err.Error())
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback(ctx)
		}
	}()

	active, err := tx.ActiveRewards(ctx)
	if err != nil {
		return nil, errors.New("rewards repository error: " + err.Error())
	}
	if len(active) == 0 {
		return nil, errorvalues.ErrNoActiveRewards
	}
	// Rows arrive ordered by tier descending, earned date ascending, so the
	// default pick is the highest tier with earliest-earned breaking ties.
	claim := active[0]
	if rewardID != nil {
		found := false
		for _, r := range active {
			if r.ID == *rewardID {
				claim = r
				found = true
				break
			}
		}
		if !found {
			return nil, errorvalues.ErrRewardNotFound
		}
	}
	discount := 0
	for _, r := range active {
		if r.RewardTier <= claim.RewardTier {
			discount += r.RewardTier * DiscountPointsPerTier
		}
	}

	// One timestamp serves both the stored claimed_date and the response.
	claimedAt := timeNow().UTC()
	if err = tx.MarkAllClaimed(ctx, claimedAt); err != nil {
		return nil, errors.New("marking rewards claimed error: " + err.Error())
	}
	if err = tx.ResetMemberStreak(ctx); err != nil {
		return nil, errors.New("resetting member streak error: " + err.Error())
	}
	if err = tx.ResetIncompleteWeeks(ctx); err != nil {
		return nil, errors.New("resetting weeks error: " + err.Error())
	}
	if err = tx.ResetIncompleteSets(ctx); err != nil {
		return nil, errors.New("resetting sets error: " + err.Error())
	}
	if err = tx.ForfeitGracePeriods(ctx); err != nil {
		return nil, errors.New("forfeiting grace periods error: " + err.Error())
	}
	if err = tx.UpsertClaimBadge(ctx, discount); err != nil {
		return nil, errors.New("upserting claim badge error: " + err.Error())
	}
	if err = tx.Commit(ctx); err != nil {
		return nil, errors.New("committing claim error: " + err.Error())
	}
	committed = true

	cs.notifyClaimed(uid, discount)

	return &entity.ClaimResult{
		DiscountPercentage: discount,
		Tier:               claim.RewardTier,
		ClaimedAt:          claimedAt,
	}, nil
}

// notifyClaimed is best-effort: dispatch failures are logged and swallowed.
func (cs *RewardClaimService) notifyClaimed(uid uuid.UUID, discount int) {
	if cs.sender == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
	defer cancel()
	err := cs.sender.Push(ctx, &notifier.Notification{
		Title:   "Reward claimed",
		Body:    fmt.Sprintf("Your %d%% discount is ready to use", discount),
		URL:     "/streak",
		Scope:   "user",
		UserIDs: []uuid.UUID{uid},
	})
	if err != nil {
		slog.Error("claim notification dispatch failed", slog.String("uid", uid.String()), slog.String("error", err.Error()))
	}
}

func (cs *RewardClaimService) GetActiveRewards(ctx context.Context, uid uuid.UUID) ([]entity.StreakReward, int, error) {
	rewards, err := cs.repo.GetActiveRewards(ctx, uid)
	if err != nil {
		return nil, 0, errors.New("rewards repository error: " + err.Error())
	}
	discount := 0
	for _, r := range rewards {
		discount += r.RewardTier * DiscountPointsPerTier
	}
	return rewards, discount, nil
}

func (cs *RewardClaimService) GetBadges(ctx context.Context, uid uuid.UUID) ([]entity.StreakBadge, error) {
	badges, err := cs.repo.GetBadges(ctx, uid)
	if err != nil {
		return nil, errors.New("rewards repository error: " + err.Error())
	}
	return badges, nil
}
