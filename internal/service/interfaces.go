package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/croftcommon/streaks/internal/notifier"
	"github.com/croftcommon/streaks/pkg/entity"
)

type CheckinRequest struct {
	ReceiptDate string `validate:"omitempty,datetime=2006-01-02,not_future_date"`
}

type RewardClaimServiceI interface {
	// Converts earned reward tiers into one cumulative discount and performs
	// the full progress reset. rewardID nil means claim the highest tier.
	ClaimReward(ctx context.Context, uid uuid.UUID, rewardID *uuid.UUID) (*entity.ClaimResult, error)
	// Lists claimable rewards plus the discount claiming the top one yields
	GetActiveRewards(ctx context.Context, uid uuid.UUID) ([]entity.StreakReward, int, error)
	GetBadges(ctx context.Context, uid uuid.UUID) ([]entity.StreakBadge, error)
}

type CheckinServiceI interface {
	// Validates req, counts the receipt towards the member's current week and
	// rolls week/set/reward state forward
	RegisterReceipt(ctx context.Context, uid uuid.UUID, req *CheckinRequest) (*entity.CheckinResult, error)
	GetStatus(ctx context.Context, uid uuid.UUID) (*entity.StreakStatus, error)
}

type PushSenderI interface {
	Push(ctx context.Context, n *notifier.Notification) error
}

// clock indirection keeps date math testable.
var timeNow = time.Now

var notifyTimeout = time.Second * 5
