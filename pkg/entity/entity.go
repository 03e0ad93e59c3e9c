package entity

import (
	"time"

	"github.com/google/uuid"
)

type MemberStreak struct {
	ID                   uuid.UUID  `json:"id"`
	UserID               uuid.UUID  `json:"user_id"`
	CurrentWeekReceipts  int        `json:"current_week_receipts"`
	CurrentWeekStartDate *time.Time `json:"current_week_start_date,omitempty"`
	CurrentSetNumber     int        `json:"current_set_number"`
	CurrentSetProgress   int        `json:"current_set_progress"`
	CurrentRewardTier    int        `json:"current_reward_tier"`
	AvailableGraceWeeks  int        `json:"available_grace_weeks"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

type StreakWeek struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	WeekStartDate time.Time  `json:"week_start_date"`
	ReceiptCount  int        `json:"receipt_count"`
	IsComplete    bool       `json:"is_complete"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

type StreakSet struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	SetNumber      int        `json:"set_number"`
	CompletedWeeks int        `json:"completed_weeks"`
	IsComplete     bool       `json:"is_complete"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	RewardTier     *int       `json:"reward_tier,omitempty"`
}

type StreakGracePeriod struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	WeekStartDate time.Time  `json:"week_start_date"`
	IsUsed        bool       `json:"is_used"`
	UsedDate      *time.Time `json:"used_date,omitempty"`
}

type StreakReward struct {
	ID          uuid.UUID  `json:"id"`
	UserID      uuid.UUID  `json:"user_id"`
	RewardTier  int        `json:"reward_tier"`
	IsActive    bool       `json:"is_active"`
	EarnedDate  time.Time  `json:"earned_date"`
	ClaimedDate *time.Time `json:"claimed_date,omitempty"`
}

type StreakBadge struct {
	ID             uuid.UUID `json:"id"`
	UserID         uuid.UUID `json:"user_id"`
	BadgeType      string    `json:"badge_type"`
	MilestoneValue int       `json:"milestone_value"`
	Name           string    `json:"name"`
	Description    string    `json:"description,omitempty"`
	Icon           string    `json:"icon,omitempty"`
	EarnedDate     time.Time `json:"earned_date"`
}

// ClaimResult is what a successful reward claim hands back to the caller.
type ClaimResult struct {
	DiscountPercentage int       `json:"discount_percentage"`
	Tier               int       `json:"tier"`
	ClaimedAt          time.Time `json:"claimed_at"`
}

// CheckinResult summarizes what a registered receipt changed.
type CheckinResult struct {
	WeekReceipts  int  `json:"week_receipts"`
	WeekComplete  bool `json:"week_complete"`
	SetProgress   int  `json:"set_progress"`
	SetComplete   bool `json:"set_complete"`
	RewardIssued  bool `json:"reward_issued"`
	RewardTier    int  `json:"reward_tier,omitempty"`
	GraceConsumed bool `json:"grace_consumed"`
}

type StreakStatus struct {
	Streak        *MemberStreak  `json:"streak"`
	CurrentWeek   *StreakWeek    `json:"current_week,omitempty"`
	CurrentSet    *StreakSet     `json:"current_set,omitempty"`
	ActiveRewards []StreakReward `json:"active_rewards"`
}
