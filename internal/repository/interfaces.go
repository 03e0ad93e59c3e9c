package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/croftcommon/streaks/pkg/entity"
)

type StreaksRepositoryI interface {
	// Looks up member's streak summary row
	GetMemberStreak(ctx context.Context, uid uuid.UUID) (*entity.MemberStreak, error)
	// Creates summary row on first check-in
	CreateMemberStreak(ctx context.Context, uid uuid.UUID) (*entity.MemberStreak, error)
	// Returns the single week still in progress, nil if none
	GetIncompleteWeek(ctx context.Context, uid uuid.UUID) (*entity.StreakWeek, error)
	// Returns the set currently being filled, nil if none
	GetIncompleteSet(ctx context.Context, uid uuid.UUID) (*entity.StreakSet, error)
	// Opens a new week starting at weekStart with one receipt counted
	StartWeek(ctx context.Context, uid uuid.UUID, weekStart time.Time) (*entity.StreakWeek, error)
	// Opens a new set with the given number
	StartSet(ctx context.Context, uid uuid.UUID, setNumber int) (*entity.StreakSet, error)
	// Increments receipt_count on the week, returns new count
	AddReceipt(ctx context.Context, weekID uuid.UUID) (int, error)
	// Reuses a stale in-progress week row for a new calendar week
	RolloverWeek(ctx context.Context, weekID uuid.UUID, weekStart time.Time) error
	// Zeroes progress on a broken in-progress set
	RestartSet(ctx context.Context, setID uuid.UUID) error
	// Marks the week complete
	CompleteWeek(ctx context.Context, weekID uuid.UUID) error
	// Bumps completed_weeks on the set, returns new count
	AdvanceSet(ctx context.Context, setID uuid.UUID) (int, error)
	// Marks the set complete with the tier it earned
	CompleteSet(ctx context.Context, setID uuid.UUID, tier int) error
	// Writes the summary counters after a check-in
	UpdateMemberStreak(ctx context.Context, ms *entity.MemberStreak) error
	// Banks a grace week earned by finishing a set
	GrantGracePeriod(ctx context.Context, uid uuid.UUID, weekStart time.Time) error
	// Consumes one unused grace period, reports whether one existed
	ConsumeGracePeriod(ctx context.Context, uid uuid.UUID) (bool, error)
}

type RewardsRepositoryI interface {
	// Lists claimable rewards, highest tier first, earliest earned first within a tier
	GetActiveRewards(ctx context.Context, uid uuid.UUID) ([]entity.StreakReward, error)
	// Creates an earned, unclaimed reward at the given tier
	IssueReward(ctx context.Context, uid uuid.UUID, tier int) error
	// Lists member's badges
	GetBadges(ctx context.Context, uid uuid.UUID) ([]entity.StreakBadge, error)
	// Upserts a badge by (user_id, badge_type)
	UpsertBadge(ctx context.Context, badge *entity.StreakBadge) error
	// Opens the transactional claim unit for uid. The returned ClaimTx holds
	// a per-user advisory lock until Commit or Rollback.
	BeginClaim(ctx context.Context, uid uuid.UUID) (ClaimTxI, error)
}

// ClaimTxI is the claim-and-reset consistency unit. Every call runs on one
// transaction; nothing is visible to other sessions before Commit.
type ClaimTxI interface {
	// Locked snapshot of claimable rewards, highest tier first
	ActiveRewards(ctx context.Context) ([]entity.StreakReward, error)
	// Stamps claimedAt as claimed_date and drops is_active on every active
	// reward, so the stored timestamp matches the one handed to the caller
	MarkAllClaimed(ctx context.Context, claimedAt time.Time) error
	// Zeroes the member_streaks summary row
	ResetMemberStreak(ctx context.Context) error
	// Zeroes receipt counters on weeks still in progress
	ResetIncompleteWeeks(ctx context.Context) error
	// Zeroes progress on sets still in progress
	ResetIncompleteSets(ctx context.Context) error
	// Marks every unused grace period used
	ForfeitGracePeriods(ctx context.Context) error
	// Records the reward_claimed badge with the cumulative discount
	UpsertClaimBadge(ctx context.Context, discount int) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type DBConfig interface {
	ConnString() string
}

type PgConnection interface {
	Ping(ctx context.Context) error
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PGCfg struct {
	Address  string
	Username string
	Password string
	DB       string
}

func (pgcfg *PGCfg) ConnString() string {
	return fmt.Sprintf("postgresql://%s:%s@%s/%s", pgcfg.Username, pgcfg.Password, pgcfg.Address, pgcfg.DB)
}
