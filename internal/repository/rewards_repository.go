package repository

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	errorvalues "github.com/croftcommon/streaks/internal/error_values"
	"github.com/croftcommon/streaks/pkg/cleanup"
	"github.com/croftcommon/streaks/pkg/entity"
)

type RewardsRepository struct {
	conn PgConnection
}

func NewRewardsRepo(cfg DBConfig) *RewardsRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for rewardsRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for rewardsRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &RewardsRepository{
		conn: pool,
	}
}

func NewRewardsRepoWithConn(conn PgConnection) *RewardsRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for rewardsRepo: " + err.Error())
	}
	return &RewardsRepository{
		conn: conn,
	}
}

func (rr *RewardsRepository) GetActiveRewards(ctx context.Context, uid uuid.UUID) ([]entity.StreakReward, error) {
	rows, err := rr.conn.Query(ctx, `SELECT id, user_id, reward_tier, is_active, earned_date, claimed_date
		FROM streak_rewards WHERE user_id = $1 AND is_active = TRUE ORDER BY reward_tier DESC, earned_date ASC, id ASC;`, uid)
	if err != nil {
		return nil, errors.New("getting active rewards error: " + err.Error())
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

func (rr *RewardsRepository) IssueReward(ctx context.Context, uid uuid.UUID, tier int) error {
	_, err := rr.conn.Exec(ctx, `INSERT INTO streak_rewards (user_id, reward_tier, is_active) VALUES ($1, $2, TRUE);`, uid, tier)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			// FK violation
			case "23503":
				return errorvalues.ErrMemberNotFound
			}
		}
		return errors.New("issuing reward db error: " + err.Error())
	}
	return nil
}

func (rr *RewardsRepository) GetBadges(ctx context.Context, uid uuid.UUID) ([]entity.StreakBadge, error) {
	rows, err := rr.conn.Query(ctx, `SELECT id, user_id, badge_type, milestone_value, name, description, icon, earned_date
		FROM streak_badges WHERE user_id = $1 ORDER BY earned_date DESC;`, uid)
	if err != nil {
		return nil, errors.New("getting badges error: " + err.Error())
	}
	defer rows.Close()
	badges := make([]entity.StreakBadge, 0)
	for rows.Next() {
		b := entity.StreakBadge{}
		err = rows.Scan(&b.ID, &b.UserID, &b.BadgeType, &b.MilestoneValue, &b.Name, &b.Description, &b.Icon, &b.EarnedDate)
		if err != nil {
			return nil, errors.New("unmarshalling badge error: " + err.Error())
		}
		badges = append(badges, b)
	}
	if rows.Err() != nil {
		return nil, errors.New("unexpected error after scanning badges: " + rows.Err().Error())
	}
	return badges, nil
}

func (rr *RewardsRepository) UpsertBadge(ctx context.Context, badge *entity.StreakBadge) error {
	if badge == nil {
		return errors.New("badge is nil")
	}
	_, err := rr.conn.Exec(ctx, `INSERT INTO streak_badges (user_id, badge_type, milestone_value, name, description, icon)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, badge_type) DO UPDATE
		SET milestone_value = EXCLUDED.milestone_value, earned_date = NOW();`,
		badge.UserID, badge.BadgeType, badge.MilestoneValue, badge.Name, badge.Description, badge.Icon,
	)
	if err != nil {
		return errors.New("upserting badge error: " + err.Error())
	}
	return nil
}

// BeginClaim opens the claim transaction and takes a per-user advisory lock,
// so two claims for the same member serialize at the database.
func (rr *RewardsRepository) BeginClaim(ctx context.Context, uid uuid.UUID) (ClaimTxI, error) {
	tx, err := rr.conn.Begin(ctx)
	if err != nil {
		return nil, errors.New("opening claim transaction error: " + err.Error())
	}
	_, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1::text, 0));`, uid)
	if err != nil {
		tx.Rollback(ctx)
		return nil, errors.New("taking claim lock error: " + err.Error())
	}
	return &ClaimTx{
		tx:  tx,
		uid: uid,
	}, nil
}
