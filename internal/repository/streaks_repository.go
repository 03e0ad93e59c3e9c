package repository

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	errorvalues "github.com/croftcommon/streaks/internal/error_values"
	"github.com/croftcommon/streaks/pkg/cleanup"
	"github.com/croftcommon/streaks/pkg/entity"
)

type StreaksRepository struct {
	conn PgConnection
}

func NewStreaksRepo(cfg DBConfig) *StreaksRepository {
	pool, err := pgxpool.New(context.Background(), cfg.ConnString())
	if err != nil {
		log.Fatal("creating connection for streaksRepo error: " + err.Error())
	}
	err = pool.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for streaksRepo: " + err.Error())
	}
	cleanup.Register(&cleanup.Job{
		Name: "closing pgxpool",
		F: func() error {
			pool.Close()
			return nil
		},
	})
	return &StreaksRepository{
		conn: pool,
	}
}

func NewStreaksRepoWithConn(conn PgConnection) *StreaksRepository {
	err := conn.Ping(context.Background())
	if err != nil {
		log.Fatal("error while pinging connection for streaksRepo: " + err.Error())
	}
	return &StreaksRepository{
		conn: conn,
	}
}

func (sr *StreaksRepository) GetMemberStreak(ctx context.Context, uid uuid.UUID) (*entity.MemberStreak, error) {
	var ms entity.MemberStreak
	row := sr.conn.QueryRow(ctx, `SELECT id, user_id, current_week_receipts, current_week_start_date, current_set_number,
		current_set_progress, current_reward_tier, available_grace_weeks, created_at, updated_at
		FROM member_streaks WHERE user_id = $1;`, uid)
	err := row.Scan(&ms.ID, &ms.UserID, &ms.CurrentWeekReceipts, &ms.CurrentWeekStartDate, &ms.CurrentSetNumber,
		&ms.CurrentSetProgress, &ms.CurrentRewardTier, &ms.AvailableGraceWeeks, &ms.CreatedAt, &ms.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errorvalues.ErrMemberNotFound
		}
		return nil, errors.New("getting member streak error: " + err.Error())
	}
	return &ms, nil
}

func (sr *StreaksRepository) CreateMemberStreak(ctx context.Context, uid uuid.UUID) (*entity.MemberStreak, error) {
	var ms entity.MemberStreak
	row := sr.conn.QueryRow(ctx, `INSERT INTO member_streaks (user_id) VALUES ($1)
		RETURNING id, user_id, current_week_receipts, current_week_start_date, current_set_number,
		current_set_progress, current_reward_tier, available_grace_weeks, created_at, updated_at;`, uid)
	err := row.Scan(&ms.ID, &ms.UserID, &ms.CurrentWeekReceipts, &ms.CurrentWeekStartDate, &ms.CurrentSetNumber,
		&ms.CurrentSetProgress, &ms.CurrentRewardTier, &ms.AvailableGraceWeeks, &ms.CreatedAt, &ms.UpdatedAt)
	if err != nil {
		return nil, errors.New("creating member streak error: " + err.Error())
	}
	return &ms, nil
}

func (sr *StreaksRepository) GetIncompleteWeek(ctx context.Context, uid uuid.UUID) (*entity.StreakWeek, error) {
	var w entity.StreakWeek
	row := sr.conn.QueryRow(ctx, `SELECT id, user_id, week_start_date, receipt_count, is_complete, completed_at
		FROM streak_weeks WHERE user_id = $1 AND is_complete = FALSE;`, uid)
	err := row.Scan(&w.ID, &w.UserID, &w.WeekStartDate, &w.ReceiptCount, &w.IsComplete, &w.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.New("getting incomplete week error: " + err.Error())
	}
	return &w, nil
}

func (sr *StreaksRepository) GetIncompleteSet(ctx context.Context, uid uuid.UUID) (*entity.StreakSet, error) {
	var s entity.StreakSet
	row := sr.conn.QueryRow(ctx, `SELECT id, user_id, set_number, completed_weeks, is_complete, completed_at, reward_tier
		FROM streak_sets WHERE user_id = $1 AND is_complete = FALSE;`, uid)
	err := row.Scan(&s.ID, &s.UserID, &s.SetNumber, &s.CompletedWeeks, &s.IsComplete, &s.CompletedAt, &s.RewardTier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.New("getting incomplete set error: " + err.Error())
	}
	return &s, nil
}

func (sr *StreaksRepository) StartWeek(ctx context.Context, uid uuid.UUID, weekStart time.Time) (*entity.StreakWeek, error) {
	var w entity.StreakWeek
	row := sr.conn.QueryRow(ctx, `INSERT INTO streak_weeks (user_id, week_start_date, receipt_count) VALUES ($1, $2, 1)
		RETURNING id, user_id, week_start_date, receipt_count, is_complete, completed_at;`, uid, weekStart)
	err := row.Scan(&w.ID, &w.UserID, &w.WeekStartDate, &w.ReceiptCount, &w.IsComplete, &w.CompletedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			// Unique violation on (user_id, week_start_date)
			case "23505":
				return nil, errorvalues.ErrCheckinExists
			// FK violation
			case "23503":
				return nil, errorvalues.ErrMemberNotFound
			}
		}
		return nil, errors.New("starting week error: " + err.Error())
	}
	return &w, nil
}

func (sr *StreaksRepository) StartSet(ctx context.Context, uid uuid.UUID, setNumber int) (*entity.StreakSet, error) {
	var s entity.StreakSet
	row := sr.conn.QueryRow(ctx, `INSERT INTO streak_sets (user_id, set_number) VALUES ($1, $2)
		RETURNING id, user_id, set_number, completed_weeks, is_complete, completed_at, reward_tier;`, uid, setNumber)
	err := row.Scan(&s.ID, &s.UserID, &s.SetNumber, &s.CompletedWeeks, &s.IsComplete, &s.CompletedAt, &s.RewardTier)
	if err != nil {
		return nil, errors.New("starting set error: " + err.Error())
	}
	return &s, nil
}

func (sr *StreaksRepository) AddReceipt(ctx context.Context, weekID uuid.UUID) (int, error) {
	var count int
	row := sr.conn.QueryRow(ctx, `UPDATE streak_weeks SET receipt_count = receipt_count + 1
		WHERE id = $1 AND is_complete = FALSE RETURNING receipt_count;`, weekID)
	if err := row.Scan(&count); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, errors.New("adding receipt error: week not found or already complete")
		}
		return 0, errors.New("adding receipt error: " + err.Error())
	}
	return count, nil
}

// RolloverWeek repurposes a stale in-progress week row for a new calendar
// week, preserving the one-incomplete-week-per-user invariant.
func (sr *StreaksRepository) RolloverWeek(ctx context.Context, weekID uuid.UUID, weekStart time.Time) error {
	ct, err := sr.conn.Exec(ctx, `UPDATE streak_weeks SET week_start_date = $1, receipt_count = 1, completed_at = NULL
		WHERE id = $2 AND is_complete = FALSE;`, weekStart, weekID)
	if err != nil {
		return errors.New("rolling week over error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errors.New("rolling week over error: week not found or already complete")
	}
	return nil
}

// RestartSet zeroes progress on a broken in-progress set.
func (sr *StreaksRepository) RestartSet(ctx context.Context, setID uuid.UUID) error {
	_, err := sr.conn.Exec(ctx, `UPDATE streak_sets SET completed_weeks = 0 WHERE id = $1 AND is_complete = FALSE;`, setID)
	if err != nil {
		return errors.New("restarting set error: " + err.Error())
	}
	return nil
}

func (sr *StreaksRepository) CompleteWeek(ctx context.Context, weekID uuid.UUID) error {
	ct, err := sr.conn.Exec(ctx, `UPDATE streak_weeks SET is_complete = TRUE, completed_at = NOW() WHERE id = $1;`, weekID)
	if err != nil {
		return errors.New("completing week error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errors.New("completing week error: week not found")
	}
	return nil
}

func (sr *StreaksRepository) AdvanceSet(ctx context.Context, setID uuid.UUID) (int, error) {
	var count int
	row := sr.conn.QueryRow(ctx, `UPDATE streak_sets SET completed_weeks = completed_weeks + 1
		WHERE id = $1 AND is_complete = FALSE RETURNING completed_weeks;`, setID)
	if err := row.Scan(&count); err != nil {
		return 0, errors.New("advancing set error: " + err.Error())
	}
	return count, nil
}

func (sr *StreaksRepository) CompleteSet(ctx context.Context, setID uuid.UUID, tier int) error {
	ct, err := sr.conn.Exec(ctx, `UPDATE streak_sets SET is_complete = TRUE, completed_at = NOW(), reward_tier = $1 WHERE id = $2;`, tier, setID)
	if err != nil {
		return errors.New("completing set error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errors.New("completing set error: set not found")
	}
	return nil
}

func (sr *StreaksRepository) UpdateMemberStreak(ctx context.Context, ms *entity.MemberStreak) error {
	if ms == nil {
		return errors.New("member streak is nil")
	}
	ct, err := sr.conn.Exec(ctx, `UPDATE member_streaks SET current_week_receipts = $1, current_week_start_date = $2,
		current_set_number = $3, current_set_progress = $4, current_reward_tier = $5, available_grace_weeks = $6, updated_at = NOW()
		WHERE user_id = $7;`,
		ms.CurrentWeekReceipts,
		ms.CurrentWeekStartDate,
		ms.CurrentSetNumber,
		ms.CurrentSetProgress,
		ms.CurrentRewardTier,
		ms.AvailableGraceWeeks,
		ms.UserID,
	)
	if err != nil {
		return errors.New("updating member streak error: " + err.Error())
	}
	if ct.RowsAffected() == 0 {
		return errorvalues.ErrMemberNotFound
	}
	return nil
}

func (sr *StreaksRepository) GrantGracePeriod(ctx context.Context, uid uuid.UUID, weekStart time.Time) error {
	_, err := sr.conn.Exec(ctx, `INSERT INTO streak_grace_periods (user_id, week_start_date) VALUES ($1, $2);`, uid, weekStart)
	if err != nil {
		return errors.New("granting grace period error: " + err.Error())
	}
	return nil
}

func (sr *StreaksRepository) ConsumeGracePeriod(ctx context.Context, uid uuid.UUID) (bool, error) {
	ct, err := sr.conn.Exec(ctx, `UPDATE streak_grace_periods SET is_used = TRUE, used_date = NOW()
		WHERE id = (SELECT id FROM streak_grace_periods WHERE user_id = $1 AND is_used = FALSE ORDER BY week_start_date ASC LIMIT 1);`, uid)
	if err != nil {
		return false, errors.New("consuming grace period error: " + err.Error())
	}
	return ct.RowsAffected() > 0, nil
}
