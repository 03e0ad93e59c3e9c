package service_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	errorvalues "github.com/croftcommon/streaks/internal/error_values"
	"github.com/croftcommon/streaks/internal/repository"
	"github.com/croftcommon/streaks/internal/service"
	"github.com/pressly/goose"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

type testPGConfig struct {
	connStr string
}

func (cfg *testPGConfig) ConnString() string {
	return cfg.connStr
}

func setupStreaksTestDB(t *testing.T) (*testPGConfig, *sql.DB) {
	container, err := postgres.Run(context.Background(), "postgres:17",
		postgres.WithUsername("test_user"),
		postgres.WithDatabase("croft"),
		postgres.WithPassword("test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatal("error running test container: " + err.Error())
	}
	connStr, err := container.ConnectionString(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	connStr += "sslmode=disable"
	conn, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatal(err)
	}
	err = goose.Up(conn, "../../migrations")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		conn.Close()
		container.Terminate(context.Background())
	})
	return &testPGConfig{
		connStr: connStr,
	}, conn
}

// seedScenario loads the state from the claim scenario: a member mid-way
// through set 2 with one active tier-2 reward, one completed and one
// incomplete week, and one unused grace period.
func seedScenario(t *testing.T, conn *sql.DB, uid uuid.UUID) {
	weekAgo := time.Now().AddDate(0, 0, -7)
	_, err := conn.Exec(`INSERT INTO member_streaks
		(user_id, current_week_receipts, current_week_start_date, current_set_number, current_set_progress, current_reward_tier, available_grace_weeks)
		VALUES ($1, 4, $2, 2, 3, 1, 1);`, uid, time.Now().AddDate(0, 0, -1))
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO streak_weeks (user_id, week_start_date, receipt_count, is_complete, completed_at)
		VALUES ($1, $2, 2, TRUE, $2);`, uid, weekAgo)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO streak_weeks (user_id, week_start_date, receipt_count) VALUES ($1, $2, 4);`, uid, time.Now().AddDate(0, 0, -1))
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO streak_sets (user_id, set_number, completed_weeks) VALUES ($1, 2, 3);`, uid)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO streak_rewards (user_id, reward_tier) VALUES ($1, 2);`, uid)
	require.NoError(t, err)
	_, err = conn.Exec(`INSERT INTO streak_grace_periods (user_id, week_start_date) VALUES ($1, $2);`, uid, weekAgo)
	require.NoError(t, err)
}

func TestClaimRewardIntegrational(t *testing.T) {
	cfg, conn := setupStreaksTestDB(t)
	rewardsRepo := repository.NewRewardsRepo(cfg)
	s := service.NewRewardClaimService(rewardsRepo, nil)
	ctx := context.Background()

	t.Run("claim with empty state mutates nothing", func(t *testing.T) {
		uid := uuid.New()
		_, err := conn.Exec(`INSERT INTO member_streaks (user_id) VALUES ($1);`, uid)
		require.NoError(t, err)
		_, err = s.ClaimReward(ctx, uid, nil)
		assert.ErrorIs(t, err, errorvalues.ErrNoActiveRewards)
		var badges int
		require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM streak_badges WHERE user_id = $1;`, uid).Scan(&badges))
		assert.Equal(t, 0, badges)
	})

	t.Run("scenario: claim resets everything but history", func(t *testing.T) {
		uid := uuid.New()
		seedScenario(t, conn, uid)
		var completedBefore time.Time
		require.NoError(t, conn.QueryRow(`SELECT completed_at FROM streak_weeks WHERE user_id = $1 AND is_complete = TRUE;`, uid).Scan(&completedBefore))

		res, err := s.ClaimReward(ctx, uid, nil)
		assert.NoError(t, err)
		assert.Equal(t, 50, res.DiscountPercentage)
		assert.Equal(t, 2, res.Tier)

		var receipts, setNumber, setProgress, tier, grace int
		var weekStart *time.Time
		require.NoError(t, conn.QueryRow(`SELECT current_week_receipts, current_week_start_date, current_set_number,
			current_set_progress, current_reward_tier, available_grace_weeks FROM member_streaks WHERE user_id = $1;`, uid).
			Scan(&receipts, &weekStart, &setNumber, &setProgress, &tier, &grace))
		assert.Equal(t, 0, receipts)
		assert.Nil(t, weekStart)
		assert.Equal(t, 1, setNumber)
		assert.Equal(t, 0, setProgress)
		assert.Equal(t, 0, tier)
		assert.Equal(t, 0, grace)

		var activeCount int
		require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM streak_rewards WHERE user_id = $1 AND is_active = TRUE;`, uid).Scan(&activeCount))
		assert.Equal(t, 0, activeCount)

		var claimedDate time.Time
		require.NoError(t, conn.QueryRow(`SELECT claimed_date FROM streak_rewards WHERE user_id = $1;`, uid).Scan(&claimedDate))
		assert.WithinDuration(t, res.ClaimedAt, claimedDate, time.Millisecond)

		var incompleteReceipts int
		require.NoError(t, conn.QueryRow(`SELECT receipt_count FROM streak_weeks WHERE user_id = $1 AND is_complete = FALSE;`, uid).Scan(&incompleteReceipts))
		assert.Equal(t, 0, incompleteReceipts)

		var completedAfter time.Time
		var completedReceipts int
		require.NoError(t, conn.QueryRow(`SELECT completed_at, receipt_count FROM streak_weeks WHERE user_id = $1 AND is_complete = TRUE;`, uid).
			Scan(&completedAfter, &completedReceipts))
		assert.Equal(t, completedBefore.UTC(), completedAfter.UTC())
		assert.Equal(t, 2, completedReceipts)

		var unusedGrace int
		require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM streak_grace_periods WHERE user_id = $1 AND is_used = FALSE;`, uid).Scan(&unusedGrace))
		assert.Equal(t, 0, unusedGrace)
		var usedDate *time.Time
		require.NoError(t, conn.QueryRow(`SELECT used_date FROM streak_grace_periods WHERE user_id = $1;`, uid).Scan(&usedDate))
		assert.NotNil(t, usedDate)

		var milestone int
		require.NoError(t, conn.QueryRow(`SELECT milestone_value FROM streak_badges WHERE user_id = $1 AND badge_type = 'reward_claimed';`, uid).Scan(&milestone))
		assert.Equal(t, 50, milestone)
	})

	t.Run("cumulative discount over three tiers", func(t *testing.T) {
		uid := uuid.New()
		_, err := conn.Exec(`INSERT INTO member_streaks (user_id) VALUES ($1);`, uid)
		require.NoError(t, err)
		for tier := 1; tier <= 3; tier++ {
			_, err = conn.Exec(`INSERT INTO streak_rewards (user_id, reward_tier) VALUES ($1, $2);`, uid, tier)
			require.NoError(t, err)
		}
		res, err := s.ClaimReward(ctx, uid, nil)
		assert.NoError(t, err)
		assert.Equal(t, 150, res.DiscountPercentage)
		assert.Equal(t, 3, res.Tier)
	})

	t.Run("foreign reward id mutates nothing", func(t *testing.T) {
		owner := uuid.New()
		thief := uuid.New()
		_, err := conn.Exec(`INSERT INTO member_streaks (user_id) VALUES ($1), ($2);`, owner, thief)
		require.NoError(t, err)
		var rewardID uuid.UUID
		require.NoError(t, conn.QueryRow(`INSERT INTO streak_rewards (user_id, reward_tier) VALUES ($1, 1) RETURNING id;`, owner).Scan(&rewardID))
		_, err = s.ClaimReward(ctx, thief, &rewardID)
		assert.ErrorIs(t, err, errorvalues.ErrRewardNotFound)
		var stillActive bool
		require.NoError(t, conn.QueryRow(`SELECT is_active FROM streak_rewards WHERE id = $1;`, rewardID).Scan(&stillActive))
		assert.True(t, stillActive)
	})

	t.Run("concurrent claims: exactly one wins", func(t *testing.T) {
		uid := uuid.New()
		_, err := conn.Exec(`INSERT INTO member_streaks (user_id) VALUES ($1);`, uid)
		require.NoError(t, err)
		_, err = conn.Exec(`INSERT INTO streak_rewards (user_id, reward_tier) VALUES ($1, 1);`, uid)
		require.NoError(t, err)

		var wg sync.WaitGroup
		errs := make([]error, 2)
		for i := range errs {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, errs[i] = s.ClaimReward(ctx, uid, nil)
			}(i)
		}
		wg.Wait()

		successes, empty := 0, 0
		for _, err := range errs {
			switch {
			case err == nil:
				successes++
			case errors.Is(err, errorvalues.ErrNoActiveRewards):
				empty++
			}
		}
		assert.Equal(t, 1, successes)
		assert.Equal(t, 1, empty)
	})
}

func TestCheckinToClaimJourney(t *testing.T) {
	cfg, conn := setupStreaksTestDB(t)
	rewardsRepo := repository.NewRewardsRepo(cfg)
	streaksRepo := repository.NewStreaksRepo(cfg)
	checkin := service.NewCheckinService(streaksRepo, rewardsRepo)
	claim := service.NewRewardClaimService(rewardsRepo, nil)
	ctx := context.Background()
	uid := uuid.New()

	// Eight receipts over four consecutive weeks complete the first set.
	start := time.Now().UTC().AddDate(0, 0, -35)
	offset := (int(start.Weekday()) + 6) % 7
	monday := start.AddDate(0, 0, -offset)
	for week := 0; week < 4; week++ {
		for receipt := 0; receipt < 2; receipt++ {
			day := monday.AddDate(0, 0, week*7+receipt)
			res, err := checkin.RegisterReceipt(ctx, uid, &service.CheckinRequest{ReceiptDate: day.Format("2006-01-02")})
			assert.NoError(t, err)
			if week == 3 && receipt == 1 {
				assert.True(t, res.SetComplete)
				assert.True(t, res.RewardIssued)
				assert.Equal(t, 1, res.RewardTier)
			}
		}
	}

	rewards, discount, err := claim.GetActiveRewards(ctx, uid)
	assert.NoError(t, err)
	assert.Equal(t, 1, len(rewards))
	assert.Equal(t, 25, discount)

	res, err := claim.ClaimReward(ctx, uid, nil)
	assert.NoError(t, err)
	assert.Equal(t, 25, res.DiscountPercentage)
	assert.Equal(t, 1, res.Tier)

	var activeCount int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM streak_rewards WHERE user_id = $1 AND is_active = TRUE;`, uid).Scan(&activeCount))
	assert.Equal(t, 0, activeCount)

	// Completed weeks survive the reset
	var completedWeeks int
	require.NoError(t, conn.QueryRow(`SELECT COUNT(*) FROM streak_weeks WHERE user_id = $1 AND is_complete = TRUE;`, uid).Scan(&completedWeeks))
	assert.Equal(t, 4, completedWeeks)
}
