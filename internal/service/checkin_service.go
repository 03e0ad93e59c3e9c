package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	errorvalues "github.com/croftcommon/streaks/internal/error_values"
	"github.com/croftcommon/streaks/internal/repository"
	"github.com/croftcommon/streaks/pkg/entity"
)

// Programme constants: two receipts finish a week, four finished weeks
// finish a set, each finished set moves the tier up to the cap and banks
// one grace week up to the bank cap.
const (
	ReceiptsPerWeek = 2
	WeeksPerSet     = 4
	MaxRewardTier   = 3
	MaxGraceWeeks   = 2
)

type CheckinService struct {
	streaksRepo repository.StreaksRepositoryI
	rewardsRepo repository.RewardsRepositoryI
}

func NewCheckinService(streaksRepo repository.StreaksRepositoryI, rewardsRepo repository.RewardsRepositoryI) *CheckinService {
	if streaksRepo == nil || rewardsRepo == nil {
		log.Fatal("on checkin service provided nil repos")
	}
	return &CheckinService{
		streaksRepo: streaksRepo,
		rewardsRepo: rewardsRepo,
	}
}

func (serv *CheckinService) RegisterReceipt(ctx context.Context, uid uuid.UUID, req *CheckinRequest) (*entity.CheckinResult, error) {
	err := validate.Struct(*req)
	if err != nil {
		if validationError, ok := err.(validator.ValidationErrors); ok {
			err = errors.New("validation error: ")
			for _, fieldErr := range validationError {
				err = errors.Join(err, fieldErr)
			}
			return nil, err
		}
		return nil, errors.New("validation unexpected error: " + err.Error())
	}
	date := timeNow().UTC()
	if req.ReceiptDate != "" {
		date, err = time.Parse("2006-01-02", req.ReceiptDate)
		if err != nil {
			return nil, errors.New("parsing receipt date error: " + err.Error())
		}
	}
	if date.After(timeNow().UTC()) {
		return nil, errorvalues.ErrFutureReceipt
	}
	weekStart := weekStartOf(date)

	ms, err := serv.streaksRepo.GetMemberStreak(ctx, uid)
	if err != nil {
		if !errors.Is(err, errorvalues.ErrMemberNotFound) {
			return nil, errors.New("streaks repository error: " + err.Error())
		}
		ms, err = serv.streaksRepo.CreateMemberStreak(ctx, uid)
		if err != nil {
			return nil, errors.New("streaks repository error: " + err.Error())
		}
	}

	week, err := serv.streaksRepo.GetIncompleteWeek(ctx, uid)
	if err != nil {
		return nil, errors.New("streaks repository error: " + err.Error())
	}

	// A receipt dated before the week being tracked would rewind progress
	// and collide with completed week rows, so it is rejected outright.
	if ms.CurrentWeekStartDate != nil && weekStart.Before(weekStartOf(*ms.CurrentWeekStartDate)) {
		return nil, errorvalues.ErrStaleReceipt
	}
	if week != nil && weekStart.Before(week.WeekStartDate) {
		return nil, errorvalues.ErrStaleReceipt
	}

	res := &entity.CheckinResult{}
	var count int
	switch {
	case week != nil && week.WeekStartDate.Equal(weekStart):
		count, err = serv.streaksRepo.AddReceipt(ctx, week.ID)
		if err != nil {
			return nil, errors.New("streaks repository error: " + err.Error())
		}
	default:
		// The receipt opens a new calendar week. A gap of more than one week
		// since the last tracked week consumes a banked grace period, or
		// restarts the in-progress set when none is banked.
		if ms.CurrentWeekStartDate != nil && weekStart.Sub(weekStartOf(*ms.CurrentWeekStartDate)) > 7*24*time.Hour {
			used, err := serv.streaksRepo.ConsumeGracePeriod(ctx, uid)
			if err != nil {
				return nil, errors.New("streaks repository error: " + err.Error())
			}
			if used {
				ms.AvailableGraceWeeks--
				res.GraceConsumed = true
			} else {
				set, err := serv.streaksRepo.GetIncompleteSet(ctx, uid)
				if err != nil {
					return nil, errors.New("streaks repository error: " + err.Error())
				}
				if set != nil {
					if err = serv.streaksRepo.RestartSet(ctx, set.ID); err != nil {
						return nil, errors.New("streaks repository error: " + err.Error())
					}
				}
				ms.CurrentSetProgress = 0
			}
		}
		if week != nil {
			if err = serv.streaksRepo.RolloverWeek(ctx, week.ID, weekStart); err != nil {
				return nil, errors.New("streaks repository error: " + err.Error())
			}
			week.WeekStartDate = weekStart
		} else {
			week, err = serv.streaksRepo.StartWeek(ctx, uid, weekStart)
			if err != nil {
				if errors.Is(err, errorvalues.ErrCheckinExists) {
					return nil, err
				}
				return nil, errors.New("streaks repository error: " + err.Error())
			}
		}
		count = 1
	}

	ms.CurrentWeekReceipts = count
	ms.CurrentWeekStartDate = &weekStart
	res.WeekReceipts = count

	if count >= ReceiptsPerWeek {
		if err = serv.completeWeek(ctx, uid, week, ms, res, weekStart); err != nil {
			return nil, err
		}
	}

	if err = serv.streaksRepo.UpdateMemberStreak(ctx, ms); err != nil {
		return nil, errors.New("streaks repository error: " + err.Error())
	}
	return res, nil
}

func (serv *CheckinService) completeWeek(ctx context.Context, uid uuid.UUID, week *entity.StreakWeek, ms *entity.MemberStreak, res *entity.CheckinResult, weekStart time.Time) error {
	if err := serv.streaksRepo.CompleteWeek(ctx, week.ID); err != nil {
		return errors.New("streaks repository error: " + err.Error())
	}
	// CurrentWeekStartDate keeps pointing at the completed week so the next
	// check-in can tell a consecutive week from a gap.
	res.WeekComplete = true
	ms.CurrentWeekReceipts = 0

	set, err := serv.streaksRepo.GetIncompleteSet(ctx, uid)
	if err != nil {
		return errors.New("streaks repository error: " + err.Error())
	}
	if set == nil {
		set, err = serv.streaksRepo.StartSet(ctx, uid, ms.CurrentSetNumber)
		if err != nil {
			return errors.New("streaks repository error: " + err.Error())
		}
	}
	weeks, err := serv.streaksRepo.AdvanceSet(ctx, set.ID)
	if err != nil {
		return errors.New("streaks repository error: " + err.Error())
	}
	ms.CurrentSetProgress = weeks
	res.SetProgress = weeks
	if weeks < WeeksPerSet {
		return nil
	}

	tier := ms.CurrentRewardTier + 1
	if tier > MaxRewardTier {
		tier = MaxRewardTier
	}
	if err = serv.streaksRepo.CompleteSet(ctx, set.ID, tier); err != nil {
		return errors.New("streaks repository error: " + err.Error())
	}
	if err = serv.rewardsRepo.IssueReward(ctx, uid, tier); err != nil {
		return errors.New("rewards repository error: " + err.Error())
	}
	if err = serv.rewardsRepo.UpsertBadge(ctx, &entity.StreakBadge{
		UserID:         uid,
		BadgeType:      "set_complete",
		MilestoneValue: set.SetNumber,
		Name:           "Set Complete",
		Description:    "Completed a full streak set",
		Icon:           "calendar",
	}); err != nil {
		return errors.New("rewards repository error: " + err.Error())
	}
	ms.CurrentRewardTier = tier
	ms.CurrentSetNumber = set.SetNumber + 1
	ms.CurrentSetProgress = 0
	if ms.AvailableGraceWeeks < MaxGraceWeeks {
		if err = serv.streaksRepo.GrantGracePeriod(ctx, uid, weekStart); err != nil {
			return errors.New("streaks repository error: " + err.Error())
		}
		ms.AvailableGraceWeeks++
	}
	res.SetComplete = true
	res.RewardIssued = true
	res.RewardTier = tier
	return nil
}

func (serv *CheckinService) GetStatus(ctx context.Context, uid uuid.UUID) (*entity.StreakStatus, error) {
	ms, err := serv.streaksRepo.GetMemberStreak(ctx, uid)
	if err != nil {
		if errors.Is(err, errorvalues.ErrMemberNotFound) {
			return nil, err
		}
		return nil, errors.New("streaks repository error: " + err.Error())
	}
	week, err := serv.streaksRepo.GetIncompleteWeek(ctx, uid)
	if err != nil {
		return nil, errors.New("streaks repository error: " + err.Error())
	}
	set, err := serv.streaksRepo.GetIncompleteSet(ctx, uid)
	if err != nil {
		return nil, errors.New("streaks repository error: " + err.Error())
	}
	rewards, err := serv.rewardsRepo.GetActiveRewards(ctx, uid)
	if err != nil {
		return nil, errors.New("rewards repository error: " + err.Error())
	}
	return &entity.StreakStatus{
		Streak:        ms,
		CurrentWeek:   week,
		CurrentSet:    set,
		ActiveRewards: rewards,
	}, nil
}

// weekStartOf normalizes to the Monday of t's calendar week, midnight UTC.
func weekStartOf(t time.Time) time.Time {
	t = t.UTC().Truncate(24 * time.Hour)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}
