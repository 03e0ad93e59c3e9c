package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	errorvalues "github.com/croftcommon/streaks/internal/error_values"
	"github.com/croftcommon/streaks/internal/service"
	"github.com/croftcommon/streaks/pkg/entity"
	"github.com/croftcommon/streaks/pkg/httputil"
)

type ClaimRequest struct {
	RewardID string `json:"reward_id"`
}

type ClaimResponse struct {
	Success       bool                `json:"success"`
	ClaimedReward *entity.ClaimResult `json:"claimed_reward"`
	Message       string              `json:"message"`
	ResetComplete bool                `json:"reset_complete"`
}

type CheckinRequest struct {
	ReceiptDate string `json:"receipt_date"`
}

type GetRewardsResponse struct {
	UserID            string                `json:"uid"`
	ActiveRewards     []entity.StreakReward `json:"active_rewards"`
	AvailableDiscount int                   `json:"available_discount"`
}

type GetBadgesResponse struct {
	UserID string               `json:"uid"`
	Badges []entity.StreakBadge `json:"badges"`
}

// ClaimReward converts the member's earned tiers into one discount. A
// missing or malformed body means no explicit reward was selected and the
// highest tier wins.
func (s *Server) ClaimReward(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("claim error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req ClaimRequest
	defer r.Body.Close()
	if err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		req = ClaimRequest{}
	}
	var rewardID *uuid.UUID
	if req.RewardID != "" {
		id, err := uuid.Parse(req.RewardID)
		if err != nil {
			logger.Error("claim error: unparsable reward id")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "reward not found", nil)
			return
		}
		rewardID = &id
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	result, err := s.claimService.ClaimReward(ctx, uid, rewardID)
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrNoActiveRewards):
			logger.Error("claim error: nothing to claim")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "no active rewards to claim", nil)
		case errors.Is(err, errorvalues.ErrRewardNotFound):
			logger.Error("claim error: reward not active or not owned")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "reward not found", nil)
		default:
			logger.Error("claim error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while claiming reward", nil)
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, ClaimResponse{
		Success:       true,
		ClaimedReward: result,
		Message:       fmt.Sprintf("Congratulations! Your %d%% discount has been claimed.", result.DiscountPercentage),
		ResetComplete: true,
	})
	logger.Info("reward claimed", slog.Int("discount", result.DiscountPercentage))
}

func (s *Server) Checkin(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("checkin error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	var req CheckinRequest
	defer r.Body.Close()
	if err = sonic.ConfigDefault.NewDecoder(r.Body).Decode(&req); err != nil {
		req = CheckinRequest{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	result, err := s.checkinService.RegisterReceipt(ctx, uid, &service.CheckinRequest{
		ReceiptDate: req.ReceiptDate,
	})
	if err != nil {
		switch {
		case errors.Is(err, errorvalues.ErrFutureReceipt):
			logger.Error("checkin error: future receipt date")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "receipt date can't be in the future", nil)
		case errors.Is(err, errorvalues.ErrStaleReceipt):
			logger.Error("checkin error: receipt predates current week")
			httputil.WriteErrorResponse(w, http.StatusBadRequest, "receipt date predates the current streak week", nil)
		case errors.Is(err, errorvalues.ErrCheckinExists):
			logger.Error("checkin error: duplicate week")
			httputil.WriteErrorResponse(w, http.StatusConflict, "receipt already registered for this week", nil)
		default:
			logger.Error("checkin error: service error", slog.String("error", err.Error()))
			httputil.WriteErrorResponse(w, http.StatusInternalServerError, "internal error while registering receipt", nil)
		}
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, result)
	logger.Info("receipt registered", slog.Int("week_receipts", result.WeekReceipts))
}

func (s *Server) GetStatus(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("get status error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	status, err := s.checkinService.GetStatus(ctx, uid)
	if err != nil {
		if errors.Is(err, errorvalues.ErrMemberNotFound) {
			logger.Error("get status error: member has no streak yet")
			httputil.WriteErrorResponse(w, http.StatusNotFound, "no streak found for member", nil)
			return
		}
		logger.Error("get status error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error while getting streak status", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, status)
	logger.Info("streak status provided")
}

func (s *Server) GetRewards(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("get rewards error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	rewards, discount, err := s.claimService.GetActiveRewards(ctx, uid)
	if err != nil {
		logger.Error("get rewards error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error while getting rewards", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, GetRewardsResponse{
		UserID:            uid.String(),
		ActiveRewards:     rewards,
		AvailableDiscount: discount,
	})
	logger.Info("rewards provided")
}

func (s *Server) GetBadges(w http.ResponseWriter, r *http.Request) {
	logger := GetLoggerFromCtx(r.Context())
	uid, err := GetUIDFromContext(r)
	if err != nil {
		logger.Error("get badges error: unauthorized")
		httputil.WriteErrorResponse(w, http.StatusUnauthorized, "no authorization", nil)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	badges, err := s.claimService.GetBadges(ctx, uid)
	if err != nil {
		logger.Error("get badges error: service error", slog.String("error", err.Error()))
		httputil.WriteErrorResponse(w, http.StatusInternalServerError, "error while getting badges", nil)
		return
	}
	httputil.WriteJSONResponse(w, http.StatusOK, GetBadgesResponse{
		UserID: uid.String(),
		Badges: badges,
	})
	logger.Info("badges provided")
}
