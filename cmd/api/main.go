// @title Croft Common Streaks API
// @description Members' streak, check-in and reward-claim service
// @BasePath /api/v1
// @schemes http
package main

import (
	"log"

	"github.com/croftcommon/streaks/internal/api"
	"github.com/croftcommon/streaks/internal/notifier"
	"github.com/croftcommon/streaks/internal/repository"
	"github.com/croftcommon/streaks/internal/service"
	"github.com/croftcommon/streaks/pkg/cleanup"
	"github.com/croftcommon/streaks/pkg/config"
	jwtservice "github.com/croftcommon/streaks/pkg/jwt_service"
)

func init() {
	service.InitValidator()
}

func main() {
	defer cleanup.CleanUp()
	cfg := config.New()
	dbCfg := repository.PGCfg{
		Address:  cfg.GetString("POSTGRES_DB_ADDRESS"),
		Username: cfg.GetString("POSTGRES_USER"),
		Password: cfg.GetString("POSTGRES_PASSWORD"),
		DB:       cfg.GetString("POSTGRES_DB"),
	}
	rewardsRepo := repository.NewRewardsRepo(&dbCfg)
	streaksRepo := repository.NewStreaksRepo(&dbCfg)
	dispatcher := notifier.New(
		cfg.GetString("PUSH_GATEWAY_URL"),
		cfg.GetString("PUSH_SERVICE_KEY"),
	)
	claimService := service.NewRewardClaimService(rewardsRepo, dispatcher)
	checkinService := service.NewCheckinService(streaksRepo, rewardsRepo)
	serv := api.New(&api.ServicesList{
		ClaimService:   claimService,
		CheckinService: checkinService,
		JwtService:     jwtservice.New(cfg.GetString("JWT_SECRET")),
	})
	err := serv.Run(cfg.GetStringOr("API_ADDRESS", ":8080"))
	if err != nil {
		log.Println("Server error: " + err.Error())
	}
}
