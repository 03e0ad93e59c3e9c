package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/croftcommon/streaks/internal/service"
)

type Server struct {
	mx             *chi.Mux
	claimService   service.RewardClaimServiceI
	checkinService service.CheckinServiceI
	jwtService     JWTServiceI
}

type ServicesList struct {
	ClaimService   service.RewardClaimServiceI
	CheckinService service.CheckinServiceI
	JwtService     JWTServiceI
}

func New(servicesOptions *ServicesList) *Server {
	return &Server{
		mx:             chi.NewMux(),
		claimService:   servicesOptions.ClaimService,
		checkinService: servicesOptions.CheckinService,
		jwtService:     servicesOptions.JwtService,
	}
}

func (s *Server) Run(address string) error {
	s.mx.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))
	s.mx.Use(s.RequestIDMiddleware)
	s.mx.Use(s.SettingUpLoggerMiddleware)
	s.mx.Route("/api/v1/streak", func(r chi.Router) {
		r.Use(s.AuthMiddleware)
		r.Post("/claim", s.ClaimReward)
		r.Post("/checkin", s.Checkin)
		r.Get("/status", s.GetStatus)
		r.Get("/rewards", s.GetRewards)
		r.Get("/badges", s.GetBadges)
	})
	return http.ListenAndServe(address, s.mx)
}
