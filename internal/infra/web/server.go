package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"sheger-et-bot/internal/infra/logging"
	"sheger-et-bot/internal/usecase"
)

// Server is the admin HTTP API. Every route except the token exchange needs a
// bearer token minted for an allow-listed admin.
type Server struct {
	admin     usecase.AdminUseCase
	verify    usecase.VerificationUseCase
	payments  usecase.PaymentUseCase
	campaigns usecase.CampaignUseCase
	broadcast usecase.BroadcastUseCase
	policy    usecase.AdminPolicy
	auth      *AuthManager
	validate  *validator.Validate
	now       func() time.Time
	log       *zerolog.Logger
}

func NewServer(
	admin usecase.AdminUseCase,
	verify usecase.VerificationUseCase,
	payments usecase.PaymentUseCase,
	campaigns usecase.CampaignUseCase,
	broadcast usecase.BroadcastUseCase,
	policy usecase.AdminPolicy,
	auth *AuthManager,
	logger *zerolog.Logger,
) *Server {
	return &Server{
		admin:     admin,
		verify:    verify,
		payments:  payments,
		campaigns: campaigns,
		broadcast: broadcast,
		policy:    policy,
		auth:      auth,
		validate:  validator.New(),
		now:       time.Now,
		log:       logger,
	}
}

// RegisterRoutes mounts the API under /api/v1.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/auth/token", s.handleToken)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/payments/pending", s.handleListPending)
			r.Post("/payments/verify", s.handleVerify)
			r.Post("/payments/verify-reference", s.handleVerifyReference)
			r.Post("/payments/reject", s.handleReject)
			r.Post("/payments/sweep", s.handleSweep)

			r.Get("/revenue", s.handleRevenue)
			r.Get("/stats", s.handleStats)
			r.Get("/accounts/{id}", s.handleAccount)

			r.Get("/campaigns", s.handleListCampaigns)
			r.Post("/campaigns", s.handleCreateCampaign)
			r.Delete("/campaigns/{code}", s.handleDeactivateCampaign)

			r.Post("/broadcast", s.handleBroadcast)
		})
	})
}

// authMiddleware checks the bearer token and stores the admin id on the context.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, err := s.auth.ParseFromRequest(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		adminID, err := claims.AdminID()
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		// tokens outlive allow-list edits
		if !s.policy.IsAdmin(adminID) {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(logging.WithAdminID(r.Context(), adminID)))
	})
}
