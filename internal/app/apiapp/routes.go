package apiapp

import (
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/amouradev/amoura/backend/internal/config"
	authsvc "github.com/amouradev/amoura/backend/internal/services/auth"
	entsvc "github.com/amouradev/amoura/backend/internal/services/entitlements"
	ledgersvc "github.com/amouradev/amoura/backend/internal/services/ledger"
	paysvc "github.com/amouradev/amoura/backend/internal/services/payments"
	ratesvc "github.com/amouradev/amoura/backend/internal/services/rate"
	reconcilesvc "github.com/amouradev/amoura/backend/internal/services/reconcile"
	"github.com/amouradev/amoura/backend/internal/transport/http/handlers"
)

type Dependencies struct {
	AuthService        *authsvc.Service
	LedgerService      *ledgersvc.Service
	EntitlementService *entsvc.Service
	ReconcileService   *reconcilesvc.Service
	PaymentService     *paysvc.Service
	RateLimiter        *ratesvc.Limiter
	Logger             *zap.Logger
	Config             config.Config
}

func RegisterRoutes(r chi.Router, deps Dependencies) {
	healthHandler := handlers.NewHealthHandler()
	authHandler := handlers.NewAuthHandler(deps.AuthService, deps.Config.Auth.ExposeLoginCodes)
	meHandler := handlers.NewMeHandler(deps.LedgerService, deps.AuthService)
	actionsHandler := handlers.NewActionsHandler(deps.EntitlementService, deps.RateLimiter)
	purchaseHandler := handlers.NewPurchaseHandler(deps.PaymentService)
	syncHandler := handlers.NewSyncHandler(deps.ReconcileService)
	adminHandler := handlers.NewAdminHandler(deps.LedgerService)
	authMW := AuthMiddleware(deps.AuthService, deps.Logger)
	adminRoleMW := RequireRole("admin")

	r.Get("/healthz", healthHandler.Healthz)

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/request_code", authHandler.RequestCode)
		r.Post("/verify", authHandler.Verify)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authMW).Post("/logout", authHandler.Logout)
		r.With(authMW).Post("/logout_all", authHandler.LogoutAll)
	})

	r.Route("/v1", func(r chi.Router) {
		r.With(authMW).Get("/me/credits", meHandler.Credits)
		r.With(authMW).Delete("/me", meHandler.DeleteAccount)
		r.With(authMW).Post("/actions", actionsHandler.Perform)
		r.With(authMW).Get("/actions/check", actionsHandler.Check)
		r.With(authMW).Post("/purchases", purchaseHandler.Create)
		r.With(authMW).Get("/purchases/{id}", purchaseHandler.Get)
		r.Post("/purchases/webhook", purchaseHandler.Webhook)
		r.With(authMW).Post("/sync", syncHandler.Reconcile)
		r.With(authMW, adminRoleMW).Post("/admin/users/{id}/tier", adminHandler.SetTier)
	})
}
