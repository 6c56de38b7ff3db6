package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tmanjupriya-lang/inventory-management/docs"
	"github.com/tmanjupriya-lang/inventory-management/internal/domain"
	"github.com/tmanjupriya-lang/inventory-management/pkg/health"
	"github.com/tmanjupriya-lang/inventory-management/pkg/middleware"
)

// Services bundles what the routes call into.
type Services struct {
	Auth          AuthService
	Admin         AdminService
	Products      ProductService
	Ledger        LedgerService
	ValidateToken middleware.TokenValidator
}

// RouterConfig holds the HTTP surface settings.
type RouterConfig struct {
	ServiceName       string
	CORS              middleware.CORSConfig
	PprofAllowedCIDRs []string
}

// NewRouter creates a chi router with every inventory route registered.
func NewRouter(svc Services, healthHandler *health.Handler, cfg RouterConfig, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.Tracing(cfg.ServiceName))
	r.Use(middleware.PrometheusMetrics(cfg.ServiceName))
	r.Use(middleware.CORS(cfg.CORS))

	// Health, metrics, docs
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/swagger/doc.json", docs.ServeSpec)
	r.Get("/swagger/*", docs.ServeUI)
	middleware.RegisterPprof(r, cfg.PprofAllowedCIDRs, logger)

	authHandler := NewAuthHandler(svc.Auth, logger)
	adminHandler := NewAdminHandler(svc.Admin, logger)
	managerHandler := NewManagerHandler(svc.Products, logger)
	userHandler := NewUserHandler(svc.Ledger, logger)

	authenticated := middleware.Auth(svc.ValidateToken, logger)
	can := func(c domain.Capability) func(http.Handler) http.Handler {
		return requireCapability(c, logger)
	}

	r.Route("/auth", func(r chi.Router) {
		r.Use(middleware.NoStore)

		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		r.With(authenticated).Post("/logout", authHandler.Logout)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticated)

		r.With(can(domain.CapAssignRole)).Patch("/assign-role", adminHandler.AssignRole)
		r.With(can(domain.CapAssignRole)).Patch("/create-inventory-manager", adminHandler.CreateInventoryManager)
		r.With(can(domain.CapViewUsers)).Get("/view-users", adminHandler.ViewUsers)
	})

	r.Route("/manager", func(r chi.Router) {
		r.Use(authenticated)

		r.Group(func(r chi.Router) {
			r.Use(can(domain.CapManageProducts))
			r.Post("/create-product", managerHandler.CreateProduct)
			r.Delete("/remove-product", managerHandler.RemoveProduct)
			r.Patch("/update-stockqty", managerHandler.UpdateStock)
			r.Patch("/update-price", managerHandler.UpdatePrice)
		})
		r.With(can(domain.CapViewProducts)).Get("/view-products", managerHandler.ViewProducts)
	})

	r.Route("/user", func(r chi.Router) {
		r.Use(authenticated)

		r.Group(func(r chi.Router) {
			r.Use(can(domain.CapManageCart))
			r.Post("/createcart", userHandler.CreateCart)
			r.Delete("/remove_item", userHandler.RemoveItem)
			r.Patch("/updatecartquantity", userHandler.UpdateCartQuantity)
			r.Get("/displaycartitems", userHandler.DisplayCart)
		})
		r.With(can(domain.CapCheckout)).Get("/cartcheckout", userHandler.Checkout)
		r.With(can(domain.CapViewPurchaseHistory)).Post("/displaypurchasehistory", userHandler.PurchaseHistory)
	})

	return r
}
