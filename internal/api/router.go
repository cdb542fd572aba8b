package api

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/akhil-km/storefront/internal/config"
)

// Server bundles the dependencies the handlers need.
type Server struct {
	db     *sql.DB
	cfg    *config.Config
	logger *slog.Logger
}

func NewServer(db *sql.DB, cfg *config.Config, logger *slog.Logger) *Server {
	return &Server{db: db, cfg: cfg, logger: logger}
}

// Router builds the HTTP surface. Customer endpoints identify the
// caller through the X-User-ID header; admin endpoints live under
// /admin and are expected to be shielded by the gateway.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(requestLogger(s.logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := s.db.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/users", func(r chi.Router) {
		r.Post("/", s.handleCreateUser)
		r.Get("/", s.handleListUsers)
		r.Get("/{id}", s.handleGetUser)
	})

	r.Route("/products", func(r chi.Router) {
		r.Get("/", s.handleListProducts)
		r.Get("/{id}", s.handleGetProduct)
	})

	r.Route("/cart", func(r chi.Router) {
		r.Get("/", s.handleGetCart)
		r.Post("/items", s.handleAddToCart)
		r.Put("/items/{variantID}", s.handleUpdateCartItem)
		r.Delete("/items/{variantID}", s.handleRemoveFromCart)
		r.Post("/coupon", s.handleApplyCoupon)
		r.Delete("/coupon", s.handleRemoveCoupon)
	})

	r.Post("/checkout", s.handleCheckout)
	r.Post("/payments/confirm", s.handleConfirmPayment)

	r.Route("/orders", func(r chi.Router) {
		r.Get("/", s.handleListOrders)
		r.Get("/{id}", s.handleGetOrder)
		r.Post("/{id}/cancel", s.handleCancelOrReturn)
	})

	r.Route("/wallet", func(r chi.Router) {
		r.Get("/", s.handleGetWallet)
		r.Post("/topup", s.handleTopUpWallet)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Post("/products", s.handleCreateProduct)
		r.Post("/products/{id}/variants", s.handleCreateVariant)
		r.Post("/products/variants/{variantID}/stock", s.handleRestock)

		r.Post("/coupons", s.handleCreateCoupon)
		r.Get("/coupons", s.handleListCoupons)
		r.Put("/coupons/{id}", s.handleUpdateCoupon)
		r.Patch("/coupons/{id}/active", s.handleSetCouponActive)

		r.Patch("/orders/{id}/status", s.handleUpdateOrderStatus)
		r.Post("/orders/{id}/items/{variantID}/return/approve", s.handleApproveReturn)
		r.Post("/orders/{id}/items/{variantID}/return/reject", s.handleRejectReturn)
	})

	return r
}
