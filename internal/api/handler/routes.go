package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api/middleware"
)

// Handlers はルーティングに載せるハンドラー一式
type Handlers struct {
	Health      *HealthHandler
	Reservation *ReservationHandler
	AdminOrder  *AdminOrderHandler
	Seat        *SessionSeatHandler
	Coupon      *CouponHandler
	Payment     *PaymentHandler
	TicketType  *TicketTypeHandler
}

// RouteConfig はルーティングの認証設定
type RouteConfig struct {
	JWTSecret       string
	CallbackToken   string
	MetricsUser     string
	MetricsPassword string
	// MetricsHandler が nil なら /metrics を公開しない
	MetricsHandler http.Handler
}

// RegisterRoutes は /api/v1 配下のルートを登録する
func RegisterRoutes(e *echo.Echo, h Handlers, cfg RouteConfig) {
	if cfg.MetricsHandler != nil {
		e.GET("/metrics", echo.WrapHandler(cfg.MetricsHandler), middleware.MetricsBasicAuth(cfg.MetricsUser, cfg.MetricsPassword))
	}

	v1 := e.Group("/api/v1")

	// 公開
	v1.GET("/health", h.Health.Check)
	v1.GET("/ticket-types", h.TicketType.List)
	v1.GET("/sessions/:sessionId/seats", h.Seat.List)
	v1.GET("/sessions/:sessionId/seats/available-count", h.Seat.CountAvailable)

	// 決済事業者
	v1.POST("/payments/callback", h.Payment.Callback, middleware.CallbackToken(cfg.CallbackToken))

	// 会員
	auth := middleware.JWTAuth(cfg.JWTSecret)
	v1.POST("/reservations", h.Reservation.Create, auth)
	v1.GET("/reservations", h.Reservation.List, auth)
	v1.GET("/reservations/:orderNumber", h.Reservation.Get, auth)
	v1.POST("/reservations/:orderNumber/cancel", h.Reservation.Cancel, auth)
	v1.GET("/coupons/applicable", h.Coupon.Applicable, auth)
	v1.POST("/coupons/:couponId/claim", h.Coupon.Claim, auth)

	// 管理者
	admin := v1.Group("/admin", auth, middleware.RequireAdmin())
	admin.GET("/orders/:orderNumber", h.AdminOrder.Get)
	admin.POST("/orders/:orderNumber/mark-paid", h.AdminOrder.MarkPaid)
	admin.POST("/orders/:orderNumber/refund", h.AdminOrder.Refund)
	admin.POST("/sessions/:sessionId/seats/initialize", h.Seat.Initialize)
	admin.POST("/sessions/:sessionId/seats/unavailable", h.Seat.MarkUnavailable)
	admin.POST("/sessions/:sessionId/seats/available", h.Seat.MarkAvailable)
}
