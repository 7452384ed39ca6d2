package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
)

// AdminOrderHandler は管理者向けの注文操作
type AdminOrderHandler struct {
	service OrderServiceInterface
}

func NewAdminOrderHandler(s OrderServiceInterface) *AdminOrderHandler {
	return &AdminOrderHandler{service: s}
}

type MarkPaidRequest struct {
	PaymentType   string `json:"payment_type" validate:"required,max=32" example:"cash"`
	TransactionID string `json:"transaction_id,omitempty" validate:"max=64"`
}

// MarkPaid godoc
// @Summary 注文を支払い済みにする
// @Description 窓口での支払いなどを記録します。取引IDを省略した場合は自動採番します
// @Tags admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orderNumber path string true "注文番号"
// @Param request body MarkPaidRequest true "支払い情報"
// @Success 200 {object} OrderResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /admin/orders/{orderNumber}/mark-paid [post]
func (h *AdminOrderHandler) MarkPaid(c echo.Context) error {
	var req MarkPaidRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.service.MarkAsPaid(c.Request().Context(), c.Param("orderNumber"), application.PaymentDescriptor{
		PaymentType:   req.PaymentType,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(res))
}

// Refund godoc
// @Summary 支払い済みの注文を払い戻す
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param orderNumber path string true "注文番号"
// @Success 200 {object} OrderResponse
// @Failure 409 {object} api.ErrorResponse
// @Failure 422 {object} api.ErrorResponse "払い戻し期限切れ"
// @Router /admin/orders/{orderNumber}/refund [post]
func (h *AdminOrderHandler) Refund(c echo.Context) error {
	res, err := h.service.Refund(c.Request().Context(), c.Param("orderNumber"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(res))
}

// Get godoc
// @Summary 注文を取得
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param orderNumber path string true "注文番号"
// @Success 200 {object} OrderResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /admin/orders/{orderNumber} [get]
func (h *AdminOrderHandler) Get(c echo.Context) error {
	res, err := h.service.GetOrder(c.Request().Context(), c.Param("orderNumber"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(res))
}
