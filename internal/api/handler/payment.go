package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
)

// PaymentHandler は決済事業者からのコールバックを受ける
type PaymentHandler struct {
	service OrderServiceInterface
}

func NewPaymentHandler(s OrderServiceInterface) *PaymentHandler {
	return &PaymentHandler{service: s}
}

type PaymentCallbackRequest struct {
	OrderNumber   string `json:"order_number" validate:"required"`
	Success       bool   `json:"success"`
	PaymentType   string `json:"payment_type" validate:"required_if=Success true,max=32" example:"credit_card"`
	TransactionID string `json:"transaction_id" validate:"required_if=Success true,max=64"`
}

// Callback godoc
// @Summary 決済結果を反映する
// @Description 同じ結果の再送は成功として扱います
// @Tags payments
// @Accept json
// @Produce json
// @Param X-Callback-Token header string true "共有トークン"
// @Param request body PaymentCallbackRequest true "決済結果"
// @Success 200 {object} OrderResponse
// @Failure 401 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse
// @Router /payments/callback [post]
func (h *PaymentHandler) Callback(c echo.Context) error {
	var req PaymentCallbackRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	res, err := h.service.HandlePaymentResult(c.Request().Context(), application.PaymentResult{
		OrderNumber:   req.OrderNumber,
		Success:       req.Success,
		PaymentType:   req.PaymentType,
		TransactionID: req.TransactionID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(res))
}
