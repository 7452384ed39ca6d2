package api

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/catalog"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/coupon"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/order"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/pricing"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/seat"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/domain/transaction"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/ordernumber"
)

// ErrorResponse はエラーレスポンスの統一フォーマット
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

const internalErrorMessage = "内部サーバーエラー"

// errorStatus はドメインエラーとHTTPステータスの対応表
// 上から順に errors.Is で照合する
var errorStatus = []struct {
	err  error
	code int
}{
	{catalog.ErrSessionNotFound, http.StatusNotFound},
	{order.ErrOrderNotFound, http.StatusNotFound},
	{coupon.ErrCouponNotFound, http.StatusNotFound},
	{coupon.ErrMemberCouponNotFound, http.StatusNotFound},
	{pricing.ErrTicketTypeNotFound, http.StatusNotFound},

	{order.ErrNotOrderOwner, http.StatusForbidden},

	{seat.ErrSeatUnavailable, http.StatusConflict},
	{transaction.ErrConcurrencyConflict, http.StatusConflict},
	{order.ErrInvalidStateTransition, http.StatusConflict},
	{seat.ErrInvalidStateTransition, http.StatusConflict},
	{coupon.ErrInvalidStateTransition, http.StatusConflict},
	{coupon.ErrQuotaExceeded, http.StatusConflict},
	{coupon.ErrClaimLimitReached, http.StatusConflict},

	{coupon.ErrCouponNotApplicable, http.StatusUnprocessableEntity},
	{coupon.ErrCouponInactive, http.StatusUnprocessableEntity},
	{coupon.ErrCouponExpired, http.StatusUnprocessableEntity},
	{pricing.ErrNoApplicablePriceRule, http.StatusUnprocessableEntity},
	{pricing.ErrTicketTypeDisabled, http.StatusUnprocessableEntity},
	{order.ErrSessionClosed, http.StatusUnprocessableEntity},
	{order.ErrRefundWindowClosed, http.StatusUnprocessableEntity},

	{ordernumber.ErrInvalidOrderNumber, http.StatusBadRequest},
	{order.ErrTicketCountMismatch, http.StatusBadRequest},
	{order.ErrInvalidPaymentMethod, http.StatusBadRequest},
	{order.ErrPaymentTypeRequired, http.StatusBadRequest},
	{seat.ErrSeatIDsRequired, http.StatusBadRequest},
	{seat.ErrDuplicateSeatIDs, http.StatusBadRequest},
	{seat.ErrInvalidHoldDuration, http.StatusBadRequest},
}

// ToHTTPError はサービス層のエラーを HTTPError に変換する
// 対応表にないエラーは内部エラーとし、メッセージは外に出さない
func ToHTTPError(err error) *echo.HTTPError {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	for _, m := range errorStatus {
		if errors.Is(err, m.err) {
			return echo.NewHTTPError(m.code, err.Error()).SetInternal(err)
		}
	}
	return echo.NewHTTPError(http.StatusInternalServerError, internalErrorMessage).SetInternal(err)
}

// CustomHTTPErrorHandler はカスタムエラーハンドラー
func CustomHTTPErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	he := ToHTTPError(err)
	code := he.Code
	message, ok := he.Message.(string)
	if !ok {
		message = http.StatusText(code)
	}

	// エラーログを出力（5xx エラーの場合）
	if code >= 500 {
		logger.FromContext(c.Request().Context()).Error("サーバーエラー",
			zap.Int("status", code),
			zap.String("path", c.Request().URL.Path),
			zap.Error(err),
		)
	}

	if err := c.JSON(code, ErrorResponse{
		Error: message,
		Code:  code,
	}); err != nil {
		logger.Error("エラーレスポンス送信失敗", zap.Error(err))
	}
}
