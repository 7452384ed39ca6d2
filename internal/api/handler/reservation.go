package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/application"
)

// ReservationHandler は会員向けの予約ハンドラー
type ReservationHandler struct {
	service OrderServiceInterface
}

func NewReservationHandler(s OrderServiceInterface) *ReservationHandler {
	return &ReservationHandler{service: s}
}

// TicketRequest は座席1席分の指定
type TicketRequest struct {
	SeatID       int64 `json:"seat_id" validate:"required,gt=0" example:"101"`
	TicketTypeID int64 `json:"ticket_type_id" validate:"required,gt=0" example:"1"`
}

type CreateReservationRequest struct {
	SessionID      int64           `json:"session_id" validate:"required,gt=0" example:"1"`
	Tickets        []TicketRequest `json:"tickets" validate:"required,min=1,max=10,dive"`
	PaymentMethod  string          `json:"payment_method" validate:"required,oneof=online counter" example:"online"`
	MemberCouponID *int64          `json:"member_coupon_id,omitempty" validate:"omitempty,gt=0" example:"5"`
}

// Create godoc
// @Summary 予約を作成
// @Description 座席を仮押さえし、未払いの注文を作成します
// @Tags reservations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateReservationRequest true "予約情報"
// @Success 201 {object} OrderResponse
// @Failure 400 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "座席が既に予約済み"
// @Failure 422 {object} api.ErrorResponse "クーポン利用不可・上映回締切"
// @Router /reservations [post]
func (h *ReservationHandler) Create(c echo.Context) error {
	memberID, err := currentMember(c)
	if err != nil {
		return err
	}
	var req CreateReservationRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	seatIDs := make([]int64, len(req.Tickets))
	ticketTypeIDs := make([]int64, len(req.Tickets))
	for i, t := range req.Tickets {
		seatIDs[i] = t.SeatID
		ticketTypeIDs[i] = t.TicketTypeID
	}

	res, err := h.service.CreateReservation(c.Request().Context(), application.CreateReservationInput{
		MemberID:       &memberID,
		SessionID:      req.SessionID,
		SeatIDs:        seatIDs,
		TicketTypeIDs:  ticketTypeIDs,
		PaymentMethod:  req.PaymentMethod,
		MemberCouponID: req.MemberCouponID,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toOrderResponse(res))
}

// Get godoc
// @Summary 自分の注文を取得
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param orderNumber path string true "注文番号"
// @Success 200 {object} OrderResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /reservations/{orderNumber} [get]
func (h *ReservationHandler) Get(c echo.Context) error {
	memberID, err := currentMember(c)
	if err != nil {
		return err
	}
	res, err := h.service.GetOrderForMember(c.Request().Context(), c.Param("orderNumber"), memberID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(res))
}

// List godoc
// @Summary 自分の注文一覧を取得
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param limit query int false "取得件数" default(20)
// @Param offset query int false "オフセット" default(0)
// @Success 200 {array} OrderResponse
// @Router /reservations [get]
func (h *ReservationHandler) List(c echo.Context) error {
	memberID, err := currentMember(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	results, err := h.service.ListMemberOrders(c.Request().Context(), memberID, limit, offset)
	if err != nil {
		return err
	}
	resp := make([]OrderResponse, len(results))
	for i, r := range results {
		resp[i] = toOrderResponse(r)
	}
	return c.JSON(http.StatusOK, resp)
}

// Cancel godoc
// @Summary 未払いの予約を取り消す
// @Tags reservations
// @Produce json
// @Security BearerAuth
// @Param orderNumber path string true "注文番号"
// @Success 200 {object} OrderResponse
// @Failure 403 {object} api.ErrorResponse
// @Failure 409 {object} api.ErrorResponse "支払い済み等で取り消し不可"
// @Router /reservations/{orderNumber}/cancel [post]
func (h *ReservationHandler) Cancel(c echo.Context) error {
	memberID, err := currentMember(c)
	if err != nil {
		return err
	}
	res, err := h.service.CancelReservation(c.Request().Context(), c.Param("orderNumber"), memberID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toOrderResponse(res))
}
