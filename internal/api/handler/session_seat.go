package handler

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
)

// SessionSeatHandler は上映回の座席ハンドラー
type SessionSeatHandler struct {
	inventory SeatInventoryInterface
}

func NewSessionSeatHandler(inv SeatInventoryInterface) *SessionSeatHandler {
	return &SessionSeatHandler{inventory: inv}
}

type AvailableCountResponse struct {
	SessionID int64 `json:"session_id" example:"1"`
	Available int   `json:"available" example:"120"`
}

type InitializeSeatsResponse struct {
	SessionID int64 `json:"session_id" example:"1"`
	Created   int   `json:"created" example:"150"`
}

type SeatIDsRequest struct {
	SeatIDs []int64 `json:"seat_ids" validate:"required,min=1,dive,gt=0"`
}

// List godoc
// @Summary 上映回の座席一覧
// @Tags seats
// @Produce json
// @Param sessionId path int true "上映回ID"
// @Success 200 {array} SeatResponse
// @Failure 404 {object} api.ErrorResponse
// @Router /sessions/{sessionId}/seats [get]
func (h *SessionSeatHandler) List(c echo.Context) error {
	sessionID, err := pathID(c, "sessionId")
	if err != nil {
		return err
	}
	seats, err := h.inventory.ListSeats(c.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	resp := make([]SeatResponse, len(seats))
	for i, s := range seats {
		resp[i] = toSeatResponse(s)
	}
	return c.JSON(http.StatusOK, resp)
}

// CountAvailable godoc
// @Summary 上映回の空席数
// @Tags seats
// @Produce json
// @Param sessionId path int true "上映回ID"
// @Success 200 {object} AvailableCountResponse
// @Router /sessions/{sessionId}/seats/available-count [get]
func (h *SessionSeatHandler) CountAvailable(c echo.Context) error {
	sessionID, err := pathID(c, "sessionId")
	if err != nil {
		return err
	}
	n, err := h.inventory.CountAvailable(c.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, AvailableCountResponse{SessionID: sessionID, Available: n})
}

// Initialize godoc
// @Summary 上映回の座席在庫を作成する
// @Description スクリーンの座席定義から在庫を作成します。作成済みの座席は飛ばします
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param sessionId path int true "上映回ID"
// @Success 201 {object} InitializeSeatsResponse
// @Router /admin/sessions/{sessionId}/seats/initialize [post]
func (h *SessionSeatHandler) Initialize(c echo.Context) error {
	sessionID, err := pathID(c, "sessionId")
	if err != nil {
		return err
	}
	n, err := h.inventory.InitializeSession(c.Request().Context(), sessionID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, InitializeSeatsResponse{SessionID: sessionID, Created: n})
}

// MarkUnavailable godoc
// @Summary 座席を販売停止にする
// @Tags admin
// @Accept json
// @Security BearerAuth
// @Param sessionId path int true "上映回ID"
// @Param request body SeatIDsRequest true "座席ID"
// @Success 204
// @Failure 409 {object} api.ErrorResponse "空席でない座席を含む"
// @Router /admin/sessions/{sessionId}/seats/unavailable [post]
func (h *SessionSeatHandler) MarkUnavailable(c echo.Context) error {
	return h.changeSeats(c, h.inventory.MarkUnavailable)
}

// MarkAvailable godoc
// @Summary 販売停止の座席を販売再開する
// @Tags admin
// @Accept json
// @Security BearerAuth
// @Param sessionId path int true "上映回ID"
// @Param request body SeatIDsRequest true "座席ID"
// @Success 204
// @Router /admin/sessions/{sessionId}/seats/available [post]
func (h *SessionSeatHandler) MarkAvailable(c echo.Context) error {
	return h.changeSeats(c, h.inventory.MarkAvailable)
}

func (h *SessionSeatHandler) changeSeats(c echo.Context, apply func(ctx context.Context, sessionID int64, seatIDs []int64) error) error {
	sessionID, err := pathID(c, "sessionId")
	if err != nil {
		return err
	}
	var req SeatIDsRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}
	if err := apply(c.Request().Context(), sessionID, req.SeatIDs); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}
