package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// CouponHandler は会員向けのクーポンハンドラー
type CouponHandler struct {
	service CouponServiceInterface
}

func NewCouponHandler(s CouponServiceInterface) *CouponHandler {
	return &CouponHandler{service: s}
}

// Applicable godoc
// @Summary 注文に使えるクーポンを確認する
// @Description 保有クーポンごとに利用可否と理由を返します
// @Tags coupons
// @Produce json
// @Security BearerAuth
// @Param session_id query int true "上映回ID"
// @Param subtotal query int true "割引前の合計金額"
// @Success 200 {array} CouponApplicabilityResponse
// @Router /coupons/applicable [get]
func (h *CouponHandler) Applicable(c echo.Context) error {
	memberID, err := currentMember(c)
	if err != nil {
		return err
	}
	sessionID, err := queryInt64(c, "session_id", true)
	if err != nil {
		return err
	}
	subtotal, err := queryInt64(c, "subtotal", true)
	if err != nil {
		return err
	}

	list, err := h.service.FindApplicable(c.Request().Context(), memberID, sessionID, subtotal)
	if err != nil {
		return err
	}
	resp := make([]CouponApplicabilityResponse, len(list))
	for i, a := range list {
		resp[i] = toApplicabilityResponse(a)
	}
	return c.JSON(http.StatusOK, resp)
}

// Claim godoc
// @Summary クーポンを取得する
// @Tags coupons
// @Produce json
// @Security BearerAuth
// @Param couponId path int true "クーポンID"
// @Success 201 {object} MemberCouponResponse
// @Failure 409 {object} api.ErrorResponse "発行上限・取得上限"
// @Failure 422 {object} api.ErrorResponse "期限切れ・停止中"
// @Router /coupons/{couponId}/claim [post]
func (h *CouponHandler) Claim(c echo.Context) error {
	memberID, err := currentMember(c)
	if err != nil {
		return err
	}
	couponID, err := pathID(c, "couponId")
	if err != nil {
		return err
	}
	mc, err := h.service.Claim(c.Request().Context(), memberID, couponID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, toMemberCouponResponse(mc))
}
