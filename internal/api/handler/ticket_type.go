package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type TicketTypeHandler struct {
	lister TicketTypeLister
}

func NewTicketTypeHandler(l TicketTypeLister) *TicketTypeHandler {
	return &TicketTypeHandler{lister: l}
}

// List godoc
// @Summary 販売中の券種一覧
// @Tags ticket-types
// @Produce json
// @Success 200 {array} TicketTypeResponse
// @Router /ticket-types [get]
func (h *TicketTypeHandler) List(c echo.Context) error {
	types, err := h.lister.ListTicketTypes(c.Request().Context())
	if err != nil {
		return err
	}
	resp := make([]TicketTypeResponse, len(types))
	for i, t := range types {
		resp[i] = toTicketTypeResponse(t)
	}
	return c.JSON(http.StatusOK, resp)
}
