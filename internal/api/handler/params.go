package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/api/middleware"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// pathID はパスパラメータを正の整数として読む
func pathID(c echo.Context, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" が不正です")
	}
	return id, nil
}

func queryInt64(c echo.Context, name string, required bool) (int64, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		if required {
			return 0, echo.NewHTTPError(http.StatusBadRequest, name+" は必須です")
		}
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v < 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, name+" が不正です")
	}
	return v, nil
}

func pagination(c echo.Context) (limit, offset int) {
	limit, _ = strconv.Atoi(c.QueryParam("limit"))
	offset, _ = strconv.Atoi(c.QueryParam("offset"))
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func currentMember(c echo.Context) (int64, error) {
	id, ok := middleware.MemberID(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "認証が必要です")
	}
	return id, nil
}

func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "無効なリクエスト")
	}
	return c.Validate(req)
}
