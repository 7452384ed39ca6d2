package middleware

import (
	"crypto/subtle"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// MetricsBasicAuth は /metrics エンドポイント用の Basic 認証ミドルウェア
// user と pass の両方が設定されている場合のみ認証を要求する
func MetricsBasicAuth(user, pass string) echo.MiddlewareFunc {
	if user == "" || pass == "" {
		return func(next echo.HandlerFunc) echo.HandlerFunc {
			return next
		}
	}

	return middleware.BasicAuth(func(username, password string, c echo.Context) (bool, error) {
		// タイミング攻撃を防ぐため ConstantTimeCompare を使用
		userMatch := subtle.ConstantTimeCompare([]byte(username), []byte(user)) == 1
		passMatch := subtle.ConstantTimeCompare([]byte(password), []byte(pass)) == 1

		return userMatch && passMatch, nil
	})
}

// CallbackHeader は決済コールバックの共有トークンを運ぶヘッダー
const CallbackHeader = "X-Callback-Token"

// CallbackToken は決済事業者からのコールバックを共有トークンで検証する
// トークンが空の場合はすべて拒否する
func CallbackToken(token string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			got := c.Request().Header.Get(CallbackHeader)
			if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				return echo.NewHTTPError(401, "コールバックトークンが不正です")
			}
			return next(c)
		}
	}
}
