package middleware

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// ロール
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

const (
	contextKeyMemberID = "member_id"
	contextKeyRole     = "role"
)

// Claims はアクセストークンのクレーム
// Subject に会員IDを入れる
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken は HS256 で署名したアクセストークンを発行する
func IssueToken(secret string, memberID int64, role string, ttl time.Duration) (string, error) {
	now := time.Now().UTC()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(memberID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// JWTAuth は Bearer トークンを検証し、会員IDとロールをコンテキストに設定する
func JWTAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンがありません")
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			var claims Claims
			tok, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, errors.New("署名方式が不正です")
				}
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンが無効です")
			}

			memberID, err := strconv.ParseInt(claims.Subject, 10, 64)
			if err != nil || memberID <= 0 {
				return echo.NewHTTPError(http.StatusUnauthorized, "認証トークンの会員IDが不正です")
			}

			c.Set(contextKeyMemberID, memberID)
			c.Set(contextKeyRole, claims.Role)
			return next(c)
		}
	}
}

// RequireAdmin は管理者ロール以外を拒否する
// JWTAuth の後ろに置くこと
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if Role(c) != RoleAdmin {
				return echo.NewHTTPError(http.StatusForbidden, "管理者権限が必要です")
			}
			return next(c)
		}
	}
}

// MemberID は認証済み会員IDを返す
func MemberID(c echo.Context) (int64, bool) {
	id, ok := c.Get(contextKeyMemberID).(int64)
	return id, ok
}

// Role は認証済みロールを返す
func Role(c echo.Context) string {
	role, _ := c.Get(contextKeyRole).(string)
	return role
}

// SetAuth はコンテキストに認証情報を設定する（ハンドラーのテスト用）
func SetAuth(c echo.Context, memberID int64, role string) {
	c.Set(contextKeyMemberID, memberID)
	c.Set(contextKeyRole, role)
}
