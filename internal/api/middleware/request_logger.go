package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/sanosuguru/go-cinema-ticket-reservation/internal/pkg/logger"
)

// RequestLogger はリクエストの構造化ログを出力するミドルウェア
// request_id 付きのロガーをリクエストのコンテキストに載せる
func RequestLogger() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			req := c.Request()
			res := c.Response()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = res.Header().Get(echo.HeaderXRequestID)
			}

			reqLogger := logger.Get().With(zap.String("request_id", requestID))
			c.SetRequest(req.WithContext(logger.WithContext(req.Context(), reqLogger)))

			err := next(c)
			if err != nil {
				// ステータスを確定させるためエラーハンドラーを先に通す
				c.Error(err)
			}

			fields := []zap.Field{
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
				zap.String("query", req.URL.RawQuery),
				zap.Int("status", res.Status),
				zap.Int64("size", res.Size),
				zap.Duration("latency", time.Since(start)),
				zap.String("remote_ip", c.RealIP()),
				zap.String("user_agent", req.UserAgent()),
			}

			switch {
			case err != nil && res.Status >= 500:
				reqLogger.Error("request failed", append(fields, zap.Error(err))...)
			case res.Status >= 500:
				reqLogger.Error("server error", fields...)
			case res.Status >= 400:
				reqLogger.Warn("client error", fields...)
			default:
				reqLogger.Info("request completed", fields...)
			}

			return nil
		}
	}
}

// RequestIDMiddleware はリクエストIDを生成・付与するミドルウェア
func RequestIDMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = generateRequestID()
				req.Header.Set(echo.HeaderXRequestID, requestID)
			}
			c.Response().Header().Set(echo.HeaderXRequestID, requestID)

			return next(c)
		}
	}
}

func generateRequestID() string {
	return uuid.NewString()
}
