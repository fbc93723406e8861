package middleware

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	appcontext "github.com/Rowan-T/clover/pkg/context"
)

const (
	// HeaderUserID is the header key for the acting user ID
	HeaderUserID = "X-User-ID"
)

// Context seeds the request context with request, subject, and user
// identifiers. The subject id comes from the route param when present.
func Context() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			req := c.Request()

			requestID := req.Header.Get(echo.HeaderXRequestID)
			if requestID == "" {
				requestID = uuid.New().String()
			}

			userID := req.Header.Get(HeaderUserID)

			ctx := req.Context()
			ctx = appcontext.SetRequestID(ctx, requestID)
			ctx = appcontext.SetMethod(ctx, req.Method)
			ctx = appcontext.SetRoute(ctx, req.URL.Path)
			ctx = appcontext.SetRemoteIP(ctx, c.RealIP())
			ctx = appcontext.SetUserID(ctx, userID)
			if subjectID := c.Param("subjectId"); subjectID != "" {
				ctx = appcontext.SetSubjectID(ctx, subjectID)
			}

			c.SetRequest(req.WithContext(ctx))

			return next(c)
		}
	}
}
