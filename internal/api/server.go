package api

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/david/grant-assistant/internal/apperr"
	"github.com/david/grant-assistant/internal/auth"
	"github.com/david/grant-assistant/internal/compliance"
	"github.com/david/grant-assistant/internal/composer"
	"github.com/david/grant-assistant/internal/deadlines"
	"github.com/david/grant-assistant/internal/logger"
	"github.com/david/grant-assistant/internal/matcher"
	"github.com/david/grant-assistant/internal/source"
)

// Deps are the components the server exposes.
type Deps struct {
	Source      source.OpportunitySource
	Matcher     *matcher.Matcher
	Composer    *composer.Composer
	Validator   *compliance.Validator
	Deadlines   *deadlines.Scheduler
	Auth        *auth.Service
	Log         logger.Logger
	CORSOrigins []string
	AdminSecret string
	Now         func() time.Time
}

type Server struct {
	Echo *echo.Echo

	source      source.OpportunitySource
	matcher     *matcher.Matcher
	composer    *composer.Composer
	validator   *compliance.Validator
	deadlines   *deadlines.Scheduler
	auth        *auth.Service
	log         logger.Logger
	adminSecret string
	now         func() time.Time
}

func NewServer(d Deps) (*Server, error) {
	secret, err := adminSecret(d.AdminSecret)
	if err != nil {
		return nil, err
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Log == nil {
		d.Log = logger.NewNoOpLogger()
	}

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = errorHandler(d.Log)
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{Generator: uuid.NewString}))
	e.Use(requestLogger(d.Log))
	e.Use(middleware.Recover())

	origins := d.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:4200"}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, "X-Admin-Secret"},
	}))

	s := &Server{
		Echo:        e,
		source:      d.Source,
		matcher:     d.Matcher,
		composer:    d.Composer,
		validator:   d.Validator,
		deadlines:   d.Deadlines,
		auth:        d.Auth,
		log:         d.Log,
		adminSecret: secret,
		now:         d.Now,
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.Echo.GET("/health", s.handleHealth)
	s.Echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	api := s.Echo.Group("/api/v1")
	api.POST("/auth/token", s.handleToken)

	api.POST("/opportunities/search", s.handleSearch)
	api.GET("/opportunities/:id", s.handleGetOpportunity)

	api.POST("/proposals/compose", s.handleCompose)
	api.POST("/proposals/validate", s.handleValidate)

	api.GET("/deadlines", s.handleListDeadlines)
	api.GET("/deadlines/upcoming", s.handleUpcomingDeadlines)
	api.GET("/deadlines/:id", s.handleGetDeadline)

	api.POST("/deadlines", s.handleAddDeadline, s.auth.Middleware)
	api.DELETE("/deadlines/:id", s.handleRemoveDeadline, s.auth.Middleware)

	api.POST("/admin/notifications/compute", s.handleComputeNotifications, s.adminMiddleware)
}

func (s *Server) Start(port string) error {
	return s.Echo.Start(":" + port)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

type errorBody struct {
	Error   string   `json:"error"`
	Code    string   `json:"code"`
	Missing []string `json:"missing,omitempty"`
}

// errorHandler maps the error taxonomy onto HTTP statuses.
func errorHandler(lg logger.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		status, body := http.StatusInternalServerError, errorBody{Error: "internal error", Code: "INTERNAL"}

		var he *echo.HTTPError
		var ae *apperr.Error
		switch {
		case errors.As(err, &he):
			status = he.Code
			body = errorBody{Error: fmt.Sprint(he.Message), Code: strings.ToUpper(strings.ReplaceAll(http.StatusText(he.Code), " ", "_"))}
		case errors.As(err, &ae):
			body = errorBody{Error: ae.Message, Code: string(ae.Code), Missing: ae.Missing}
			switch ae.Code {
			case apperr.CodeInvalidParameter:
				status = http.StatusBadRequest
			case apperr.CodeNotFound:
				status = http.StatusNotFound
			case apperr.CodeOrderingViolation:
				status = http.StatusConflict
			case apperr.CodePersistence:
				body.Error = "deadline store unavailable"
			}
		}

		if status >= http.StatusInternalServerError {
			lg.WithError(err).Error("request failed", map[string]interface{}{
				"path":       c.Path(),
				"request_id": c.Response().Header().Get(echo.HeaderXRequestID),
			})
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, body)
	}
}

func requestLogger(lg logger.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			lg.Info("request", map[string]interface{}{
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency_ms": v.Latency.Milliseconds(),
				"request_id": v.RequestID,
			})
			return nil
		},
	})
}

func (s *Server) adminMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		given := c.Request().Header.Get("X-Admin-Secret")
		if given != "" && subtle.ConstantTimeCompare([]byte(given), []byte(s.adminSecret)) == 1 {
			return next(c)
		}
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized admin access")
	}
}

// adminSecret falls back to a random secret so the admin routes are never
// open when nothing is configured.
func adminSecret(configured string) (string, error) {
	if secret := strings.TrimSpace(configured); secret != "" {
		return secret, nil
	}
	buf := make([]byte, 48)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate ADMIN_SECRET fallback: %w", err)
	}
	log.Print("ADMIN_SECRET is not set; using ephemeral in-memory fallback secret")
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
