package server

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/shinyyama/rental-backend/internal/auth"
	"github.com/shinyyama/rental-backend/internal/handler"
	appmw "github.com/shinyyama/rental-backend/internal/middleware"
	"github.com/shinyyama/rental-backend/internal/realtime"
	"github.com/shinyyama/rental-backend/internal/reqctx"
	"github.com/shinyyama/rental-backend/internal/service"
)

type Deps struct {
	Conversations  service.ConversationService
	Messages       service.MessageService
	Hub            *realtime.Hub
	Verifier       auth.Verifier
	AllowedOrigins []string
	Logger         *slog.Logger
	SHA            string
	BuildTime      string
}

type Server struct {
	e   *echo.Echo
	log *slog.Logger
}

func New(deps Deps) *Server {
	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}
	allowOrigin := originMatcher(deps.AllowedOrigins)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = handler.NewRequestValidator()
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		RequestIDHandler: func(c echo.Context, rid string) {
			c.SetRequest(c.Request().WithContext(reqctx.WithRID(c.Request().Context(), rid)))
		},
	}))
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"rid", v.RequestID,
			}
			if v.Error != nil {
				log.Error("request", append(attrs, "error", v.Error)...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	}))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:     []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		AllowOriginFunc: func(origin string) (bool, error) {
			return allowOrigin(origin), nil
		},
	}))

	convHandler := handler.NewConversationHandler(deps.Conversations, deps.Messages, log)
	userHandler := handler.NewUserHandler(deps.Hub, log)
	wsHandler := handler.NewWSHandler(deps.Hub, deps.Messages, func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		// non-browser clients send no Origin
		return origin == "" || allowOrigin(origin)
	}, log)
	authMw := appmw.NewAuthMiddleware(deps.Verifier)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"ok":         "true",
			"git_sha":    deps.SHA,
			"build_time": deps.BuildTime,
		})
	})
	e.GET("/ws", wsHandler.Serve, authMw.RequireAuth)

	api := e.Group("/api", authMw.RequireAuth)
	api.POST("/listings/:id/conversations", convHandler.Resolve)
	api.GET("/conversations", convHandler.List)
	api.GET("/conversations/:id", convHandler.Get)
	api.GET("/conversations/:id/messages", convHandler.ListMessages)
	api.POST("/conversations/:id/messages", convHandler.CreateMessage)
	api.GET("/users/:uid/presence", userHandler.GetPresence)

	return &Server{e: e, log: log}
}

func (s *Server) Start(addr string) error {
	s.log.Info("starting server", "addr", addr)
	return s.e.Start(addr)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.e.Shutdown(ctx)
}

func (s *Server) Handler() http.Handler {
	return s.e
}

// originMatcher accepts localhost during development plus the configured
// origins. An entry like "*.example.com" matches any subdomain.
func originMatcher(allowed []string) func(string) bool {
	return func(origin string) bool {
		low := strings.ToLower(origin)
		if strings.HasPrefix(low, "http://localhost:") || strings.HasPrefix(low, "http://127.0.0.1:") ||
			strings.HasPrefix(low, "https://localhost:") || strings.HasPrefix(low, "https://127.0.0.1:") {
			return true
		}
		u, err := url.Parse(low)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return false
		}
		host := u.Hostname()
		for _, a := range allowed {
			a = strings.ToLower(strings.TrimSpace(a))
			if suffix, ok := strings.CutPrefix(a, "*."); ok {
				if strings.HasSuffix(host, "."+suffix) {
					return true
				}
				continue
			}
			if a == low {
				return true
			}
		}
		return false
	}
}
