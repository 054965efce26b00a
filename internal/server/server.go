package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"

	"github.com/osfiler/osfiler/internal/config"
	"github.com/osfiler/osfiler/pkg/apperror"
	"github.com/osfiler/osfiler/pkg/auth"
	"github.com/osfiler/osfiler/pkg/logger"
	"github.com/osfiler/osfiler/pkg/metrics"
)

var Module = fx.Module("server",
	fx.Provide(NewEcho),
	fx.Invoke(StartServer),
)

var probePaths = []string{"/health", "/healthz", "/ready", "/metrics"}

// IsProbePath reports whether path belongs to a liveness, readiness or
// scrape endpoint. Those are kept out of request logs and traces.
func IsProbePath(path string) bool {
	return slices.Contains(probePaths, path)
}

// NewEcho builds the application router with the full middleware chain.
func NewEcho(cfg *config.Config, log *slog.Logger) *echo.Echo {
	log = log.With(logger.Scope("http"))

	e := New(log)
	e.Debug = cfg.Debug
	e.HidePort = !cfg.Debug

	e.Use(
		cors(cfg.CORSAllowedOrigins),
		middleware.RequestID(),
		middleware.BodyLimit(cfg.BodyLimit),
		Instrument(),
		requestLogger(log),
		middleware.RecoverWithConfig(middleware.RecoverConfig{
			LogErrorFunc: func(c echo.Context, err error, stack []byte) error {
				log.Error("panic recovered",
					slog.String("path", c.Path()),
					logger.Error(err),
					slog.String("stack", string(stack)))
				return nil
			},
		}),
	)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	return e
}

// New returns a bare Echo instance with the application error handler and
// request validator installed. Handler tests use it directly.
func New(log *slog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = apperror.HTTPErrorHandler(log)
	e.Validator = NewValidator()
	e.Pre(middleware.RemoveTrailingSlash())
	return e
}

func cors(origins []string) echo.MiddlewareFunc {
	conf := middleware.CORSConfig{
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization, auth.DevUserHeader},
	}
	if len(origins) == 0 {
		conf.AllowOriginFunc = func(string) (bool, error) { return true, nil }
	} else {
		conf.AllowOrigins = origins
	}
	return middleware.CORSWithConfig(conf)
}

// Instrument records request latency per route template. Unmatched paths
// share the "unmatched" route label to keep cardinality bounded.
func Instrument() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)

			status := c.Response().Status
			if err != nil {
				var he *echo.HTTPError
				var ae *apperror.Error
				switch {
				case errors.As(err, &ae):
					status = ae.HTTPStatus
				case errors.As(err, &he):
					status = he.Code
				default:
					status = http.StatusInternalServerError
				}
			}

			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequestDuration.
				WithLabelValues(c.Request().Method, route, strconv.Itoa(status)).
				Observe(time.Since(start).Seconds())
			return err
		}
	}
}

func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		Skipper:      func(c echo.Context) bool { return IsProbePath(c.Request().URL.Path) },
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		LogMethod:    true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			attrs := []any{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("request_id", v.RequestID),
			}
			if principal := auth.GetUser(c); principal != nil {
				attrs = append(attrs, slog.String("principal", principal.ID))
			}
			if v.Error != nil {
				log.Error("request failed", append(attrs, logger.Error(v.Error))...)
				return nil
			}
			log.Info("request", attrs...)
			return nil
		},
	})
}

// StartServer binds the HTTP listener on fx start and drains it on stop.
func StartServer(lc fx.Lifecycle, e *echo.Echo, cfg *config.Config, log *slog.Logger) {
	log = log.With(logger.Scope("server"))

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.ServerAddress, cfg.ServerPort),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			log.Info("listening",
				slog.String("address", srv.Addr),
				slog.String("environment", cfg.Environment))
			go func() {
				if err := e.StartServer(srv); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server stopped unexpectedly", logger.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info("draining HTTP server", slog.Duration("timeout", cfg.ShutdownTimeout))
			ctx, cancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
			defer cancel()
			return e.Shutdown(ctx)
		},
	})
}
