package web

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"videoflix.systems/videoflix/cmd/web/auth"
	authhandlers "videoflix.systems/videoflix/cmd/web/handlers/auth"
	"videoflix.systems/videoflix/cmd/web/handlers/api/fileserver"
	"videoflix.systems/videoflix/cmd/web/handlers/api/video_api"
	"videoflix.systems/videoflix/internal/config"
	"videoflix.systems/videoflix/internal/db"
	"videoflix.systems/videoflix/internal/mailer"
	"videoflix.systems/videoflix/internal/media"
)

// revokedSessionPurgeInterval is how often expired revocation rows are
// deleted. Rows outlive their cookie, so the interval only bounds table size.
const revokedSessionPurgeInterval = time.Hour

type Webserver struct {
	*echo.Echo
	conf           config.Config
	sessionManager *auth.SessionManager
	dbc            *db.DatabaseConnection
	sessions       SessionChecker
	catalog        video_api.Catalog
	library        *media.Library
	layout         media.Layout
	fileServer     *fileserver.FileServer
	mailer         mailer.Mailer
	authLimiter    *ipRateLimiter
}

func NewWebserver(ctx context.Context, conf config.Config, dbc *db.DatabaseConnection, sessionManager *auth.SessionManager, cat video_api.Catalog, m mailer.Mailer) (*Webserver, error) {
	layout := media.Layout{Root: conf.MediaRoot}

	webserver := &Webserver{
		Echo:           echo.New(),
		conf:           conf,
		sessionManager: sessionManager,
		dbc:            dbc,
		catalog:        cat,
		library:        media.NewLibrary(layout),
		layout:         layout,
		fileServer:     fileserver.NewFileServer(),
		mailer:         m,
		authLimiter:    newIPRateLimiter(conf.AuthRateLimitRPS, conf.AuthRateLimitBurst),
	}
	if dbc != nil {
		webserver.sessions = dbc.Queries(ctx)
	}

	if err := webserver.setupMiddleware(); err != nil {
		return nil, err
	}
	webserver.registerRoutes()

	go webserver.housekeeping(ctx)

	return webserver, nil
}

func (s *Webserver) setupMiddleware() error {
	maxUpload, err := s.conf.MaxUploadBytes()
	if err != nil {
		return err
	}

	s.HideBanner = true
	s.HidePort = true
	s.Use(middleware.BodyLimit(fmt.Sprintf("%dB", maxUpload)))
	s.Use(middleware.Recover())
	s.Use(middleware.RequestID())
	s.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{strings.TrimRight(s.conf.FrontendBaseURL, "/")},
		AllowMethods:     []string{http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowHeaders:     []string{echo.HeaderContentType, "Range", "If-None-Match"},
		ExposeHeaders:    []string{echo.HeaderContentLength, "Content-Range", "ETag"},
		AllowCredentials: true,
		MaxAge:           600,
	}))
	s.Use(metricsMiddleware)
	s.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:       true,
		LogMethod:    true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  false,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []any{
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency", v.Latency,
				"remote_ip", v.RemoteIP,
				"request_id", v.RequestID,
			}
			if v.Error != nil {
				fields = append(fields, "error", v.Error)
			}
			slog.Log(c.Request().Context(), requestLogLevel(c.Path(), v.Status), "request", fields...)
			return nil
		},
	}))

	return nil
}

func (s *Webserver) registerRoutes() {
	s.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	s.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	apiGroup := s.Group("/api")

	throttled := s.authLimiter.middleware
	apiGroup.POST("/register/", authhandlers.HandleRegister(s.dbc, s.mailer, s.conf.FrontendBaseURL), throttled)
	apiGroup.GET("/activate/:uidb64/:token/", authhandlers.HandleActivate(s.dbc))
	apiGroup.POST("/login/", authhandlers.HandleLogin(s.sessionManager, s.dbc), throttled)
	apiGroup.POST("/logout/", authhandlers.HandleLogout(s.sessionManager, s.dbc))
	apiGroup.POST("/token/refresh/", authhandlers.HandleRefresh(s.sessionManager, s.dbc))

	signedIn := s.requireAccess(auth.AccessUser)
	admin := s.requireAccess(auth.AccessAdmin)

	apiGroup.GET("/video/", video_api.HandleIndex(s.catalog), signedIn)
	apiGroup.POST("/video/", video_api.HandleCreate(s.catalog, s.layout), admin)
	apiGroup.GET("/video/:id", video_api.HandleGet(s.catalog), signedIn)
	apiGroup.PATCH("/video/:id", video_api.HandleUpdate(s.catalog), admin)
	apiGroup.GET("/video/:id/conversion", video_api.HandleConversion(s.catalog), signedIn)
	apiGroup.POST("/video/:id/conversion/retry", video_api.HandleConversionRetry(s.catalog), admin)

	// Streaming is public: playlists and segments carry no user data.
	apiGroup.GET("/video/:id/master.m3u8", video_api.HandleMasterPlaylist(s.library, s.fileServer))
	apiGroup.GET("/video/:id/:resolution/index.m3u8", video_api.HandlePlaylist(s.library, s.fileServer))
	apiGroup.GET("/video/:id/:resolution/:segment", video_api.HandleSegment(s.library, s.fileServer))

	s.GET("/media/thumbnails/:file", video_api.HandleThumbnail(s.library, s.fileServer))
}

// housekeeping purges expired revocation rows and idle rate limiter entries
// until ctx is done.
func (s *Webserver) housekeeping(ctx context.Context) {
	ticker := time.NewTicker(revokedSessionPurgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		s.authLimiter.evictIdle(revokedSessionPurgeInterval)
		if s.dbc == nil {
			continue
		}
		n, err := s.dbc.Queries(ctx).PurgeExpiredRevokedSessions(ctx)
		if err != nil {
			slog.Warn("failed to purge revoked sessions", "error", err)
			continue
		}
		if n > 0 {
			slog.Info("Purged expired revoked sessions", "count", n)
		}
	}
}
