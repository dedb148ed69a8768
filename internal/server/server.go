// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer: it builds every collaborator from the
// config, connects handlers, middleware and routes, and owns the resources
// that must be released on shutdown (database, cache, notification workers,
// session gate subscription).
//
// DEPENDENCY INJECTION FLOW:
//
//	config.Config
//	  → sqlite.DB, cache.Store, auth.TokenService
//	  → session.Gate, notify.Dispatcher, storage.Provider, weather.Client
//	  → services → handlers → routes
//
// This is the "composition root" pattern: all dependencies are wired in one
// place (New/setupRoutes), rather than scattered across the codebase.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/wedding-rsvp/internal/auth"
	"github.com/sakif/wedding-rsvp/internal/cache"
	"github.com/sakif/wedding-rsvp/internal/config"
	"github.com/sakif/wedding-rsvp/internal/handler"
	"github.com/sakif/wedding-rsvp/internal/middleware"
	"github.com/sakif/wedding-rsvp/internal/notify"
	sqliteRepo "github.com/sakif/wedding-rsvp/internal/repository/sqlite"
	"github.com/sakif/wedding-rsvp/internal/service"
	"github.com/sakif/wedding-rsvp/internal/session"
	"github.com/sakif/wedding-rsvp/internal/storage"
	"github.com/sakif/wedding-rsvp/internal/weather"
)

// WeddingTimeZone is where the wedding happens; message timestamps and
// album dates are shown in it.
const WeddingTimeZone = "Africa/Johannesburg"

// Server represents the HTTP server and all its dependencies.
//
// RESOURCE MANAGEMENT:
// The Server owns the database, the cache connection, the notification
// workers and the gate's invalidation subscription. Close releases them in
// reverse order of construction.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger

	db         *sqliteRepo.DB
	store      cache.Store
	gate       *session.Gate
	dispatcher *notify.Dispatcher
	google     *auth.GoogleProvider
	provider   storage.Provider
	weather    service.WeatherSource
	stopWatch  func()
}

// New creates a Server from cfg. cfg is expected to be validated.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	// === CREATE DATABASE ===
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupIntegrations(ctx); err != nil {
		s.Close()
		return nil, err
	}

	if err := s.setupRoutes(); err != nil {
		s.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

// setupIntegrations builds the cache, notification and storage layers.
// Optional integrations left unconfigured degrade to their local fallback:
// in-memory cache, skipped e-mails, no media storage, no weather.
func (s *Server) setupIntegrations(ctx context.Context) error {
	cfg := s.config

	// === CACHE ===
	if cfg.RedisAddr != "" {
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("connecting cache: %w", err)
		}
		s.store = r
	} else {
		s.logger.Info("REDIS_ADDR not set, using in-process cache")
		s.store = cache.NewMemory()
	}

	// === NOTIFICATIONS ===
	// Declared as the interface so "no relay" stays a true nil.
	var relay notify.Relay
	if cfg.NotifyURL != "" {
		relay = notify.NewHTTPRelay(cfg.NotifyURL, cfg.NotifyToken, &http.Client{Timeout: 20 * time.Second})
	} else {
		s.logger.Warn("NOTIFY_URL not set, e-mails will be skipped")
	}
	s.dispatcher = notify.NewDispatcher(relay, notify.Config{Workers: cfg.NotifyWorkers}, s.logger)
	s.dispatcher.Start()

	// === MEDIA STORAGE ===
	switch cfg.StorageProvider {
	case config.StorageDrive:
		s.google = auth.NewGoogleProvider(
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.BaseURL+"/auth/google/callback",
			cfg.GoogleRefreshToken,
		)
		if !s.google.Connected() {
			s.logger.Warn("Google Drive has no refresh token yet; an admin can connect it from the dashboard")
		}
		s.provider = storage.NewDrive(s.google, "")
	case config.StorageS3:
		p, err := storage.NewS3(ctx, cfg.AWSRegion, cfg.S3Bucket)
		if err != nil {
			return fmt.Errorf("configuring s3: %w", err)
		}
		s.provider = p
	default:
		s.logger.Warn("STORAGE_PROVIDER not set, album and uploads are disabled")
	}

	// === WEATHER ===
	if cfg.WeatherAPIKey != "" {
		s.weather = weather.NewClient(cfg.WeatherAPIKey, "", nil, s.store, s.logger)
	}

	return nil
}

// mediaFolders picks the provider folders. Drive needs folder ids from the
// config; S3 falls back to fixed prefixes.
func (s *Server) mediaFolders() service.MediaFolders {
	f := service.MediaFolders{
		Photos:   s.config.DrivePhotosFolder,
		Videos:   s.config.DriveVideosFolder,
		Messages: s.config.DriveMessagesFolder,
	}
	if s.config.StorageProvider == config.StorageS3 {
		f.Photos = orDefault(f.Photos, "photos")
		f.Videos = orDefault(f.Videos, "videos")
		f.Messages = orDefault(f.Messages, "messages")
	}
	return f
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET    /static/*                      → Static files
// GET    /login, /signup, ...           → Public page shells
// GET    /, /rsvp, /album, ...          → Page shells, session required
// GET    /dashboard                     → Page shell, elevated only
// GET    /auth/google/login|callback    → Drive connection, elevated only
// *      /api/auth/*                    → Accounts
// *      /api/rsvp                      → Own RSVP + on-behalf batch
// *      /api/admin/*                   → Dashboard API, elevated only
// *      /api/messages, /api/album, /api/media, /api/venue, /api/notifications
// anything else                         → Login page
//
// MIDDLEWARE ORDER MATTERS:
// 1. RequestID: assigns the id the logger prints
// 2. RealIP: extracts the client IP from proxy headers
// 3. Logger: logs each request with timing info
// 4. Recoverer: catches panics and returns 500 instead of crashing
// 5. CORS: answers preflights before any route runs
func (s *Server) setupRoutes() error {
	loc, err := time.LoadLocation(WeddingTimeZone)
	if err != nil {
		return fmt.Errorf("loading time zone: %w", err)
	}

	tokens, err := auth.NewTokenService(s.config.JWTSecret, s.config.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	// === SESSION GATE ===
	s.gate = session.NewGate(tokens, s.db, s.store, s.logger)
	s.stopWatch = s.gate.Subscribe(func(userID string) {
		s.logger.Debug("session invalidated", slog.String("userID", userID))
	})

	// === SERVICES ===
	accounts := service.NewAuthService(s.db, tokens, auth.NewPasswordService(), s.gate, s.dispatcher,
		service.AuthOptions{
			BaseURL:          s.config.BaseURL,
			IsSuperuserEmail: s.config.IsSuperuserEmail,
		}, s.logger)
	rsvps := service.NewRSVPService(s.db, s.dispatcher, s.logger)
	dashboard := service.NewDashboardService(s.db)
	messages := service.NewMessageService(s.db, loc, s.logger)
	media := service.NewMediaService(s.provider, s.mediaFolders(), loc, s.logger)
	venue := service.NewVenueService(rsvps, s.weather, s.config.WeddingDate, s.logger)

	// === HANDLERS ===
	// Declared as the interface so a missing provider stays a true nil.
	var drive handler.DriveAuthorizer
	if s.google != nil {
		drive = s.google
	}
	authHandler := handler.NewAuthHandler(accounts, drive, handler.CookieOptions{
		TTL:    tokens.SessionTTL(),
		Secure: s.config.CookieSecure,
	}, s.logger)
	rsvpHandler := handler.NewRSVPHandler(rsvps, s.logger)
	adminHandler := handler.NewAdminHandler(dashboard, rsvps, accounts, s.logger)
	messageHandler := handler.NewMessageHandler(messages, media, s.logger)
	mediaHandler := handler.NewMediaHandler(media, s.logger)
	venueHandler := handler.NewVenueHandler(venue, s.logger)
	notificationHandler := handler.NewNotificationHandler(s.dispatcher)
	pages, err := handler.NewPageHandler(s.config.TemplateDir, s.logger)
	if err != nil {
		return fmt.Errorf("creating page handler: %w", err)
	}

	// === Global Middleware ===
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.CORS(s.config.CORSAllowedOrigins))

	// === Static Files ===
	fileServer := http.FileServer(http.Dir(s.config.StaticDir))
	s.router.Handle("/static/*", http.StripPrefix("/static/", fileServer))

	// === Page Routes ===
	s.router.Group(func(r chi.Router) {
		r.Use(s.gate.Page(session.Public))
		r.Get("/login", pages.Render(handler.PageLogin))
		r.Get("/signup", pages.Render(handler.PageSignUp))
		r.Get("/request-reset", pages.Render(handler.PageRequestReset))
		r.Get("/reset-password", pages.Render(handler.PageResetPassword))
	})
	s.router.Group(func(r chi.Router) {
		r.Use(s.gate.Page(session.Authenticated))
		r.Get("/", pages.Render(handler.PageHome))
		r.Get("/rsvp", pages.Render(handler.PageRSVP))
		r.Get("/view-rsvp", pages.Render(handler.PageViewRSVP))
		r.Get("/upload", pages.Render(handler.PageUpload))
		r.Get("/album", pages.Render(handler.PageAlbum))
		r.Get("/venue", pages.Render(handler.PageVenue))
		r.Get("/leave-a-message", pages.Render(handler.PageLeaveMessage))
		r.Get("/message-wall", pages.Render(handler.PageMessageWall))
	})
	s.router.Group(func(r chi.Router) {
		r.Use(s.gate.Page(session.Elevated))
		r.Get("/dashboard", pages.Render(handler.PageDashboard))
		r.Get("/auth/google/login", authHandler.HandleDriveLogin)
		r.Get("/auth/google/callback", authHandler.HandleDriveCallback)
	})
	s.router.NotFound(pages.HandleNotFound)

	// === API Routes ===
	s.router.Route("/api", func(r chi.Router) {
		// API paths answer in JSON even when unmatched.
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"error":"not_found","message":"no such endpoint"}`)
		})

		// Public
		r.Post("/auth/signup", authHandler.HandleSignUp)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/auth/reset-request", authHandler.HandleResetRequest)
		r.Post("/auth/reset", authHandler.HandleReset)
		r.With(s.gate.Page(session.Public)).Post("/auth/logout", authHandler.HandleLogout)

		// Session required
		r.Group(func(r chi.Router) {
			r.Use(s.gate.RequireSession)

			r.Get("/auth/me", authHandler.HandleMe)
			r.Post("/auth/password", authHandler.HandleChangePassword)

			r.Post("/rsvp", rsvpHandler.HandleSubmit)
			r.Get("/rsvp", rsvpHandler.HandleGetMine)
			r.Patch("/rsvp", rsvpHandler.HandleUpdateMine)
			r.Post("/rsvp/on-behalf", rsvpHandler.HandleSubmitOnBehalf)

			r.Post("/messages", messageHandler.HandleCompose)
			r.Post("/messages/media", messageHandler.HandleUploadMedia)
			r.Get("/messages", messageHandler.HandleWall)

			r.Get("/album", mediaHandler.HandleAlbum)
			r.Get("/album/lightbox", mediaHandler.HandleLightbox)
			r.Post("/media", mediaHandler.HandleUpload)

			r.Get("/venue", venueHandler.HandleVenue)
			r.Get("/venue/countdown", venueHandler.HandleCountdown)

			r.Get("/notifications/{id}", notificationHandler.HandleStatus)
		})

		// Elevated privilege required
		r.Route("/admin", func(r chi.Router) {
			r.Use(s.gate.RequireSuperuser)

			r.Get("/rsvps", adminHandler.HandleList)
			r.Get("/rsvps/export.csv", adminHandler.HandleExport)
			r.Patch("/rsvps/{id}", adminHandler.HandleUpdate)
			r.Delete("/rsvps/{id}", adminHandler.HandleDelete)
			r.Put("/users/{id}/superuser", adminHandler.HandleSetSuperuser)
		})
	})

	return nil
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server and handles graceful shutdown.
//
// GRACEFUL SHUTDOWN:
//  1. Stop accepting new HTTP connections
//  2. Wait for in-flight requests to finish (30s timeout)
//  3. Drain the notification queue, then close the gate, cache and database
func (s *Server) Start() error {
	defer s.Close()

	// Uploads need a long read timeout. The countdown stream lifts its own
	// write deadline.
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("url", s.config.BaseURL),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Close releases everything New acquired. Safe to call on a partially built
// server.
func (s *Server) Close() {
	if s.dispatcher != nil {
		s.dispatcher.Stop()
	}
	if s.stopWatch != nil {
		s.stopWatch()
	}
	if s.gate != nil {
		s.gate.Close()
	}
	if s.store != nil {
		closeQuietly(s.logger, "cache", s.store)
	}
	if s.db != nil {
		closeQuietly(s.logger, "database", s.db)
	}
}

func closeQuietly(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Warn("closing "+name, slog.String("error", err.Error()))
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
