// Package server is punch-server, a self-hostable remote that stores
// punches per user account.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/existflow/punch/internal/api"
	"github.com/existflow/punch/internal/logger"
)

// sessionTTL is how long a login token stays valid.
const sessionTTL = 30 * 24 * time.Hour

// Server is the sync server
type Server struct {
	store Store
	echo  *echo.Echo
	now   func() time.Time
}

// New creates a server backed by PostgreSQL at dbURL.
func New(dbURL string) (*Server, error) {
	store, err := OpenPostgres(dbURL)
	if err != nil {
		return nil, err
	}
	return NewWithStore(store), nil
}

// NewWithStore creates a server on an existing store.
func NewWithStore(store Store) *Server {
	s := &Server{store: store, now: time.Now}
	s.setupEcho()
	return s
}

func (s *Server) setupEcho() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Request logging
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)

			res := c.Response()
			logger.Info("HTTP Request",
				logger.F("method", req.Method),
				logger.F("uri", req.RequestURI),
				logger.F("remote", req.RemoteAddr),
				logger.F("status", res.Status),
				logger.F("size", res.Size),
				logger.F("duration", time.Since(start).String()))

			return err
		}
	})

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.BodyLimit("10M"))

	// Health check
	e.GET("/health", s.handleHealth)

	// API v1
	v1 := e.Group(api.Prefix)

	// Auth endpoints (public)
	v1.POST("/register", s.handleRegister)
	v1.POST("/login", s.handleLogin)

	// Protected endpoints
	protected := v1.Group("")
	protected.Use(s.authMiddleware)
	protected.GET("/me", s.handleMe)
	protected.POST("/logout", s.handleLogout)
	protected.GET("/manifest", s.handleManifest)
	protected.POST("/punches", s.handleUpload)
	protected.POST("/punches/fetch", s.handleFetch)

	s.echo = e
}

// Close closes the store
func (s *Server) Close() error {
	return s.store.Close()
}

// Router returns the HTTP handler
func (s *Server) Router() http.Handler {
	return s.echo
}

// Start starts the server
func (s *Server) Start(addr string) error {
	return s.echo.Start(addr)
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func errorJSON(c echo.Context, status int, msg string) error {
	return c.JSON(status, map[string]string{"error": msg})
}
