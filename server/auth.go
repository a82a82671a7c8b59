package server

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/existflow/punch/internal/api"
	"github.com/existflow/punch/internal/logger"
	"github.com/existflow/punch/internal/model"
)

const minPasswordLength = 8

// handleRegister handles user registration
func (s *Server) handleRegister(c echo.Context) error {
	var req api.Credentials
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request")
	}

	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	// Validate
	if req.Username == "" || req.Email == "" || req.Password == "" {
		return errorJSON(c, http.StatusBadRequest, "username, email, and password required")
	}
	if len(req.Password) < minPasswordLength {
		return errorJSON(c, http.StatusBadRequest, "password must be at least 8 characters")
	}

	// Hash password
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("bcrypt error", logger.F("error", err))
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}

	ctx := c.Request().Context()
	user, err := s.store.CreateUser(ctx, req.Username, req.Email, string(hash))
	if errors.Is(err, ErrConflict) {
		return errorJSON(c, http.StatusConflict, "username or email already exists")
	}
	if err != nil {
		logger.Error("Failed to create user", logger.F("error", err))
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}

	session, err := s.createSession(c, user.ID)
	if err != nil {
		logger.Error("Failed to create session", logger.F("error", err))
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}

	logger.Info("User registered", logger.F("username", user.Username))
	return c.JSON(http.StatusOK, session)
}

// handleLogin handles user login
func (s *Server) handleLogin(c echo.Context) error {
	var req api.Credentials
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request")
	}

	user, err := s.store.UserByUsername(c.Request().Context(), strings.TrimSpace(req.Username))
	if err != nil {
		return errorJSON(c, http.StatusUnauthorized, "invalid credentials")
	}

	// Check password
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return errorJSON(c, http.StatusUnauthorized, "invalid credentials")
	}

	session, err := s.createSession(c, user.ID)
	if err != nil {
		logger.Error("Failed to create session", logger.F("error", err))
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}

	logger.Info("User logged in", logger.F("username", user.Username))
	return c.JSON(http.StatusOK, session)
}

// handleMe returns current user info
func (s *Server) handleMe(c echo.Context) error {
	userID := c.Get("user_id").(string)

	user, err := s.store.UserByID(c.Request().Context(), userID)
	if err != nil {
		return errorJSON(c, http.StatusNotFound, "user not found")
	}

	return c.JSON(http.StatusOK, api.Me{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
	})
}

// handleLogout revokes the token used for the request
func (s *Server) handleLogout(c echo.Context) error {
	token := c.Get("token").(string)
	if err := s.store.DeleteSession(c.Request().Context(), token); err != nil {
		logger.Error("Failed to delete session", logger.F("error", err))
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "logged out"})
}

// createSession creates a new session for a user
func (s *Server) createSession(c echo.Context, userID string) (api.Session, error) {
	// Generate token
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return api.Session{}, err
	}

	now := s.now()
	session := model.Session{
		UserID:    userID,
		Token:     hex.EncodeToString(tokenBytes),
		ExpiresAt: now.Add(sessionTTL),
		CreatedAt: now,
	}
	if err := s.store.CreateSession(c.Request().Context(), session); err != nil {
		return api.Session{}, err
	}

	return api.Session{Token: session.Token, ExpiresAt: session.ExpiresAt, UserID: userID}, nil
}
