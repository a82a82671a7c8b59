package server

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/existflow/punch/internal/api"
	"github.com/existflow/punch/internal/logger"
	"github.com/existflow/punch/internal/record"
)

// maxBatch bounds the punches handled by one upload or fetch.
const maxBatch = 5000

// handleManifest returns id → updated for every punch of the user
func (s *Server) handleManifest(c echo.Context) error {
	userID := c.Get("user_id").(string)

	manifest, err := s.store.Manifest(c.Request().Context(), userID)
	if err != nil {
		logger.Error("Failed to load manifest", logger.F("user", userID), logger.F("error", err))
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, api.ManifestResponse{Manifest: manifest})
}

// handleUpload stores punches and answers with their canonical stamps
func (s *Server) handleUpload(c echo.Context) error {
	userID := c.Get("user_id").(string)

	var req api.UploadRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request")
	}
	if len(req.Punches) > maxBatch {
		return errorJSON(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d punches per request", maxBatch))
	}

	resp := api.UploadResponse{Accepted: []api.Accepted{}, Failed: []api.Rejected{}}
	ctx := c.Request().Context()
	for _, p := range req.Punches {
		if err := validatePunch(p); err != nil {
			resp.Failed = append(resp.Failed, api.Rejected{ID: p.ID, Error: err.Error()})
			continue
		}

		canonical, err := s.store.SavePunch(ctx, userID, p.ID, p.Updated, p.Data)
		if err != nil {
			logger.Error("Failed to save punch", logger.F("user", userID), logger.F("id", p.ID), logger.F("error", err))
			resp.Failed = append(resp.Failed, api.Rejected{ID: p.ID, Error: "could not store punch"})
			continue
		}
		resp.Accepted = append(resp.Accepted, api.Accepted{ID: p.ID, Updated: canonical})
	}

	logger.Info("Punches uploaded",
		logger.F("user", userID),
		logger.F("accepted", len(resp.Accepted)),
		logger.F("failed", len(resp.Failed)))
	return c.JSON(http.StatusOK, resp)
}

func validatePunch(p api.Punch) error {
	if p.ID == "" {
		return fmt.Errorf("missing id")
	}
	rec, err := record.Parse(p.Data)
	if err != nil {
		return err
	}
	if rec.ID != p.ID {
		return fmt.Errorf("document id %q does not match %q", rec.ID, p.ID)
	}
	return nil
}

// handleFetch returns full punches by id
func (s *Server) handleFetch(c echo.Context) error {
	userID := c.Get("user_id").(string)

	var req api.FetchRequest
	if err := c.Bind(&req); err != nil {
		return errorJSON(c, http.StatusBadRequest, "invalid request")
	}
	if len(req.IDs) > maxBatch {
		return errorJSON(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("at most %d punches per request", maxBatch))
	}

	stored, err := s.store.Punches(c.Request().Context(), userID, req.IDs)
	if err != nil {
		logger.Error("Failed to load punches", logger.F("user", userID), logger.F("error", err))
		return errorJSON(c, http.StatusInternalServerError, "internal error")
	}

	resp := api.FetchResponse{Punches: make([]api.Punch, 0, len(stored)), Missing: []string{}}
	found := make(map[string]bool, len(stored))
	for _, p := range stored {
		found[p.ID] = true
		resp.Punches = append(resp.Punches, api.Punch{ID: p.ID, Updated: p.Updated, Data: p.Data})
	}
	for _, id := range req.IDs {
		if !found[id] {
			resp.Missing = append(resp.Missing, id)
		}
	}

	return c.JSON(http.StatusOK, resp)
}
