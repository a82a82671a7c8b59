package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/existflow/punch/internal/logger"
	"github.com/existflow/punch/internal/model"
	"github.com/existflow/punch/internal/record"
)

// SavePunch bumps the punch's updated stamp and writes it.
func (s *Store) SavePunch(ctx context.Context, p *model.Punch) error {
	p.Touch(s.now())

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal punch: %w", err)
	}
	return s.Write(ctx, record.Record{ID: p.ID, Updated: p.Updated, Data: data})
}

// LoadPunch reads one punch.
func (s *Store) LoadPunch(ctx context.Context, id string) (model.Punch, error) {
	rec, err := s.Read(ctx, id)
	if err != nil {
		return model.Punch{}, err
	}
	return decode(rec)
}

func decode(rec record.Record) (model.Punch, error) {
	var p model.Punch
	if err := json.Unmarshal(rec.Data, &p); err != nil {
		return model.Punch{}, fmt.Errorf("%w: %s: %v", ErrCorrupt, rec.ID, err)
	}
	return p, nil
}

// Punches returns every readable punch ordered by punch-in time.
// Corrupt files are logged and skipped.
func (s *Store) Punches(ctx context.Context) ([]model.Punch, error) {
	records, err := s.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	punches := make([]model.Punch, 0, len(records))
	for _, rec := range records {
		if !rec.Readable() {
			logger.Warn("Skipping unreadable punch", logger.F("id", rec.ID), logger.F("error", rec.Err))
			continue
		}
		p, err := decode(rec)
		if err != nil {
			logger.Warn("Skipping unreadable punch", logger.F("id", rec.ID), logger.F("error", err))
			continue
		}
		punches = append(punches, p)
	}

	sort.SliceStable(punches, func(i, j int) bool {
		return punches[i].In.Before(punches[j].In)
	})
	return punches, nil
}

// Between returns punches that overlap [from, to).
func (s *Store) Between(ctx context.Context, from, to time.Time) ([]model.Punch, error) {
	all, err := s.Punches(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Punch
	for _, p := range all {
		end := to
		if p.Out != nil {
			end = *p.Out
		}
		if p.In.Before(to) && end.After(from) {
			out = append(out, p)
		}
	}
	return out, nil
}

// Current returns the most recent active punch, or nil.
func (s *Store) Current(ctx context.Context) (*model.Punch, error) {
	punches, err := s.Punches(ctx)
	if err != nil {
		return nil, err
	}
	for i := len(punches) - 1; i >= 0; i-- {
		if punches[i].Active() {
			return &punches[i], nil
		}
	}
	return nil, nil
}

// MostRecent returns the punch with the latest punch-in time, or nil.
func (s *Store) MostRecent(ctx context.Context) (*model.Punch, error) {
	punches, err := s.Punches(ctx)
	if err != nil {
		return nil, err
	}
	if len(punches) == 0 {
		return nil, nil
	}
	return &punches[len(punches)-1], nil
}

// ErrAmbiguousID is returned when an id prefix matches several punches.
var ErrAmbiguousID = errors.New("punch id prefix is ambiguous")

// Find returns the punch whose id is id or starts with it, so the short
// ids printed by list can be used.
func (s *Store) Find(ctx context.Context, id string) (model.Punch, error) {
	if p, err := s.LoadPunch(ctx, id); err == nil || !errors.Is(err, ErrNotFound) {
		return p, err
	}

	all, err := s.Punches(ctx)
	if err != nil {
		return model.Punch{}, err
	}
	var matches []model.Punch
	for _, p := range all {
		if strings.HasPrefix(p.ID, id) {
			matches = append(matches, p)
		}
	}
	switch len(matches) {
	case 0:
		return model.Punch{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	case 1:
		return matches[0], nil
	}
	return model.Punch{}, fmt.Errorf("%w: %s matches %d punches", ErrAmbiguousID, id, len(matches))
}

// ByProject returns every punch on a project.
func (s *Store) ByProject(ctx context.Context, project string) ([]model.Punch, error) {
	all, err := s.Punches(ctx)
	if err != nil {
		return nil, err
	}
	var out []model.Punch
	for _, p := range all {
		if p.Project == project {
			out = append(out, p)
		}
	}
	return out, nil
}

// Purge deletes the given punches and returns how many were removed.
func (s *Store) Purge(ctx context.Context, punches []model.Punch) (int, error) {
	removed := 0
	for _, p := range punches {
		if err := s.Delete(ctx, p.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
