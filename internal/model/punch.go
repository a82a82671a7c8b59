package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Comment is a note attached to a punch
type Comment struct {
	Comment   string    `json:"comment"`
	Timestamp time.Time `json:"timestamp"`
}

// Punch is one tracked session on a project
type Punch struct {
	ID       string     `json:"id"`
	Project  string     `json:"project"`
	In       time.Time  `json:"in"`
	Out      *time.Time `json:"out"`
	Rewind   int64      `json:"rewind"` // milliseconds subtracted from the session
	Rate     float64    `json:"rate,omitempty"`
	Comments []Comment  `json:"comments"`
	Created  int64      `json:"created"`
	Updated  int64      `json:"updated"`
}

// NewPunch starts a punch on project at the given time
func NewPunch(project string, in time.Time) Punch {
	ms := in.UnixMilli()
	return Punch{
		ID:       uuid.NewString(),
		Project:  project,
		In:       in,
		Comments: []Comment{},
		Created:  ms,
		Updated:  ms,
	}
}

// Active returns true if the punch has not been punched out
func (p *Punch) Active() bool {
	return p.Out == nil
}

// PunchOut closes the punch at the given time
func (p *Punch) PunchOut(at time.Time) {
	out := at
	p.Out = &out
}

// AddComment appends a comment, ignoring blank ones
func (p *Punch) AddComment(text string, at time.Time) {
	if text == "" {
		return
	}
	p.Comments = append(p.Comments, Comment{Comment: text, Timestamp: at})
}

// ErrNoComment is returned when a comment index is out of range
var ErrNoComment = errors.New("no such comment")

// EditComment replaces the text of comment i (zero based). A non-nil at
// also moves the comment's timestamp.
func (p *Punch) EditComment(i int, text string, at *time.Time) error {
	if i < 0 || i >= len(p.Comments) {
		return fmt.Errorf("%w: %d (punch has %d)", ErrNoComment, i+1, len(p.Comments))
	}
	p.Comments[i].Comment = text
	if at != nil {
		p.Comments[i].Timestamp = *at
	}
	return nil
}

// Duration returns the worked time. Active punches are measured up to now.
func (p *Punch) Duration(now time.Time) time.Duration {
	end := now
	if p.Out != nil {
		end = *p.Out
	}
	d := end.Sub(p.In) - time.Duration(p.Rewind)*time.Millisecond
	if d < 0 {
		return 0
	}
	return d
}

// Pay returns the amount earned at the given hourly rate
func (p *Punch) Pay(rate float64, now time.Time) float64 {
	return p.Duration(now).Hours() * rate
}

// Touch bumps the last-modified stamp. Every local write goes through here.
// The stamp only moves forward, even when the local clock is behind the
// machine that wrote the previous version.
func (p *Punch) Touch(now time.Time) {
	p.Updated = max(now.UnixMilli(), p.Updated+1)
}
