// Package sync reconciles the local punch store with remotes. A pass fetches
// the remote manifest, diffs it against local records, uploads what is newer
// locally, downloads what is newer remotely and finally stamps uploaded
// records with the timestamp the remote accepted.
package sync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"

	"github.com/existflow/punch/internal/logger"
	"github.com/existflow/punch/internal/record"
)

// Remote is anything that can hold punches.
type Remote interface {
	// Manifest returns every id the remote holds with its last synced stamp.
	// A remote that has never been written to returns an empty manifest.
	Manifest(ctx context.Context) (record.Manifest, error)
	// Upload stores records and returns the canonical stamp of each one it
	// accepted. Per-record problems go in the result, not the error.
	Upload(ctx context.Context, records []record.Record) (record.UploadResult, error)
	// Download fetches full records by id.
	Download(ctx context.Context, ids []string) (record.DownloadResult, error)
}

// Store is the local side of a pass.
type Store interface {
	ListAll(ctx context.Context) ([]record.Record, error)
	Read(ctx context.Context, id string) (record.Record, error)
	Write(ctx context.Context, rec record.Record) error
}

// State is the position of a pass in its lifecycle.
type State int

const (
	StatePending State = iota
	StateFetchingManifest
	StateDiffing
	StateUploading
	StateDownloading
	StateStamping
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "PENDING"
	case StateFetchingManifest:
		return "FETCHING_MANIFEST"
	case StateDiffing:
		return "DIFFING"
	case StateUploading:
		return "UPLOADING"
	case StateDownloading:
		return "DOWNLOADING"
	case StateStamping:
		return "STAMPING"
	case StateDone:
		return "DONE"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// DiffResult lists the work for one pass. An id appears in at most one list.
type DiffResult struct {
	Uploads   []string
	Downloads []string
	// Skipped holds ids that are corrupt locally and unknown to the remote.
	Skipped []string
}

// Empty reports whether the diff has nothing to transfer.
func (d DiffResult) Empty() bool {
	return len(d.Uploads) == 0 && len(d.Downloads) == 0
}

// Diff compares local records with a remote manifest. It does no I/O.
func Diff(local []record.Record, manifest record.Manifest) DiffResult {
	byID := make(map[string]record.Record, len(local))
	for _, rec := range local {
		byID[rec.ID] = rec
	}

	d := DiffResult{Uploads: []string{}, Downloads: []string{}, Skipped: []string{}}

	for id, remoteUpdated := range manifest {
		rec, ok := byID[id]
		switch {
		case !ok || !rec.Readable():
			d.Downloads = append(d.Downloads, id)
		case rec.Updated > remoteUpdated:
			d.Uploads = append(d.Uploads, id)
		case rec.Updated < remoteUpdated:
			d.Downloads = append(d.Downloads, id)
		}
	}

	for id, rec := range byID {
		if _, ok := manifest[id]; ok {
			continue
		}
		if rec.Readable() {
			d.Uploads = append(d.Uploads, id)
		} else {
			d.Skipped = append(d.Skipped, id)
		}
	}

	sort.Strings(d.Uploads)
	sort.Strings(d.Downloads)
	sort.Strings(d.Skipped)
	return d
}

// Report summarizes one pass against one remote.
type Report struct {
	Remote     string
	State      State
	Uploaded   []string
	Downloaded []string
	Skipped    []string
	Failures   []Failure
	// Err is set when the pass failed as a whole.
	Err error
}

// Partial reports whether some records failed while the pass completed.
func (r *Report) Partial() bool {
	return r.Err == nil && len(r.Failures) > 0
}

// FailuresOf returns failures of one kind.
func (r *Report) FailuresOf(kind error) []Failure {
	var out []Failure
	for _, f := range r.Failures {
		if errors.Is(f, kind) {
			out = append(out, f)
		}
	}
	return out
}

func (r *Report) fail(id string, op, err error) {
	r.Failures = append(r.Failures, Failure{ID: id, Op: op, Err: err})
}

// Reconciler runs passes against a local store.
type Reconciler struct {
	store Store
	log   *logger.Logger

	// Progress, when set, is called on every state transition.
	Progress func(remote string, state State)
}

// NewReconciler creates a reconciler. A nil log uses the global logger.
func NewReconciler(store Store, log *logger.Logger) *Reconciler {
	if log == nil {
		log = logger.Default()
	}
	return &Reconciler{store: store, log: log}
}

func (r *Reconciler) transition(rep *Report, state State) {
	rep.State = state
	r.log.Debug("Sync state", logger.F("remote", rep.Remote), logger.F("state", state))
	if r.Progress != nil {
		r.Progress(rep.Remote, state)
	}
}

// Pass runs one full reconciliation against remote. The returned error is
// non-nil only when the pass could not start: the manifest was unreachable
// or the local store could not be listed. Per-record problems are in the
// report.
func (r *Reconciler) Pass(ctx context.Context, name string, remote Remote) (*Report, error) {
	rep := &Report{Remote: name}
	r.transition(rep, StatePending)

	r.transition(rep, StateFetchingManifest)
	manifest, err := remote.Manifest(ctx)
	if err != nil {
		rep.Err = fmt.Errorf("%w: %w", ErrManifestUnreachable, err)
		r.log.Error("Failed to fetch manifest", logger.F("remote", name), logger.F("error", err))
		r.transition(rep, StateFailed)
		return rep, rep.Err
	}
	if manifest == nil {
		manifest = record.Manifest{}
	}

	local, err := r.store.ListAll(ctx)
	if err != nil {
		rep.Err = fmt.Errorf("failed to list local punches: %w", err)
		r.transition(rep, StateFailed)
		return rep, rep.Err
	}

	r.transition(rep, StateDiffing)
	diff := Diff(local, manifest)
	r.log.Info("Computed diff",
		logger.F("remote", name),
		logger.F("uploads", len(diff.Uploads)),
		logger.F("downloads", len(diff.Downloads)),
		logger.F("skipped", len(diff.Skipped)))

	r.apply(ctx, rep, diff, remote)

	r.transition(rep, StateDone)
	return rep, nil
}

// Apply carries out a diff against remote and returns what happened.
func (r *Reconciler) Apply(ctx context.Context, diff DiffResult, remote Remote) *Report {
	rep := &Report{}
	r.apply(ctx, rep, diff, remote)
	return rep
}

func (r *Reconciler) apply(ctx context.Context, rep *Report, diff DiffResult, remote Remote) {
	for _, id := range diff.Skipped {
		rep.Skipped = append(rep.Skipped, id)
		rep.fail(id, ErrRecordUnreadable, errors.New("corrupt locally and unknown to remote"))
	}

	r.transition(rep, StateUploading)
	accepted := r.upload(ctx, rep, diff.Uploads, remote)

	r.transition(rep, StateDownloading)
	r.download(ctx, rep, diff.Downloads, remote)

	r.transition(rep, StateStamping)
	r.stamp(ctx, rep, diff.Uploads, accepted)

	if len(rep.Failures) > 0 {
		r.log.Warn("Sync pass finished with failures",
			logger.F("remote", rep.Remote),
			logger.F("failures", len(rep.Failures)))
	}
}

// upload returns the canonical stamp of every accepted id.
func (r *Reconciler) upload(ctx context.Context, rep *Report, ids []string, remote Remote) map[string]int64 {
	accepted := map[string]int64{}
	if len(ids) == 0 {
		return accepted
	}

	sent := make(map[string]int64, len(ids))
	batch := make([]record.Record, 0, len(ids))
	for _, id := range ids {
		rec, err := r.store.Read(ctx, id)
		if err == nil && !rec.Readable() {
			err = rec.Err
		}
		if err != nil {
			rep.fail(id, ErrUploadFailed, fmt.Errorf("read local punch: %w", err))
			continue
		}
		sent[id] = rec.Updated
		batch = append(batch, rec)
	}
	if len(batch) == 0 {
		return accepted
	}

	r.log.Info("Uploading punches", logger.F("remote", rep.Remote), logger.F("count", len(batch)))
	result, err := remote.Upload(ctx, batch)
	if err != nil {
		r.log.Error("Upload failed", logger.F("remote", rep.Remote), logger.F("error", err))
		for _, rec := range batch {
			rep.fail(rec.ID, ErrUploadFailed, err)
		}
		return accepted
	}

	for _, s := range result.Accepted {
		local, ok := sent[s.ID]
		if !ok {
			continue
		}
		if _, failed := result.Failed[s.ID]; failed {
			continue
		}
		if s.Updated == 0 {
			s.Updated = local
		}
		accepted[s.ID] = s.Updated
	}

	for _, rec := range batch {
		if _, ok := accepted[rec.ID]; ok {
			rep.Uploaded = append(rep.Uploaded, rec.ID)
			continue
		}
		cause, ok := result.Failed[rec.ID]
		if !ok || cause == nil {
			cause = errors.New("not confirmed by remote")
		}
		rep.fail(rec.ID, ErrUploadFailed, cause)
	}
	return accepted
}

func (r *Reconciler) download(ctx context.Context, rep *Report, ids []string, remote Remote) {
	if len(ids) == 0 {
		return
	}

	r.log.Info("Downloading punches", logger.F("remote", rep.Remote), logger.F("count", len(ids)))
	result, err := remote.Download(ctx, ids)
	if err != nil {
		r.log.Error("Download failed", logger.F("remote", rep.Remote), logger.F("error", err))
		for _, id := range ids {
			rep.fail(id, ErrDownloadFailed, err)
		}
		return
	}

	got := make(map[string]record.Record, len(result.Records))
	for _, rec := range result.Records {
		if _, dup := got[rec.ID]; dup {
			continue
		}
		got[rec.ID] = rec
	}

	for _, id := range ids {
		if cause, ok := result.Failed[id]; ok {
			rep.fail(id, ErrDownloadFailed, cause)
			continue
		}
		rec, ok := got[id]
		if !ok {
			rep.fail(id, ErrDownloadFailed, errors.New("not returned by remote"))
			continue
		}
		parsed, err := record.Parse(rec.Data)
		if err != nil {
			rep.fail(id, ErrDownloadFailed, fmt.Errorf("remote sent invalid punch: %w", err))
			continue
		}
		if parsed.ID != id {
			rep.fail(id, ErrDownloadFailed, fmt.Errorf("remote sent punch %q", parsed.ID))
			continue
		}
		if err := r.store.Write(ctx, parsed); err != nil {
			rep.fail(id, ErrDownloadFailed, fmt.Errorf("write local punch: %w", err))
			continue
		}
		rep.Downloaded = append(rep.Downloaded, id)
	}

	for id := range got {
		if !slices.Contains(ids, id) {
			r.log.Warn("Ignoring unrequested punch from remote", logger.F("remote", rep.Remote), logger.F("id", id))
		}
	}
}

// stamp rewrites only the updated field of each accepted punch, reading
// the bytes currently on disk so edits made during the pass survive.
func (r *Reconciler) stamp(ctx context.Context, rep *Report, ids []string, accepted map[string]int64) {
	for _, id := range ids {
		canonical, ok := accepted[id]
		if !ok {
			continue
		}

		current, err := r.store.Read(ctx, id)
		if err == nil && !current.Readable() {
			err = current.Err
		}
		if err != nil {
			r.log.Warn("Failed to read punch for stamping", logger.F("id", id), logger.F("error", err))
			rep.fail(id, ErrStampWriteFailed, err)
			continue
		}
		if current.Updated == canonical {
			continue
		}

		stamped, err := current.WithUpdated(canonical)
		if err == nil {
			err = r.store.Write(ctx, stamped)
		}
		if err != nil {
			r.log.Warn("Failed to stamp punch", logger.F("id", id), logger.F("error", err))
			rep.fail(id, ErrStampWriteFailed, err)
		}
	}
}
