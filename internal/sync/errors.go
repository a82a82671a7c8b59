package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrManifestUnreachable aborts a pass before anything is mutated.
	ErrManifestUnreachable = errors.New("manifest unreachable")
	// ErrRecordUnreadable marks a local punch that could not be parsed.
	ErrRecordUnreadable = errors.New("record unreadable")
	// ErrUploadFailed marks a punch the remote did not accept.
	ErrUploadFailed = errors.New("upload failed")
	// ErrDownloadFailed marks a punch that could not be fetched or saved.
	ErrDownloadFailed = errors.New("download failed")
	// ErrStampWriteFailed marks an uploaded punch whose local stamp could
	// not be rewritten. The next pass re-uploads it.
	ErrStampWriteFailed = errors.New("stamp write failed")
)

// Failure is a per-record problem captured in a Report.
type Failure struct {
	ID  string
	Op  error // one of the sentinel errors above
	Err error
}

func (f Failure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %v", f.ID, f.Op)
	}
	return fmt.Sprintf("%s: %v: %v", f.ID, f.Op, f.Err)
}

// Is reports whether target is the failure's kind.
func (f Failure) Is(target error) bool {
	return target == f.Op
}

func (f Failure) Unwrap() error {
	return f.Err
}
