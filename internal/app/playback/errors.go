package playback

import "github.com/cockroachdb/errors"

// Errors
var (
	ErrTrackIO        = errors.New("track i/o failed")
	ErrListing        = errors.New("track listing failed")
	ErrRejected       = errors.New("request rejected")
	ErrStopped        = errors.New("scheduler is not running")
	ErrAlreadyRunning = errors.New("scheduler is already running")
)

// RejectedError reports a schedule request refused by the filter chain.
type RejectedError struct {
	Track string
	Code  string
}

func (e *RejectedError) Error() string {
	return "schedule " + e.Track + " rejected: " + e.Code
}

// Is makes errors.Is(err, ErrRejected) hold.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}
