package domain

import "errors"

var (
	ErrUnknownJob    = errors.New("unknown job")
	ErrJobRunning    = errors.New("job already running")
	ErrJobNotRunning = errors.New("job not running")
	ErrMissingInput  = errors.New("required input missing")
	ErrInvalidRecord = errors.New("invalid record")
)

// FatalError marks a setup failure that aborts the whole job instead of
// being retried.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return "fatal: " + e.Err.Error() }

func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err as a setup-fatal error. Fatal(nil) returns nil.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	var fe *FatalError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err aborts the job.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
