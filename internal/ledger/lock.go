package ledger

import (
	"fmt"

	"github.com/gofrs/flock"

	"flora/internal/services"
)

// Lock is an exclusive advisory lock on a ledger file, held for the whole
// load, mutate, save sequence of a run.
type Lock struct {
	path string
	fl   *flock.Flock
}

// LockPath returns the lock file used for the ledger at path.
func LockPath(path string) string {
	return path + ".lock"
}

// Acquire takes the lock for the ledger at path without blocking. A lock held
// by another run is reported as a validation error.
func Acquire(path string) (*Lock, error) {
	lockPath := LockPath(path)
	fl := flock.New(lockPath)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire ledger lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(
			services.ErrValidation,
			"ledger",
			"lock",
			fmt.Sprintf("another run is already using %s", path),
			nil,
		)
	}
	return &Lock{path: lockPath, fl: fl}, nil
}

// Release unlocks the ledger. Safe to call on a nil lock.
func (l *Lock) Release() error {
	if l == nil || l.fl == nil {
		return nil
	}
	return l.fl.Unlock()
}
