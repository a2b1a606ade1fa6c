package workflow

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"ifgstack/internal/services"
)

type workdirLock struct {
	lock *flock.Flock
}

// LockPath returns the lock file guarding workdir. Locks live in the state
// directory so the working directory itself stays untouched.
func LockPath(lockDir, workdir string) string {
	sum := sha256.Sum256([]byte(filepath.Clean(workdir)))
	return filepath.Join(lockDir, hex.EncodeToString(sum[:8])+".lock")
}

func acquireWorkdirLock(lockDir, workdir string) (*workdirLock, error) {
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, services.Wrap(services.ErrConfig, "workflow", "lock", "create lock directory", err)
	}
	lock := flock.New(LockPath(lockDir, workdir))
	ok, err := lock.TryLock()
	if err != nil {
		return nil, services.Wrap(services.ErrConfig, "workflow", "lock", fmt.Sprintf("acquire lock for %s", workdir), err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrBusy, "workflow", "lock",
			fmt.Sprintf("another run is active in %s", workdir), nil)
	}
	return &workdirLock{lock: lock}, nil
}

func (l *workdirLock) release() {
	if l == nil || l.lock == nil {
		return
	}
	_ = l.lock.Unlock()
}
