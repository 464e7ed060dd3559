//go:build !windows

package runstate

import (
	"fmt"
	"os"
	"syscall"
)

// Lock holds an exclusive advisory lock on the state lock file.
type Lock struct {
	file *os.File
}

// Lock takes an exclusive flock on the lock file, blocking until acquired.
func (m *Manager) Lock() (*Lock, error) {
	file, err := os.OpenFile(m.LockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX); err != nil {
		file.Close()
		return nil, fmt.Errorf("locking worker state: %w", err)
	}

	return &Lock{file: file}, nil
}

// Release drops the lock. Safe on a nil receiver.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	if err := syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("unlocking worker state: %w", err)
	}
	return l.file.Close()
}
