//go:build windows

package runstate

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"
)

// Lock holds an exclusive lock on the state lock file.
type Lock struct {
	file *os.File
}

// Lock takes an exclusive LockFileEx lock on the lock file, blocking until
// acquired.
func (m *Manager) Lock() (*Lock, error) {
	file, err := os.OpenFile(m.LockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening lock file: %w", err)
	}

	ol := new(windows.Overlapped)
	if err := windows.LockFileEx(windows.Handle(file.Fd()), windows.LOCKFILE_EXCLUSIVE_LOCK, 0, 1, 0, ol); err != nil {
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
	ol := new(windows.Overlapped)
	if err := windows.UnlockFileEx(windows.Handle(l.file.Fd()), 0, 1, 0, ol); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("unlocking worker state: %w", err)
	}
	return l.file.Close()
}
