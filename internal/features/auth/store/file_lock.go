package store

import (
	"fmt"
	"os"
	"time"
)

// fileLock coordinates token file access across processes using a separate
// lock file created with O_EXCL.
type fileLock struct {
	lockFile *os.File
	lockPath string
}

const (
	lockMaxRetries = 50
	lockRetryDelay = 100 * time.Millisecond
	lockStaleAfter = 30 * time.Second
)

// acquireFileLock acquires an exclusive lock for the given token file path
func acquireFileLock(filePath string) (*fileLock, error) {
	lockPath := filePath + ".lock"

	for i := 0; i < lockMaxRetries; i++ {
		lockFile, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			// Write PID to lock file for debugging
			fmt.Fprintf(lockFile, "%d", os.Getpid())
			return &fileLock{
				lockFile: lockFile,
				lockPath: lockPath,
			}, nil
		}

		if os.IsExist(err) {
			// A crashed process may have left the lock behind
			if info, statErr := os.Stat(lockPath); statErr == nil {
				if time.Since(info.ModTime()) > lockStaleAfter {
					if remErr := os.Remove(lockPath); remErr != nil && !os.IsNotExist(remErr) {
						return nil, fmt.Errorf("failed to remove stale lock file %s: %w", lockPath, remErr)
					}
					continue
				}
			}

			time.Sleep(lockRetryDelay)
			continue
		}

		return nil, fmt.Errorf("failed to acquire file lock: %w", err)
	}

	return nil, fmt.Errorf("timeout waiting for file lock after %v",
		time.Duration(lockMaxRetries)*lockRetryDelay)
}

// release releases the file lock
func (fl *fileLock) release() error {
	if fl.lockFile != nil {
		fl.lockFile.Close()
	}
	return os.Remove(fl.lockPath)
}
