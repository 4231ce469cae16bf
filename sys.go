package flagset

import (
	"syscall"
	"time"

	"github.com/pkg/errors"
)

var ErrLockedByOther = errors.New("store file locked by another process")

// flock acquires an advisory lock on the store's file descriptor, shared for
// read-only handles and exclusive otherwise. With a zero timeout a held lock
// fails immediately with ErrLockedByOther; otherwise acquisition is retried
// until the timeout elapses.
func flock(s *Store, timeout time.Duration) error {
	flag := syscall.LOCK_SH
	if !s.readOnly {
		flag = syscall.LOCK_EX
	}

	var t time.Time
	for {
		err := syscall.Flock(int(s.file.Fd()), flag|syscall.LOCK_NB)
		if err == nil {
			return nil
		}
		errno, ok := err.(syscall.Errno)
		if !ok || (errno != syscall.EWOULDBLOCK && errno != syscall.EAGAIN) { // linux & unix
			return errors.Wrap(err, "flock failed: unknown error")
		}
		if timeout == 0 {
			return ErrLockedByOther
		}
		if t.IsZero() {
			t = time.Now()
		} else if time.Since(t) > timeout {
			return ErrLockedByOther
		}
		// Wait for a bit and try again.
		time.Sleep(50 * time.Millisecond)
	}
}

// funlock releases an advisory lock on a file descriptor.
func funlock(s *Store) error {
	return syscall.Flock(int(s.file.Fd()), syscall.LOCK_UN)
}
