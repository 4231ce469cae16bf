package flagset

import (
	"os"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

var (
	ErrStoreReadOnly = errors.New("store opened in read-only mode")
	ErrEmptyStore    = errors.New("store file holds no snapshot")
)

// Options represents the options that can be set when opening a store.
type Options struct {
	// Timeout is the amount of time to wait to obtain the file lock.
	// When set to zero, Open fails immediately if another process
	// already holds a conflicting lock.
	Timeout time.Duration

	// Open the store in read-only mode. Uses flock(..., LOCK_SH|LOCK_NB)
	// to grab a shared lock (UNIX), so several readers may coexist.
	ReadOnly bool

	// Compression selects the snapshot payload compression used by Save.
	Compression CompressAlgorithm
}

var DefaultOptions = &Options{
	Timeout:     0,
	Compression: CompSnappy,
}

// Store persists a single FlagSet snapshot in one file. Writers take an
// exclusive advisory lock for the lifetime of the handle; concurrent writer
// processes are rejected rather than allowed to interleave snapshots.
type Store struct {
	path        string
	file        *os.File
	compression CompressAlgorithm
	opened      bool

	ops struct {
		writeAt func(b []byte, off int64) (n int, err error)
	}

	// Read only mode.
	// When true, Save returns ErrStoreReadOnly immediately.
	readOnly bool
}

// OpenStore opens or creates a store file at path. A missing file is only an
// error in read-only mode.
func OpenStore(path string, mode os.FileMode, options *Options) (*Store, error) {
	var s = &Store{opened: true}

	// Set default options if no options are provided.
	if options == nil {
		options = DefaultOptions
	}
	s.compression = options.Compression

	flag := os.O_RDWR
	if options.ReadOnly {
		flag = os.O_RDONLY
		s.readOnly = true
	}

	s.path = path
	var err error
	if s.file, err = os.OpenFile(s.path, flag, mode); err != nil {
		if os.IsNotExist(err) && s.readOnly {
			_ = s.close()
			return nil, err
		}
		if s.file, err = os.OpenFile(s.path, flag|os.O_CREATE, mode); err != nil {
			_ = s.close()
			return nil, err
		}
	}

	// Lock the file so that other processes holding the store in write mode
	// cannot use it at the same time; two writers rewriting the snapshot at
	// offset 0 would corrupt it. The lock is exclusive unless ReadOnly is
	// set, in which case a shared lock lets readers coexist.
	if err := flock(s, options.Timeout); err != nil {
		_ = s.close()
		return nil, err
	}

	// Default values for test hooks
	s.ops.writeAt = s.file.WriteAt

	return s, nil
}

// Save encodes fs with the store's compression and rewrites the file.
func (s *Store) Save(fs *FlagSet) error {
	if s.readOnly {
		return ErrStoreReadOnly
	}
	data, err := fs.Snapshot(s.compression)
	if err != nil {
		return err
	}
	if _, err := s.ops.writeAt(data, 0); err != nil {
		return errors.Wrap(err, "failed to write snapshot")
	}
	if err := s.file.Truncate(int64(len(data))); err != nil {
		return errors.Wrap(err, "failed to truncate store file")
	}
	if err := s.file.Sync(); err != nil {
		return errors.Wrap(err, "failed to sync store file")
	}
	return nil
}

// Load reads and decodes the stored snapshot.
func (s *Store) Load() (*FlagSet, error) {
	info, err := s.file.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat store file")
	}
	if info.Size() == 0 {
		return nil, ErrEmptyStore
	}
	data := make([]byte, info.Size())
	if _, err := s.file.ReadAt(data, 0); err != nil {
		return nil, errors.Wrap(err, "failed to read store file")
	}
	return RestoreSnapshot(data)
}

// Path returns the store's file path.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) Close() error {
	return s.close()
}

func (s *Store) close() error {
	if !s.opened {
		return nil
	}

	s.opened = false

	// Clear ops.
	s.ops.writeAt = nil

	// Close file handles.
	if s.file != nil {
		// No need to unlock read-only file.
		if !s.readOnly {
			// Unlock the file.
			if err := funlock(s); err != nil {
				log.Errorf("flagset.Close(): funlock error: %s", err)
			}
		}

		// Close the file descriptor.
		if err := s.file.Close(); err != nil {
			return errors.Wrap(err, "store file closed")
		}
		s.file = nil
	}

	s.path = ""
	return nil
}
