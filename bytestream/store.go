package bytestream

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"streamvault/internal/logging"
)

const streamFileSuffix = ".bin"

// Store resolves (scope, stream) names to stream files under a root
// directory. A scope is a directory namespace; a stream is a single file
// within it.
type Store struct {
	dir    string
	mode   os.FileMode
	logger *slog.Logger
}

// NewStore creates a store rooted at dir. The directory itself is
// created lazily when the first stream is created.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if dir == "" {
		return nil, ErrMissingDir
	}
	return &Store{
		dir:    dir,
		mode:   0o644,
		logger: logging.Default(logger).With("component", "bytestream-store"),
	}, nil
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "/\\") && name != "." && name != ".."
}

func (s *Store) streamPath(scope, stream string) (string, error) {
	if !validName(scope) || !validName(stream) {
		return "", fmt.Errorf("%w: %q/%q", ErrInvalidName, scope, stream)
	}
	return filepath.Join(s.dir, scope, stream+streamFileSuffix), nil
}

// Exists reports whether the stream file is present.
func (s *Store) Exists(scope, stream string) (bool, error) {
	path, err := s.streamPath(scope, stream)
	if err != nil {
		return false, err
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// OpenWriter opens an append handle positioned at the stream tail,
// creating the stream when create is true. Opening a missing stream
// without create fails with ErrStreamNotFound; opening a sealed stream
// fails with ErrSealed.
func (s *Store) OpenWriter(scope, stream string, create bool) (*FileWriter, error) {
	path, err := s.streamPath(scope, stream)
	if err != nil {
		return nil, err
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if !create {
			return nil, fmt.Errorf("%w: %s/%s", ErrStreamNotFound, scope, stream)
		}
		if err := s.createStream(path); err != nil {
			return nil, err
		}
		s.logger.Info("created stream", "scope", scope, "stream", stream)
	}

	return openFileWriter(path, s.mode)
}

// OpenReader opens an independent read handle.
func (s *Store) OpenReader(scope, stream string) (*FileReader, error) {
	path, err := s.streamPath(scope, stream)
	if err != nil {
		return nil, err
	}
	r, err := openFileReader(path)
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s/%s", ErrStreamNotFound, scope, stream)
	}
	return r, err
}

func (s *Store) createStream(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_EXCL|os.O_WRONLY, cmp.Or(s.mode, 0o644))
	if err != nil {
		if os.IsExist(err) {
			// Raced with another creator; the stream exists now.
			return nil
		}
		return err
	}
	buf := encodeHeader(header{})
	if _, err := f.Write(buf[:]); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
