package storage

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"shutter-cam/pkg/storage/consts"
)

var ErrSinkClosed = errors.New("sink already committed or aborted")

// Sink is one pending output. Streams write to Path and then Commit; single
// buffers use WriteOnce. Exactly one of Commit or Abort takes effect.
type Sink struct {
	ID   string
	Name string

	desc      Descriptor
	store     *Store
	tmpPath   string
	finalPath string

	mu   sync.Mutex
	done bool
}

func (s *Sink) Descriptor() Descriptor {
	return s.desc
}

// Path is where a stream writer should write until Commit.
func (s *Sink) Path() string {
	return s.tmpPath
}

// WriteOnce stores data and commits it.
func (s *Sink) WriteOnce(data []byte) (string, error) {
	if err := os.WriteFile(s.tmpPath, data, consts.DefaultFilePerm); err != nil {
		_ = s.Abort()
		return "", fmt.Errorf("write %s: %w", s.Name, err)
	}
	return s.Commit()
}

// Commit publishes the pending file and returns its uri.
func (s *Sink) Commit() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return "", ErrSinkClosed
	}
	s.done = true
	uri, err := s.store.commit(s)
	if err != nil {
		_ = os.Remove(s.tmpPath)
		return "", fmt.Errorf("commit %s: %w", s.Name, err)
	}
	return uri, nil
}

// Abort discards whatever was written.
func (s *Sink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	if err := os.Remove(s.tmpPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
