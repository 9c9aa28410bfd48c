// Package filestore persists credentials as a JSON file, typically under the
// user's home directory so that separate invocations of a CLI share one
// session. Another process rotating the file is picked up via fsnotify.
package filestore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/jrsteele09/go-auth-client/credentials"
)

var _ credentials.Store = (*Store)(nil)

type Store struct {
	path    string
	watcher *fsnotify.Watcher

	cached *credentials.Credentials
	fresh  bool
	lock   sync.Mutex
}

// New creates a file-backed store at path. The parent directory is created
// if required and watched so that external writes invalidate the cache.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[filestore.New] create directory")
	}

	s := &Store{path: path}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "[filestore.New] fsnotify watcher")
	}
	if err := watcher.Add(dir); err != nil {
		_ = watcher.Close()
		return nil, errors.Wrap(err, "[filestore.New] watch directory")
	}
	s.watcher = watcher
	go s.handleWatcher()

	return s, nil
}

// Close stops the file watcher.
func (s *Store) Close() error {
	return s.watcher.Close()
}

func (s *Store) Get(_ context.Context) (*credentials.Credentials, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.fresh {
		if s.cached == nil {
			return nil, credentials.ErrNotFound
		}
		c := *s.cached
		return &c, nil
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.cached = nil
			s.fresh = true
			return nil, credentials.ErrNotFound
		}
		return nil, errors.Wrap(err, "[filestore.Get] read file")
	}

	var creds credentials.Credentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, errors.Wrap(err, "[filestore.Get] unmarshal")
	}

	s.cached = &creds
	s.fresh = true
	c := creds
	return &c, nil
}

func (s *Store) Put(_ context.Context, creds *credentials.Credentials) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[filestore.Put] marshal")
	}

	// 0600: the refresh token is a long-lived credential
	if err := os.WriteFile(s.path, data, 0o600); err != nil {
		return errors.Wrap(err, "[filestore.Put] write file")
	}

	c := *creds
	s.cached = &c
	s.fresh = true
	return nil
}

func (s *Store) Delete(_ context.Context) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[filestore.Delete] remove file")
	}
	s.cached = nil
	s.fresh = true
	return nil
}

func (s *Store) handleWatcher() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if event.Name != s.path {
				continue
			}
			if event.Has(fsnotify.Write | fsnotify.Remove | fsnotify.Create | fsnotify.Rename) {
				s.invalidate()
			}
		case _, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			// A watch error means the cache can no longer be trusted.
			s.invalidate()
		}
	}
}

func (s *Store) invalidate() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.fresh = false
}
