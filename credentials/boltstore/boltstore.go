// Package boltstore persists credentials in a bbolt database, for daemons
// that hold a session across restarts and already carry a local database.
package boltstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"github.com/jrsteele09/go-auth-client/credentials"
)

const (
	bucketCredentials = "Credentials"
	keyCredentials    = "current"
)

var _ credentials.Store = (*Store)(nil)

type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) a bolt DB at the specified path and ensures the
// credentials bucket exists. 0600 - read/write for the current user only.
// The Timeout option allows bolt to wait if the file is locked by another
// process.
func Open(filePath string) (*Store, error) {
	db, err := bbolt.Open(filePath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "[boltstore.Open] open bolt db")
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, createErr := tx.CreateBucketIfNotExists([]byte(bucketCredentials))
		return createErr
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "[boltstore.Open] create bucket")
	}

	return &Store{db: db}, nil
}

// Close the database, ignore any errors
func (s *Store) Close() {
	_ = s.db.Close()
}

func (s *Store) Get(_ context.Context) (*credentials.Credentials, error) {
	var creds *credentials.Credentials

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketCredentials))
		if bucket == nil {
			return credentials.ErrNotFound
		}
		data := bucket.Get([]byte(keyCredentials))
		if data == nil {
			return credentials.ErrNotFound
		}
		creds = &credentials.Credentials{}
		return json.Unmarshal(data, creds)
	})
	if err != nil {
		if errors.Is(err, credentials.ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "[boltstore.Get] read credentials")
	}
	return creds, nil
}

func (s *Store) Put(_ context.Context, creds *credentials.Credentials) error {
	data, err := json.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "[boltstore.Put] marshal")
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists([]byte(bucketCredentials))
		if err != nil {
			return err
		}
		return bucket.Put([]byte(keyCredentials), data)
	})
	return errors.Wrap(err, "[boltstore.Put] store credentials")
}

func (s *Store) Delete(_ context.Context) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(bucketCredentials))
		if bucket == nil {
			return nil
		}
		return bucket.Delete([]byte(keyCredentials))
	})
	return errors.Wrap(err, "[boltstore.Delete] delete credentials")
}
