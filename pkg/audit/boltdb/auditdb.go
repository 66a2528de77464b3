// Package boltdb provides a persistent audit.Store that keeps the
// attestation trail in a single file.
package boltdb

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"code.uvattest.org/golang/pkg/audit"
)

const (
	connectTimeout = 5 * time.Second
	roundBucket    = "roundTbl"
)

type auditStore struct {
	dbpath string
}

// New returns an audit.Store implementation that persists Records in a
// single file boltdb database. It errors if the database schema can not
// be created.
func New(dbpath string) (audit.Store, error) {
	store := auditStore{dbpath: dbpath}

	db, err := bolt.Open(dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return nil, wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(roundBucket))
		return wrapError(err, "failed %s bucket creation", roundBucket) // nil if err is nil
	})
	if nil != err {
		return nil, wrapError(err, "failed db initialization")
	}

	return store, nil
}

// Append implements audit.Store.
func (self auditStore) Append(_ context.Context, rec audit.Record) error {
	err := rec.Check()
	if nil != err {
		return wrapError(err, "record is invalid")
	}

	// marshal record data using cbor
	srzrec, err := cbor.Marshal(rec)
	if nil != err {
		return wrapError(err, "failed cbor.Marshal(rec)")
	}

	db, err := bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	err = db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(roundBucket))
		if nil == bucket {
			return newError("missing %s bucket", roundBucket)
		}

		seq, err := bucket.NextSequence()
		if nil != err {
			return wrapError(err, "failed generating record sequence")
		}

		var key [8]byte
		binary.BigEndian.PutUint64(key[:], seq)

		return wrapError(
			bucket.Put(key[:], srzrec),
			"failed storing record in bucket",
		)
	})

	return wrapError(err, "failed db.Update") // nil if err is nil
}

// List implements audit.Store.
func (self auditStore) List(_ context.Context) ([]audit.Record, error) {
	db, err := bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return nil, wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	var rv []audit.Record
	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(roundBucket))
		if nil == bucket {
			return newError("missing %s bucket", roundBucket)
		}

		// sequence keys are big endian, cursor order is append order
		return bucket.ForEach(func(_, srzrec []byte) error {
			var rec audit.Record
			err := cbor.Unmarshal(srzrec, &rec)
			if nil != err {
				return wrapError(err, "failed cbor.Unmarshal(rec)")
			}
			rv = append(rv, rec)
			return nil
		})
	})
	if nil != err {
		return nil, wrapError(err, "failed db.View")
	}

	return rv, nil
}

// Count implements audit.Store.
func (self auditStore) Count(_ context.Context) (int, error) {
	db, err := bolt.Open(self.dbpath, 0600, &bolt.Options{Timeout: connectTimeout})
	if nil != err {
		return 0, wrapError(err, "failed connecting to database")
	}
	defer db.Close()

	var rv int
	err = db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(roundBucket))
		if nil == bucket {
			return newError("missing %s bucket", roundBucket)
		}
		rv = bucket.Stats().KeyN
		return nil
	})
	if nil != err {
		return 0, wrapError(err, "failed db.View")
	}

	return rv, nil
}

var _ audit.Store = auditStore{}
