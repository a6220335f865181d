// Copyright 2014-2015 The Coname Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not
// use this file except in compliance with the License. You may obtain a copy of
// the License at
//
// 	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
// WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
// License for the specific language governing permissions and limitations under
// the License.

// Package kv contains a generic interface for key-value databases with support
// for atomic batch writes, and the helpers shared by its users. The sync
// store and the ledger persist through it; leveldbkv and badgerkv are the
// available backends.
package kv

import "errors"

// DB is an abstract key-value store. Every operation is synchronous and
// atomic: once Put(k, v) returns, Get(k) yields v until the next Put(k, ?)
// or Delete(k), even across a restart of the process. Write applies all
// operations of a Batch atomically, which is how multi-key updates are
// made crash-safe.
type DB interface {
	Get(key []byte) ([]byte, error)
	Put(key, value []byte) error
	Delete(key []byte) error
	NewBatch() Batch
	Write(Batch) error
	Close() error

	// ErrNotFound returns the backend's error for a missing key.
	ErrNotFound() error
}

// A Batch contains a sequence of Put-s and Delete-s waiting to be
// Write-n to a DB.
type Batch interface {
	Reset()
	Put(key, value []byte)
	Delete(key []byte)
}

var (
	// ErrorBadBufferLength indicates a stored value with an unexpected size.
	ErrorBadBufferLength = errors.New("[kv] Bad KV buffer's length")
)

// IsNotFound reports whether err is db's missing-key error.
func IsNotFound(db DB, err error) bool {
	return err != nil && errors.Is(err, db.ErrNotFound())
}

// GetOptional is Get where a missing key yields (nil, false, nil).
func GetOptional(db DB, key []byte) ([]byte, bool, error) {
	v, err := db.Get(key)
	switch {
	case IsNotFound(db, err):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	return v, true, nil
}
