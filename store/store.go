/*******************************************************************************
 * Copyright (c) 2026 Genome Research Ltd.
 *
 * Permission is hereby granted, free of charge, to any person obtaining
 * a copy of this software and associated documentation files (the
 * "Software"), to deal in the Software without restriction, including
 * without limitation the rights to use, copy, modify, merge, publish,
 * distribute, sublicense, and/or sell copies of the Software, and to
 * permit persons to whom the Software is furnished to do so, subject to
 * the following conditions:
 *
 * The above copyright notice and this permission notice shall be included
 * in all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
 * EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF
 * MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT.
 * IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY
 * CLAIM, DAMAGES OR OTHER LIABILITY, WHETHER IN AN ACTION OF CONTRACT,
 * TORT OR OTHERWISE, ARISING FROM, OUT OF OR IN CONNECTION WITH THE
 * SOFTWARE OR THE USE OR OTHER DEALINGS IN THE SOFTWARE.
 ******************************************************************************/

// Package store is the normalized persistence layer for the observation file
// inventory. All mutating operations are get-or-create by natural key or
// upserts keyed by uniqueness constraints, making repeated scans idempotent.
package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // sql driver
)

// Error is the constant error type of this package.
type Error string

func (e Error) Error() string { return string(e) }

// ErrInTransaction is returned by Transaction when called on a Store that is
// already inside one.
const ErrInTransaction = Error("store: already in a transaction")

func ignoreNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}

	return err
}

const dirPerms = 0750

// UpsertOutcome says whether an upsert inserted a new row or updated an
// existing one.
type UpsertOutcome string

const (
	Inserted UpsertOutcome = "inserted"
	Updated  UpsertOutcome = "updated"
)

type querier interface {
	Exec(query string, args ...any) (sql.Result, error)
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
}

// Store is a handle on the inventory database. The zero value is not usable;
// use Open.
type Store struct {
	db *sql.DB
	q  querier
}

// Open opens (or creates) the inventory database at the given path, creating
// parent directories as needed and applying the schema.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), dirPerms); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()

		return nil, err
	}

	return &Store{db: db, q: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}

	return s.db.Close()
}

// Transaction runs fn against a Store bound to a single transaction,
// committing if fn returns nil and rolling back otherwise. Calling it on a
// Store that is already inside a transaction returns ErrInTransaction.
func (s *Store) Transaction(fn func(tx *Store) error) error {
	if s.db == nil {
		return ErrInTransaction
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	if err := fn(&Store{q: tx}); err != nil {
		tx.Rollback() //nolint:errcheck

		return err
	}

	return tx.Commit()
}
