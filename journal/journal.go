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

// Package journal keeps a persistent history of the batches that have been
// basecalled in to an output directory.
package journal

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/ugorji/go/codec"
	"github.com/wtsi-hgi/rtbasecall/merge"
	bolt "go.etcd.io/bbolt"
)

// Error is the type of the constant Err* variables.
type Error string

// Error returns a string version of the error.
func (e Error) Error() string { return string(e) }

const (
	ErrUnknownBatch = Error("unknown batch")

	// Basename is the name of the journal database in an output directory.
	Basename = "batches.db"

	bucketName    = "batches"
	dbFilePerms   = 0640
	lockTimeout   = 2 * time.Second
	keyLength     = 8
	noFailMessage = "unknown failure"
)

// Status of a batch.
type Status string

const (
	Started  Status = "started"
	Complete Status = "complete"
	Failed   Status = "failed"

	// Retried is for a started or failed batch whose files have all since been
	// basecalled by later batches.
	Retried Status = "retried"
)

// Done is something that knows which files have been basecalled, such as a
// *ledger.Ledger.
type Done interface {
	Contains(name string) bool
}

// Record is the history of one batch.
type Record struct {
	ID            uint64
	Files         []string
	Started       time.Time
	Finished      time.Time
	Status        Status
	Error         string
	SummaryRows   int
	SequenceFiles int
}

// Journal is a bolt database of batch Records.
type Journal struct {
	db  *bolt.DB
	ch  codec.Handle
	now func() time.Time
}

// Open opens the journal database at path, creating it if necessary. Only one
// process can have a journal open for writing at a time.
func Open(path string) (*Journal, error) {
	db, err := bolt.Open(path, dbFilePerms, &bolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}

	if err = db.Update(func(tx *bolt.Tx) error {
		_, errc := tx.CreateBucketIfNotExists([]byte(bucketName))

		return errc
	}); err != nil {
		_ = db.Close()

		return nil, err
	}

	return newJournal(db), nil
}

// OpenReadOnly opens an existing journal database for reading.
func OpenReadOnly(path string) (*Journal, error) {
	db, err := bolt.Open(path, dbFilePerms, &bolt.Options{ReadOnly: true, Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("opening journal %s: %w", path, err)
	}

	return newJournal(db), nil
}

func newJournal(db *bolt.DB) *Journal {
	return &Journal{
		db:  db,
		ch:  new(codec.BincHandle),
		now: time.Now,
	}
}

func key(id uint64) []byte {
	k := make([]byte, keyLength)
	binary.BigEndian.PutUint64(k, id)

	return k
}

func (j *Journal) encode(v any) []byte {
	var out []byte

	codec.NewEncoderBytes(&out, j.ch).MustEncode(v)

	return out
}

func (j *Journal) decode(encoded []byte, v any) error {
	return codec.NewDecoderBytes(encoded, j.ch).Decode(v)
}

// Begin records that a batch of the given files has started, returning the
// new batch's id.
func (j *Journal) Begin(files []string) (uint64, error) {
	var id uint64

	err := j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		var err error

		if id, err = b.NextSequence(); err != nil {
			return err
		}

		return b.Put(key(id), j.encode(&Record{
			ID:      id,
			Files:   files,
			Started: j.now(),
			Status:  Started,
		}))
	})

	return id, err
}

// Complete records that the given batch finished, having merged what is
// described by the given result.
func (j *Journal) Complete(id uint64, result merge.Result) error {
	return j.update(id, func(r *Record) {
		r.Status = Complete
		r.SummaryRows = result.SummaryRows
		r.SequenceFiles = len(result.Sequences)
	})
}

// Fail records that the given batch failed with the given error.
func (j *Journal) Fail(id uint64, failure error) error {
	msg := noFailMessage

	if failure != nil {
		msg = failure.Error()
	}

	return j.update(id, func(r *Record) {
		r.Status = Failed
		r.Error = msg
	})
}

func (j *Journal) update(id uint64, fn func(*Record)) error {
	return j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		k := key(id)

		v := b.Get(k)
		if v == nil {
			return fmt.Errorf("%w: %d", ErrUnknownBatch, id)
		}

		var r Record

		if err := j.decode(v, &r); err != nil {
			return err
		}

		fn(&r)
		r.Finished = j.now()

		return b.Put(k, j.encode(&r))
	})
}

// Supersede marks every started or failed batch whose files are all done as
// Retried, returning how many were marked.
func (j *Journal) Supersede(done Done) (int, error) {
	marked := 0

	err := j.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		c := b.Cursor()

		for k, v := c.First(); k != nil; k, v = c.Next() {
			var r Record

			if err := j.decode(v, &r); err != nil {
				return err
			}

			if !unfinished(&r) || !allDone(r.Files, done) {
				continue
			}

			r.Status = Retried

			if err := b.Put(k, j.encode(&r)); err != nil {
				return err
			}

			marked++
		}

		return nil
	})

	return marked, err
}

func unfinished(r *Record) bool {
	return r.Status == Started || r.Status == Failed
}

func allDone(files []string, done Done) bool {
	for _, f := range files {
		if !done.Contains(f) {
			return false
		}
	}

	return true
}

// List returns every Record, oldest first.
func (j *Journal) List() ([]Record, error) {
	return j.filter(func(*Record) bool { return true })
}

// Unfinished returns the Records of batches that did not complete and have not
// been superseded, oldest first.
func (j *Journal) Unfinished() ([]Record, error) {
	return j.filter(unfinished)
}

func (j *Journal) filter(keep func(*Record) bool) ([]Record, error) {
	var records []Record

	err := j.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}

		return b.ForEach(func(_, v []byte) error {
			var r Record

			if err := j.decode(v, &r); err != nil {
				return err
			}

			if keep(&r) {
				records = append(records, r)
			}

			return nil
		})
	})

	return records, err
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
