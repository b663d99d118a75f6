// Package archive persists the performance samples dropped when optimizer
// metrics are cleared, so history survives a reset and a restart.
package archive

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/goliatone/go-dispatch-cache/optimizer"
)

const defaultBucket = "samples"

type Options struct {
	// Bucket is the name of the Bolt bucket holding the samples.
	Bucket string
	// MaxSamples bounds the archive. Older samples are pruned first.
	// Zero keeps everything.
	MaxSamples int
}

// Archive is a bbolt file of msgpack encoded samples keyed by insertion
// sequence. It implements optimizer.Sink.
type Archive struct {
	db         *bolt.DB
	bucket     []byte
	maxSamples int
}

var _ optimizer.Sink = (*Archive)(nil)

// Open creates or opens the archive file at path.
func Open(path string, opts Options) (*Archive, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}

	bucket := []byte(defaultBucket)
	if opts.Bucket != "" {
		bucket = []byte(opts.Bucket)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucket)
		return err
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Archive{db: db, bucket: bucket, maxSamples: opts.MaxSamples}, nil
}

func (a *Archive) Close() error {
	if a == nil || a.db == nil {
		return nil
	}
	return a.db.Close()
}

// Archive appends samples in order and prunes the oldest ones beyond
// MaxSamples. The write is a single transaction.
func (a *Archive) Archive(ctx context.Context, samples []optimizer.Sample) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return a.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(a.bucket)
		for _, s := range samples {
			seq, err := b.NextSequence()
			if err != nil {
				return err
			}
			value, err := msgpack.Marshal(&s)
			if err != nil {
				return fmt.Errorf("encode sample: %w", err)
			}
			if err := b.Put(itob(seq), value); err != nil {
				return err
			}
		}
		return a.pruneLocked(b)
	})
}

func (a *Archive) pruneLocked(b *bolt.Bucket) error {
	if a.maxSamples <= 0 {
		return nil
	}
	excess := countKeys(b) - a.maxSamples
	if excess <= 0 {
		return nil
	}

	keys := make([][]byte, 0, excess)
	c := b.Cursor()
	for k, _ := c.First(); k != nil && len(keys) < excess; k, _ = c.Next() {
		keys = append(keys, append([]byte(nil), k...))
	}
	for _, k := range keys {
		if err := b.Delete(k); err != nil {
			return err
		}
	}
	return nil
}

// Recent returns up to limit archived samples, oldest first. A limit <= 0
// returns everything.
func (a *Archive) Recent(limit int) ([]optimizer.Sample, error) {
	var out []optimizer.Sample
	err := a.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(a.bucket).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(out) == limit {
				break
			}
			var s optimizer.Sample
			if err := msgpack.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("decode sample %d: %w", binary.BigEndian.Uint64(k), err)
			}
			out = append(out, s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Len returns the number of archived samples.
func (a *Archive) Len() (int, error) {
	var n int
	err := a.db.View(func(tx *bolt.Tx) error {
		n = countKeys(tx.Bucket(a.bucket))
		return nil
	})
	return n, err
}

func countKeys(b *bolt.Bucket) int {
	n := 0
	c := b.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		n++
	}
	return n
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
