package sink

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"AirNode/internal/model"
)

var bucketReadings = []byte("readings")

// BoltSink appends readings to a bbolt bucket keyed by the bucket sequence.
type BoltSink struct {
	DB *bbolt.DB
}

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*BoltSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", dir)
		}
	}
	db, err := bbolt.Open(path, 0o666, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, errors.Wrap(err, "open bolt db")
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketReadings)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "create readings bucket")
	}
	return &BoltSink{DB: db}, nil
}

func (s *BoltSink) Name() string { return "bolt" }

// Dispatch stores r as one JSON row.
func (s *BoltSink) Dispatch(_ context.Context, r model.Reading) error {
	v, err := json.Marshal(NewRow(r))
	if err != nil {
		return err
	}
	return s.DB.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketReadings)
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		return b.Put(itob(seq), v)
	})
}

// Latest returns the most recent row, or nil when the bucket is empty.
func (s *BoltSink) Latest() (*Row, error) {
	rows, err := s.Recent(1)
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

// Recent returns up to n rows, newest first.
func (s *BoltSink) Recent(n int) ([]Row, error) {
	var rows []Row
	err := s.DB.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketReadings).Cursor()
		for k, v := c.Last(); k != nil && len(rows) < n; k, v = c.Prev() {
			var row Row
			if err := json.Unmarshal(v, &row); err != nil {
				return errors.Wrapf(err, "decode row %d", binary.BigEndian.Uint64(k))
			}
			rows = append(rows, row)
		}
		return nil
	})
	return rows, err
}

// Close closes the database.
func (s *BoltSink) Close() error {
	return s.DB.Close()
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}
