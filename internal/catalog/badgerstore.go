package catalog

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

var (
	badgerRecordPrefix = []byte("book:")
	badgerSeqKey       = []byte("meta:book_seq")
)

// BadgerStore keeps one key per record, keyed by a big-endian sequence
// number so prefix iteration yields append order.
type BadgerStore struct {
	db  *badger.DB
	seq *badger.Sequence
}

// OpenBadger opens (creating if needed) the Badger directory at path.
func OpenBadger(path string) (*BadgerStore, error) {
	if path == "" {
		return nil, errors.New("catalog: empty badger path")
	}

	opts := badger.DefaultOptions(path)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("catalog: open badger: %w", err)
	}

	seq, err := db.GetSequence(badgerSeqKey, 64)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("catalog: badger sequence: %w", err)
	}
	return &BadgerStore{db: db, seq: seq}, nil
}

func badgerKey(n uint64) []byte {
	key := make([]byte, len(badgerRecordPrefix)+8)
	copy(key, badgerRecordPrefix)
	binary.BigEndian.PutUint64(key[len(badgerRecordPrefix):], n)
	return key
}

func (s *BadgerStore) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	n, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("catalog: badger next id: %w", err)
	}
	val, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("catalog: encode: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerKey(n), val)
	})
}

func (s *BadgerStore) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	records := []Record{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerRecordPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				var rec Record
				if err := json.Unmarshal(val, &rec); err != nil {
					return fmt.Errorf("%w: key %x: %v", ErrCorrupt, it.Item().Key(), err)
				}
				records = append(records, rec)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("catalog: badger closed")
	}
	return nil
}

func (s *BadgerStore) Close() error {
	relErr := s.seq.Release()
	if err := s.db.Close(); err != nil {
		return err
	}
	return relErr
}
