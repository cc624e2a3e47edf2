package booking

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/Saijash84/CalMate/internal/logging"
)

// Key layout:
//
//	booking/seq               last assigned sequence number (uint64, big endian)
//	booking/b/<seq>           booking JSON, seq zero padded so keys sort by insertion
//	booking/id/<id>           seq key of the booking with that id
//	booking/start/<instant>   id of the active booking starting at that UTC instant
const (
	keySeq         = "booking/seq"
	prefixBooking  = "booking/b/"
	prefixID       = "booking/id/"
	prefixStart    = "booking/start/"
	maxTxnAttempts = 5
)

// BadgerStore is a Store backed by an embedded BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	owned  bool
	logger *slog.Logger
	now    func() time.Time
}

// OpenBadger opens (or creates) a BadgerDB at path. An empty path opens an
// in-memory database that is discarded on Close.
func OpenBadger(path string, logger *slog.Logger) (*BadgerStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	opts := badger.DefaultOptions(path).WithLogger(logging.NewSlogAdapter(logger))
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("opening badger at %q: %w", path, err)
	}
	s := NewBadgerStore(db, logger)
	s.owned = true
	return s, nil
}

// NewBadgerStore wraps an already open database. The caller keeps ownership of db.
func NewBadgerStore(db *badger.DB, logger *slog.Logger) *BadgerStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &BadgerStore{
		db:     db,
		logger: logging.WithService(logger, "booking.badger"),
		now:    time.Now,
	}
}

// Save implements Store. The duplicate-start check and the insert run in one
// serializable transaction; transactions that lose a commit race are retried.
func (s *BadgerStore) Save(ctx context.Context, d Draft) (string, error) {
	id := uuid.NewString()
	now := s.now()

	err := s.retry(ctx, func(txn *badger.Txn) error {
		sk := []byte(prefixStart + startKey(d.Start))
		if _, err := txn.Get(sk); err == nil {
			return ErrDuplicateStart
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		seq, err := nextSeq(txn)
		if err != nil {
			return err
		}
		b := Booking{
			ID:              id,
			Seq:             seq,
			Summary:         d.Summary,
			ExternalEventID: d.ExternalEventID,
			Start:           d.Start,
			End:             d.End,
			Timezone:        d.Timezone,
			Attendees:       d.Attendees,
			Status:          StatusActive,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		bk := bookingKey(seq)
		if err := putBooking(txn, bk, &b); err != nil {
			return err
		}
		if err := txn.Set([]byte(prefixID+id), bk); err != nil {
			return err
		}
		return txn.Set(sk, []byte(id))
	})
	if err != nil {
		return "", fmt.Errorf("saving booking: %w", err)
	}

	s.logger.Debug("booking saved", logging.BookingID(id))
	return id, nil
}

// Get implements Store.
func (s *BadgerStore) Get(ctx context.Context, id string) (*Booking, error) {
	var b *Booking
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		b, _, err = getByID(txn, id)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("getting booking %s: %w", id, err)
	}
	return b, nil
}

// List implements Store.
func (s *BadgerStore) List(ctx context.Context) ([]Booking, error) {
	out := []Booking{}
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixBooking)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(opts.Prefix); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := decodeItem(it.Item())
			if err != nil {
				s.logger.Warn("skipping corrupt booking", slog.String("key", string(it.Item().Key())), logging.Err(err))
				continue
			}
			out = append(out, *b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	return out, nil
}

// MostRecent implements Store by walking the booking keys newest first.
func (s *BadgerStore) MostRecent(ctx context.Context) (*Booking, error) {
	var found *Booking
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixBooking)
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(append([]byte(prefixBooking), 0xFF)); it.Valid(); it.Next() {
			b, err := decodeItem(it.Item())
			if err != nil {
				continue
			}
			if b.Active() {
				found = b
				return nil
			}
		}
		return ErrNotFound
	})
	if err != nil {
		return nil, fmt.Errorf("finding most recent booking: %w", err)
	}
	return found, nil
}

// Cancel implements Store.
func (s *BadgerStore) Cancel(ctx context.Context, id string) error {
	err := s.retry(ctx, func(txn *badger.Txn) error {
		b, bk, err := getByID(txn, id)
		if err != nil {
			return err
		}
		if !b.Active() {
			return nil
		}
		if err := deleteStartIfOwned(txn, b.Start, id); err != nil {
			return err
		}
		b.Status = StatusCancelled
		b.UpdatedAt = s.now()
		return putBooking(txn, bk, b)
	})
	if err != nil {
		return fmt.Errorf("cancelling booking %s: %w", id, err)
	}
	s.logger.Debug("booking cancelled", logging.BookingID(id))
	return nil
}

// Update implements Store.
func (s *BadgerStore) Update(ctx context.Context, id string, c Changes) error {
	err := s.retry(ctx, func(txn *badger.Txn) error {
		b, bk, err := getByID(txn, id)
		if err != nil {
			return err
		}
		if b.Active() && startKey(b.Start) != startKey(c.Start) {
			sk := []byte(prefixStart + startKey(c.Start))
			if _, err := txn.Get(sk); err == nil {
				return ErrDuplicateStart
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
			if err := deleteStartIfOwned(txn, b.Start, id); err != nil {
				return err
			}
			if err := txn.Set(sk, []byte(id)); err != nil {
				return err
			}
		}
		b.Summary = c.Summary
		b.Start = c.Start
		b.End = c.End
		b.Timezone = c.Timezone
		b.UpdatedAt = s.now()
		return putBooking(txn, bk, b)
	})
	if err != nil {
		return fmt.Errorf("updating booking %s: %w", id, err)
	}
	s.logger.Debug("booking updated", logging.BookingID(id))
	return nil
}

// Ping implements Store.
func (s *BadgerStore) Ping(ctx context.Context) error {
	if s.db.IsClosed() {
		return errors.New("badger database is closed")
	}
	return nil
}

// Close closes the database if this store opened it.
func (s *BadgerStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.db.Close()
}

// retry runs fn in a read-write transaction, retrying on commit conflicts.
func (s *BadgerStore) retry(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxTxnAttempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
		s.logger.Debug("transaction conflict, retrying", slog.Int("attempt", attempt+1))
	}
	return err
}

func nextSeq(txn *badger.Txn) (uint64, error) {
	var seq uint64
	item, err := txn.Get([]byte(keySeq))
	switch {
	case err == nil:
		if err := item.Value(func(val []byte) error {
			if len(val) != 8 {
				return fmt.Errorf("corrupt sequence value of %d bytes", len(val))
			}
			seq = binary.BigEndian.Uint64(val)
			return nil
		}); err != nil {
			return 0, err
		}
	case !errors.Is(err, badger.ErrKeyNotFound):
		return 0, err
	}
	seq++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, seq)
	return seq, txn.Set([]byte(keySeq), buf)
}

func bookingKey(seq uint64) []byte {
	return []byte(fmt.Sprintf("%s%020d", prefixBooking, seq))
}

func getByID(txn *badger.Txn, id string) (*Booking, []byte, error) {
	item, err := txn.Get([]byte(prefixID + id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	bk, err := item.ValueCopy(nil)
	if err != nil {
		return nil, nil, err
	}
	item, err = txn.Get(bk)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil, ErrNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	b, err := decodeItem(item)
	if err != nil {
		return nil, nil, err
	}
	return b, bk, nil
}

// deleteStartIfOwned drops the start index entry only when it points at id.
func deleteStartIfOwned(txn *badger.Txn, start time.Time, id string) error {
	sk := []byte(prefixStart + startKey(start))
	item, err := txn.Get(sk)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	owner, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}
	if string(owner) != id {
		return nil
	}
	return txn.Delete(sk)
}

func putBooking(txn *badger.Txn, key []byte, b *Booking) error {
	raw, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("encoding booking: %w", err)
	}
	return txn.Set(key, raw)
}

func decodeItem(item *badger.Item) (*Booking, error) {
	var b Booking
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &b)
	}); err != nil {
		return nil, err
	}
	normalize(&b)
	return &b, nil
}
