package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/Saijash84/CalMate/internal/logging"
)

const (
	bookingsCollection  = "bookings"
	countersCollection  = "counters"
	activeStartIndex    = "active_start_unique"
	defaultMongoTimeout = 5 * time.Second
)

// bookingDocument is the BSON shape of a Booking. Mongo keeps millisecond
// precision and drops the zone, so documents are normalized on read.
type bookingDocument struct {
	ID              string    `bson:"_id"`
	Seq             int64     `bson:"seq"`
	Summary         string    `bson:"summary"`
	ExternalEventID string    `bson:"external_event_id,omitempty"`
	Start           time.Time `bson:"start"`
	End             time.Time `bson:"end"`
	Timezone        string    `bson:"timezone"`
	Attendees       []string  `bson:"attendees,omitempty"`
	Status          Status    `bson:"status"`
	CreatedAt       time.Time `bson:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at"`
}

func (d bookingDocument) booking() Booking {
	b := Booking{
		ID:              d.ID,
		Seq:             uint64(d.Seq),
		Summary:         d.Summary,
		ExternalEventID: d.ExternalEventID,
		Start:           d.Start,
		End:             d.End,
		Timezone:        d.Timezone,
		Attendees:       d.Attendees,
		Status:          d.Status,
		CreatedAt:       d.CreatedAt,
		UpdatedAt:       d.UpdatedAt,
	}
	normalize(&b)
	return b
}

// MongoStore is a Store backed by MongoDB. Start uniqueness among active
// bookings is enforced by a partial unique index.
type MongoStore struct {
	client   *mongo.Client
	owned    bool
	bookings *mongo.Collection
	counters *mongo.Collection
	timeout  time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// ConnectMongo dials uri, verifies the connection and returns a store that
// disconnects the client on Close.
func ConnectMongo(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connecting to mongo: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("pinging mongo: %w", err)
	}

	s, err := NewMongoStore(ctx, client, database, logger)
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewMongoStore builds a store on an existing client and ensures its indexes.
func NewMongoStore(ctx context.Context, client *mongo.Client, database string, logger *slog.Logger) (*MongoStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	db := client.Database(database)
	s := &MongoStore{
		client:   client,
		bookings: db.Collection(bookingsCollection),
		counters: db.Collection(countersCollection),
		timeout:  defaultMongoTimeout,
		logger:   logging.WithService(logger, "booking.mongo"),
		now:      time.Now,
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the sequence index and the partial unique index on
// the start of active bookings.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*s.timeout)
	defer cancel()

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "seq", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("seq_unique"),
		},
		{
			Keys: bson.D{{Key: "start", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetName(activeStartIndex).
				SetPartialFilterExpression(bson.M{"status": StatusActive}),
		},
	}
	if _, err := s.bookings.Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("creating booking indexes: %w", err)
	}
	return nil
}

// Save implements Store.
func (s *MongoStore) Save(ctx context.Context, d Draft) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	seq, err := s.nextSeq(ctx)
	if err != nil {
		return "", err
	}
	now := s.now()
	doc := bookingDocument{
		ID:              uuid.NewString(),
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
	if _, err := s.bookings.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return "", fmt.Errorf("saving booking: %w", ErrDuplicateStart)
		}
		return "", fmt.Errorf("saving booking: %w", err)
	}
	s.logger.Debug("booking saved", logging.BookingID(doc.ID))
	return doc.ID, nil
}

// Get implements Store.
func (s *MongoStore) Get(ctx context.Context, id string) (*Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var doc bookingDocument
	if err := s.bookings.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		return nil, fmt.Errorf("getting booking %s: %w", id, mapMongoErr(err))
	}
	b := doc.booking()
	return &b, nil
}

// List implements Store.
func (s *MongoStore) List(ctx context.Context) ([]Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cursor, err := s.bookings.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "seq", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("listing bookings: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []bookingDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decoding bookings: %w", err)
	}
	out := make([]Booking, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.booking())
	}
	return out, nil
}

// MostRecent implements Store.
func (s *MongoStore) MostRecent(ctx context.Context) (*Booking, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	opts := options.FindOne().SetSort(bson.D{{Key: "seq", Value: -1}})
	var doc bookingDocument
	if err := s.bookings.FindOne(ctx, bson.M{"status": StatusActive}, opts).Decode(&doc); err != nil {
		return nil, fmt.Errorf("finding most recent booking: %w", mapMongoErr(err))
	}
	b := doc.booking()
	return &b, nil
}

// Cancel implements Store.
func (s *MongoStore) Cancel(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	update := bson.M{"$set": bson.M{"status": StatusCancelled, "updated_at": s.now()}}
	res, err := s.bookings.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("cancelling booking %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("cancelling booking %s: %w", id, ErrNotFound)
	}
	s.logger.Debug("booking cancelled", logging.BookingID(id))
	return nil
}

// Update implements Store.
func (s *MongoStore) Update(ctx context.Context, id string, c Changes) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	update := bson.M{"$set": bson.M{
		"summary":    c.Summary,
		"start":      c.Start,
		"end":        c.End,
		"timezone":   c.Timezone,
		"updated_at": s.now(),
	}}
	res, err := s.bookings.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("updating booking %s: %w", id, ErrDuplicateStart)
		}
		return fmt.Errorf("updating booking %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("updating booking %s: %w", id, ErrNotFound)
	}
	s.logger.Debug("booking updated", logging.BookingID(id))
	return nil
}

// Ping implements Store.
func (s *MongoStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client if this store dialed it.
func (s *MongoStore) Close() error {
	if !s.owned {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.client.Disconnect(ctx)
}

// nextSeq atomically increments the bookings counter document.
func (s *MongoStore) nextSeq(ctx context.Context) (int64, error) {
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := s.counters.FindOneAndUpdate(ctx,
		bson.M{"_id": bookingsCollection},
		bson.M{"$inc": bson.M{"seq": 1}},
		opts,
	).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("allocating booking sequence: %w", err)
	}
	return counter.Seq, nil
}

func mapMongoErr(err error) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return ErrNotFound
	}
	return err
}
