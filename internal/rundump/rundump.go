// Package rundump implements the sink Controller.DumpDebug reports a
// diagnostic snapshot to. NewMongoSink persists snapshots as timestamped
// documents through a caller-supplied Mongo client; NewLogSink reports
// them through structured logging instead. cmd/modelc attaches the log
// sink and does not build a Mongo sink from its --mongo_uri flag.
//
// Grounded on features/runlog/mongo/clients/mongo.Client: same
// options-struct construction, same timeout-wrapped, interface-seamed
// collection access so the persistence layer can be faked in tests without
// a live server.
package rundump

import (
	"context"
	"errors"
	"time"

	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/coruntime/modelc/internal/telemetry"
)

type (
	// Snapshot is one dump of a simulation's adapter-visible state.
	Snapshot struct {
		SimUID    uint32
		ModelTime float64
		Channels  map[string]map[string]float64
		Timestamp time.Time
	}

	// Sink persists or reports Snapshots.
	Sink interface {
		Dump(ctx context.Context, snap Snapshot) error
	}

	// Options configures the Mongo-backed sink.
	Options struct {
		Client     *mongodriver.Client
		Database   string
		Collection string
		Timeout    time.Duration
	}

	mongoSink struct {
		coll    collection
		timeout time.Duration
	}

	logSink struct {
		log telemetry.Logger
	}

	snapshotDocument struct {
		SimUID    uint32                        `bson:"sim_uid"`
		ModelTime float64                       `bson:"model_time"`
		Channels  map[string]map[string]float64 `bson:"channels"`
		Timestamp time.Time                     `bson:"timestamp"`
	}

	collection interface {
		InsertOne(ctx context.Context, document any, opts ...options.Lister[options.InsertOneOptions]) (*mongodriver.InsertOneResult, error)
	}
)

const (
	defaultCollection = "run_debug_dumps"
	defaultTimeout    = 5 * time.Second
)

// NewMongoSink returns a Sink backed by the provided Mongo client.
func NewMongoSink(opts Options) (Sink, error) {
	if opts.Client == nil {
		return nil, errors.New("rundump: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("rundump: database name is required")
	}
	coll := opts.Collection
	if coll == "" {
		coll = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	mcoll := opts.Client.Database(opts.Database).Collection(coll)
	return &mongoSink{coll: mcoll, timeout: timeout}, nil
}

// NewLogSink returns a Sink that reports every snapshot through log at
// info level, for stacks run without a Mongo URI configured.
func NewLogSink(log telemetry.Logger) Sink {
	if log == nil {
		log = telemetry.NoopLogger{}
	}
	return &logSink{log: log}
}

func (s *mongoSink) Dump(ctx context.Context, snap Snapshot) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	doc := snapshotDocument{
		SimUID:    snap.SimUID,
		ModelTime: snap.ModelTime,
		Channels:  snap.Channels,
		Timestamp: snap.Timestamp.UTC(),
	}
	_, err := s.coll.InsertOne(ctx, doc)
	return err
}

func (s *logSink) Dump(_ context.Context, snap Snapshot) error {
	s.log.Info(context.Background(), "run debug dump",
		"sim_uid", snap.SimUID,
		"model_time", snap.ModelTime,
		"channels", len(snap.Channels),
	)
	return nil
}
