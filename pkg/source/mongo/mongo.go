// Package mongo provides a MongoDB-backed data source.
//
// Rows are the documents of one collection, optionally narrowed by a query
// filter. Live updates come from a change stream: inserts, updates, replaces
// and deletes map onto the engine's patch kinds. ObjectID values are
// stringified to their hex form so row identity stays a plain string.
package mongo

import (
	"context"
	"fmt"
	"sync"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/rowkit/rowkit/pkg/source"
	"github.com/rowkit/rowkit/pkg/state"
)

// Config locates the collection and shapes the query.
type Config struct {
	// Collection holds the rows.
	Collection *mongo.Collection
	// Filter optionally narrows the loaded documents. Nil loads everything.
	Filter bson.D
	// Sort optionally fixes the initial order. Nil uses natural order.
	Sort bson.D
}

// Source is a MongoDB-backed data source.
type Source struct {
	coll   *mongo.Collection
	filter bson.D
	sort   bson.D

	mu     sync.Mutex
	subs   []func(source.Patch)
	stream *mongo.ChangeStream
	stop   context.CancelFunc
}

// New creates a MongoDB data source. The caller keeps ownership of the
// underlying client.
func New(cfg Config) *Source {
	filter := cfg.Filter
	if filter == nil {
		filter = bson.D{}
	}
	return &Source{coll: cfg.Collection, filter: filter, sort: cfg.Sort}
}

// Init loads the matching documents.
func (s *Source) Init(ctx context.Context) (source.Result, error) {
	opts := options.Find()
	if s.sort != nil {
		opts.SetSort(s.sort)
	}

	cursor, err := s.coll.Find(ctx, s.filter, opts)
	if err != nil {
		return source.Result{}, fmt.Errorf("find %s: %w", s.coll.Name(), err)
	}
	defer cursor.Close(ctx)

	var rows state.Rows
	for cursor.Next(ctx) {
		var doc bson.M
		if err := cursor.Decode(&doc); err != nil {
			return source.Result{}, fmt.Errorf("decode document: %w", err)
		}
		rows = append(rows, toRow(doc))
	}
	if err := cursor.Err(); err != nil {
		return source.Result{}, fmt.Errorf("cursor: %w", err)
	}

	return source.Result{Rows: rows, TotalCount: len(rows)}, nil
}

// Refresh re-runs the query.
func (s *Source) Refresh(ctx context.Context) (source.Result, error) {
	return s.Init(ctx)
}

// Subscribe starts delivering change-stream patches. The first subscriber
// opens the stream; the listener runs until Destroy. Change streams require
// a replica set; on standalone servers Watch fails and the source silently
// stays static.
func (s *Source) Subscribe(fn func(source.Patch)) (cancel func()) {
	s.mu.Lock()
	s.subs = append(s.subs, fn)
	i := len(s.subs) - 1
	if s.stream == nil && s.stop == nil {
		ctx, stop := context.WithCancel(context.Background())
		opts := options.ChangeStream().SetFullDocument(options.UpdateLookup)
		stream, err := s.coll.Watch(ctx, mongo.Pipeline{}, opts)
		if err == nil {
			s.stream = stream
			s.stop = stop
			go s.listen(ctx, stream)
		} else {
			stop()
		}
	}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		s.subs[i] = nil
		s.mu.Unlock()
	}
}

// changeEvent is the slice of a change-stream document the source cares
// about.
type changeEvent struct {
	OperationType string `bson:"operationType"`
	FullDocument  bson.M `bson:"fullDocument"`
	DocumentKey   struct {
		ID any `bson:"_id"`
	} `bson:"documentKey"`
}

func (s *Source) listen(ctx context.Context, stream *mongo.ChangeStream) {
	for stream.Next(ctx) {
		var ev changeEvent
		if err := stream.Decode(&ev); err != nil {
			continue
		}

		var patch source.Patch
		switch ev.OperationType {
		case "insert":
			patch = source.Patch{Kind: source.KindAppend, Row: toRow(ev.FullDocument)}
		case "update", "replace":
			if ev.FullDocument == nil {
				continue
			}
			patch = source.Patch{Kind: source.KindUpdate, Row: toRow(ev.FullDocument)}
		case "delete":
			patch = source.Patch{Kind: source.KindRemove, ID: stringID(ev.DocumentKey.ID)}
		default:
			continue
		}

		s.deliver(patch)
	}
}

func (s *Source) deliver(patch source.Patch) {
	s.mu.Lock()
	subs := make([]func(source.Patch), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		if sub != nil {
			sub(patch)
		}
	}
}

// Destroy stops the change-stream listener. The client stays open.
func (s *Source) Destroy(ctx context.Context) error {
	s.mu.Lock()
	stream := s.stream
	stop := s.stop
	s.stream = nil
	s.stop = nil
	s.subs = nil
	s.mu.Unlock()

	if stop != nil {
		stop()
	}
	if stream != nil {
		return stream.Close(context.Background())
	}
	return nil
}

// toRow converts a BSON document into a row, stringifying ObjectIDs so row
// identity is a plain string.
func toRow(doc bson.M) state.Row {
	row := make(state.Row, len(doc))
	for k, v := range doc {
		if oid, ok := v.(primitive.ObjectID); ok {
			row[k] = oid.Hex()
			continue
		}
		row[k] = v
	}
	return row
}

func stringID(v any) string {
	if oid, ok := v.(primitive.ObjectID); ok {
		return oid.Hex()
	}
	return fmt.Sprint(v)
}

// Capability assertions.
var (
	_ source.DataSource   = (*Source)(nil)
	_ source.Subscribable = (*Source)(nil)
	_ source.Refresher    = (*Source)(nil)
	_ source.Destroyer    = (*Source)(nil)
)
