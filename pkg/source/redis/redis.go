// Package redis provides a Redis-backed data source.
//
// Rows live in a Redis hash keyed by row id, each value a JSON-encoded row.
// Live updates travel as JSON-encoded patches over a pub/sub channel, so any
// process holding the same key and channel sees the same collection. Writers
// go through Publish, which applies the patch to the hash and broadcasts it
// in one call.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rowkit/rowkit/pkg/source"
	"github.com/rowkit/rowkit/pkg/state"
)

// Config locates the collection in Redis.
type Config struct {
	// Key is the hash holding the rows.
	Key string
	// Channel is the pub/sub channel carrying patches. Empty defaults to
	// Key + ":patches".
	Channel string
	// IDKey is the row identity field.
	IDKey string
}

// Source is a Redis-backed data source.
type Source struct {
	client  *goredis.Client
	key     string
	channel string
	idKey   string

	mu     sync.Mutex
	subs   map[int]func(source.Patch)
	next   int
	pubsub *goredis.PubSub
}

// New creates a Redis data source on an existing client. The caller keeps
// ownership of the client.
func New(client *goredis.Client, cfg Config) *Source {
	channel := cfg.Channel
	if channel == "" {
		channel = cfg.Key + ":patches"
	}
	return &Source{
		client:  client,
		key:     cfg.Key,
		channel: channel,
		idKey:   cfg.IDKey,
		subs:    map[int]func(source.Patch){},
	}
}

// Init loads every row from the hash. Hash fields are unordered, so rows
// come back sorted by id for a deterministic initial order.
func (s *Source) Init(ctx context.Context) (source.Result, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return source.Result{}, fmt.Errorf("load %s: %w", s.key, err)
	}

	ids := make([]string, 0, len(fields))
	for id := range fields {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	rows := make(state.Rows, 0, len(ids))
	for _, id := range ids {
		var row state.Row
		if err := json.Unmarshal([]byte(fields[id]), &row); err != nil {
			return source.Result{}, fmt.Errorf("decode row %s: %w", id, err)
		}
		rows = append(rows, row)
	}

	return source.Result{Rows: rows, TotalCount: len(rows)}, nil
}

// Refresh reloads the full hash.
func (s *Source) Refresh(ctx context.Context) (source.Result, error) {
	return s.Init(ctx)
}

// Subscribe starts delivering pub/sub patches. The first subscriber opens
// the pub/sub connection; the listener runs until Destroy.
func (s *Source) Subscribe(fn func(source.Patch)) (cancel func()) {
	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = fn
	if s.pubsub == nil {
		s.pubsub = s.client.Subscribe(context.Background(), s.channel)
		go s.listen(s.pubsub.Channel())
	}
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Source) listen(ch <-chan *goredis.Message) {
	for msg := range ch {
		var patch source.Patch
		if err := json.Unmarshal([]byte(msg.Payload), &patch); err != nil {
			continue
		}

		s.mu.Lock()
		ids := make([]int, 0, len(s.subs))
		for id := range s.subs {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		subs := make([]func(source.Patch), len(ids))
		for i, id := range ids {
			subs[i] = s.subs[id]
		}
		s.mu.Unlock()

		for _, sub := range subs {
			sub(patch)
		}
	}
}

// Publish applies a patch to the backing hash and broadcasts it on the
// pub/sub channel.
func (s *Source) Publish(ctx context.Context, patch source.Patch) error {
	if err := s.apply(ctx, patch); err != nil {
		return err
	}

	payload, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode patch: %w", err)
	}
	if err := s.client.Publish(ctx, s.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish patch: %w", err)
	}
	return nil
}

func (s *Source) apply(ctx context.Context, patch source.Patch) error {
	switch patch.Kind {
	case source.KindReplaceAll:
		if err := s.client.Del(ctx, s.key).Err(); err != nil {
			return fmt.Errorf("clear %s: %w", s.key, err)
		}
		for _, row := range patch.Rows {
			if err := s.setRow(ctx, row); err != nil {
				return err
			}
		}
	case source.KindAppend, source.KindUpdate:
		return s.setRow(ctx, patch.Row)
	case source.KindRemove:
		if err := s.client.HDel(ctx, s.key, patch.ID).Err(); err != nil {
			return fmt.Errorf("remove row %s: %w", patch.ID, err)
		}
	default:
		return fmt.Errorf("unknown patch kind %q", patch.Kind)
	}
	return nil
}

func (s *Source) setRow(ctx context.Context, row state.Row) error {
	id := row.ID(s.idKey)
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode row %s: %w", id, err)
	}
	if err := s.client.HSet(ctx, s.key, id, data).Err(); err != nil {
		return fmt.Errorf("store row %s: %w", id, err)
	}
	return nil
}

// Destroy closes the pub/sub connection. The client stays open.
func (s *Source) Destroy(ctx context.Context) error {
	s.mu.Lock()
	pubsub := s.pubsub
	s.pubsub = nil
	s.subs = map[int]func(source.Patch){}
	s.mu.Unlock()

	if pubsub != nil {
		return pubsub.Close()
	}
	return nil
}

// Capability assertions.
var (
	_ source.DataSource   = (*Source)(nil)
	_ source.Subscribable = (*Source)(nil)
	_ source.Refresher    = (*Source)(nil)
	_ source.Destroyer    = (*Source)(nil)
)
