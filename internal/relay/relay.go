// Package relay mirrors the deck over Redis pub/sub: snapshots are published
// to <channel>:state and button presses arriving on <channel>:press are fed
// into the dispatch queue.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/redis/go-redis/v9"

	"webdeck/internal/hub"
)

// Enqueuer receives relayed button presses.
type Enqueuer interface {
	Enqueue(id string)
}

// PubSub is the subset of a Redis client the relay uses.
type PubSub interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
	Subscribe(ctx context.Context, channels ...string) *redis.PubSub
}

type Relay struct {
	client     PubSub
	channel    string
	queue      Enqueuer
	newBackOff func() backoff.BackOff
}

func New(client PubSub, channel string, queue Enqueuer) *Relay {
	return &Relay{
		client:     client,
		channel:    channel,
		queue:      queue,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = 0
			return b
		},
	}
}

// Dial connects to Redis at addr and checks the connection.
func Dial(ctx context.Context, addr string) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", addr, err)
	}
	log.Printf("[relay] connected to Redis at %s", addr)
	return rdb, nil
}

func (r *Relay) StateChannel() string { return r.channel + ":state" }

func (r *Relay) PressChannel() string { return r.channel + ":press" }

// Publish sends a snapshot payload to the state channel.
func (r *Relay) Publish(ctx context.Context, state []byte) error {
	if err := r.client.Publish(ctx, r.StateChannel(), state).Err(); err != nil {
		return fmt.Errorf("publish state: %w", err)
	}
	return nil
}

// Run subscribes to the press channel until ctx ends, resubscribing with
// exponential backoff whenever the subscription drops.
func (r *Relay) Run(ctx context.Context) error {
	op := func() error {
		err := r.subscribe(ctx)
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Printf("[relay] subscription lost: %v, retrying in %s", err, wait)
	}
	err := backoff.RetryNotify(op, backoff.WithContext(r.newBackOff(), ctx), notify)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}

var errSubscriptionClosed = errors.New("subscription closed")

func (r *Relay) subscribe(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.PressChannel())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", r.PressChannel(), err)
	}
	log.Printf("[relay] subscribed to %s", r.PressChannel())

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return errSubscriptionClosed
			}
			r.handle(msg.Payload)
		}
	}
}

func (r *Relay) handle(payload string) {
	id, err := hub.ParseTrigger([]byte(payload))
	if err != nil {
		log.Printf("[relay] ignoring message: %v", err)
		return
	}
	r.queue.Enqueue(id)
}
