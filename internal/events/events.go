// Package events contains a typed discovery-event bus used to let a caller
// observe FeedInfo results as they are found, rather than waiting for a
// crawl to finish. The Producer/Consumer capability split keeps the send
// and drain sides independently mockable.
package events

import "github.com/feedsearch/feedsearch/internal/types"

// Producer enqueues a discovered feed onto the bus.
type Producer interface {
	Produce(*types.FeedInfo) error
}

// Consumer drains discovered feeds off the bus into a push-only channel.
type Consumer interface {
	Consume(chan<- *types.FeedInfo) error
}

// Bus defines the behavior of a simple in-process feed-discovery bus.
type Bus interface {
	Producer
	Consumer
	Close()
}

// ChannelBus is a Bus backed by a single unbuffered channel.
type ChannelBus struct {
	feeds chan *types.FeedInfo
}

// NewChannelBus creates a new ChannelBus.
func NewChannelBus() *ChannelBus {
	return &ChannelBus{feeds: make(chan *types.FeedInfo)}
}

// Produce sends a discovered feed onto the bus. It blocks until a consumer
// receives it or the bus is closed, in which case it returns the recover
// from the closed-channel send panic as an error.
func (b *ChannelBus) Produce(info *types.FeedInfo) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errClosedBus
		}
	}()
	b.feeds <- info
	return nil
}

// Consume forwards every feed produced on the bus into out until the bus is
// closed.
func (b *ChannelBus) Consume(out chan<- *types.FeedInfo) error {
	for info := range b.feeds {
		out <- info
	}
	return nil
}

// Close closes the underlying channel, unblocking any pending Consume.
func (b *ChannelBus) Close() {
	close(b.feeds)
}

type busError string

func (e busError) Error() string { return string(e) }

const errClosedBus = busError("events: produce on closed bus")
