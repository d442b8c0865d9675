package subscription

import "context"

// ClientSubscription is the consumer-side handle of a subscription. It can
// stop the stream and observe its lifecycle, but cannot send into it.
type ClientSubscription[T any] struct {
	sub *Subscription[T]
}

func (c *ClientSubscription[T]) Unsubscribe() { c.sub.Unsubscribe() }

func (c *ClientSubscription[T]) UnsubscribeWithContext(ctx context.Context) error {
	return c.sub.UnsubscribeWithContext(ctx)
}

// Err delivers the terminal error, if any, once the stream is closed.
func (c *ClientSubscription[T]) Err() <-chan error { return c.sub.Err() }

// Done is closed when the stream has fully shut down.
func (c *ClientSubscription[T]) Done() <-chan struct{} { return c.sub.Done() }

func (c *ClientSubscription[T]) IsClosed() bool { return c.sub.IsClosed() }
