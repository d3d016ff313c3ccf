package amqp

import (
	"context"
	"fmt"

	"saldo/internal/notify"
)

// Notifier publishes threshold events to the queue so the journal worker
// can persist them out of the request path.
type Notifier struct {
	client *Client
}

func NewNotifier(client *Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Notify(ctx context.Context, e notify.Event) error {
	if err := n.client.PublishThreshold(ctx, NewThresholdMessage(e)); err != nil {
		return fmt.Errorf("publish threshold event: %w", err)
	}
	return nil
}
