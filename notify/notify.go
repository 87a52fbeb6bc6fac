// Package notify delivers the order-created side-channel: an admin
// notification record, an optional admin email and an optional broker event.
// Failures here are reported to the caller but never undo an order.
package notify

import (
	"context"
	"errors"
	"time"
)

type OrderCreatedEvent struct {
	OrderID         string    `json:"order_id"`
	UserID          string    `json:"user_id"`
	TotalAmount     int64     `json:"total_amount"`
	ShippingAddress string    `json:"shipping_address"`
	CreatedAt       time.Time `json:"created_at"`
}

type Notifier interface {
	OrderCreated(ctx context.Context, ev OrderCreatedEvent) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) OrderCreated(ctx context.Context, ev OrderCreatedEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.OrderCreated(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

type Nop struct{}

func (Nop) OrderCreated(context.Context, OrderCreatedEvent) error { return nil }

func orderLink(adminPanelURL, orderID string) string {
	if adminPanelURL == "" {
		return "/admin/orders/" + orderID
	}
	return adminPanelURL + "/admin/orders/" + orderID
}
