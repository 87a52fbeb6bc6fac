package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-storefront/web/db"
)

// Recorder persists an admin_notifications row per confirmed order.
type Recorder struct {
	conn          *gorm.DB
	adminPanelURL string
}

func NewRecorder(conn *gorm.DB, adminPanelURL string) *Recorder {
	return &Recorder{conn: conn, adminPanelURL: adminPanelURL}
}

func (r *Recorder) OrderCreated(ctx context.Context, ev OrderCreatedEvent) error {
	orderID := ev.OrderID
	n := db.AdminNotification{
		ID:      uuid.NewString(),
		Type:    db.NotificationNewOrder,
		Title:   "سفارش جدید",
		Message: fmt.Sprintf("سفارش جدید به مبلغ %d تومان ثبت شد.\nآدرس: %s", ev.TotalAmount, ev.ShippingAddress),
		OrderID: &orderID,
		Link:    orderLink(r.adminPanelURL, ev.OrderID),
	}
	if err := r.conn.WithContext(ctx).Create(&n).Error; err != nil {
		return fmt.Errorf("store admin notification: %w", err)
	}
	return nil
}
