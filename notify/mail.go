package notify

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

type EmailSender interface {
	SendEmail(to string, subject string, body string) error
}

// Mailer emails the administrator about new orders. Sending happens in the
// background so a slow SMTP server does not hold up the buyer.
type Mailer struct {
	sender        EmailSender
	to            string
	adminPanelURL string
	logger        *zap.Logger
	sync          bool
}

func NewMailer(sender EmailSender, to, adminPanelURL string, logger *zap.Logger) *Mailer {
	return &Mailer{sender: sender, to: to, adminPanelURL: adminPanelURL, logger: logger}
}

func (m *Mailer) OrderCreated(_ context.Context, ev OrderCreatedEvent) error {
	if m.to == "" {
		return nil
	}
	subject, body := orderEmail(ev, orderLink(m.adminPanelURL, ev.OrderID))

	if m.sync {
		return m.sender.SendEmail(m.to, subject, body)
	}
	go func() {
		if err := m.sender.SendEmail(m.to, subject, body); err != nil {
			m.logger.Warn("admin order email failed", zap.String("order_id", ev.OrderID), zap.Error(err))
		}
	}()
	return nil
}

func orderEmail(ev OrderCreatedEvent, link string) (string, string) {
	subject := "سفارش جدید #" + shortID(ev.OrderID)
	body := fmt.Sprintf("یک سفارش جدید ثبت شد.\n\n"+
		"شماره سفارش: %s\n"+
		"مبلغ: %d تومان\n"+
		"آدرس ارسال: %s\n"+
		"زمان: %s\n\n"+
		"مشاهده در پنل مدیریت:\n%s\n",
		ev.OrderID, ev.TotalAmount, ev.ShippingAddress, ev.CreatedAt.Format("2006-01-02 15:04"), link)
	return subject, body
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
