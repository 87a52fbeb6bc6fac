package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"go-storefront/web/db"
)

// errNotPending is returned by the conditional transitions when another call
// already moved the record out of pending.
var errNotPending = errors.New("pending payment is no longer pending")

// Store is the pending payment store and the order writer.
type Store struct {
	conn *gorm.DB
}

func NewStore(conn *gorm.DB) *Store {
	return &Store{conn: conn}
}

func (s *Store) CreatePending(ctx context.Context, p *db.PendingPayment) error {
	return s.conn.WithContext(ctx).Create(p).Error
}

func (s *Store) SetAuthority(ctx context.Context, id, authority string) error {
	return s.conn.WithContext(ctx).Model(&db.PendingPayment{}).
		Where("id = ?", id).
		Update("authority", authority).Error
}

func (s *Store) DeletePending(ctx context.Context, id string) error {
	return s.conn.WithContext(ctx).Delete(&db.PendingPayment{}, "id = ?", id).Error
}

func (s *Store) GetPending(ctx context.Context, id string) (*db.PendingPayment, error) {
	var p db.PendingPayment
	err := s.conn.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) ListPending(ctx context.Context, userID string) ([]db.PendingPayment, error) {
	var out []db.PendingPayment
	err := s.conn.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(100).
		Find(&out).Error
	return out, err
}

// FailPending moves a pending record to failed and consumes its token.
func (s *Store) FailPending(ctx context.Context, id string) error {
	res := s.conn.WithContext(ctx).Model(&db.PendingPayment{}).
		Where("id = ? AND status = ?", id, db.PaymentPending).
		Updates(map[string]interface{}{
			"status":             db.PaymentFailed,
			"verification_token": nil,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return errNotPending
	}
	return nil
}

// ExpirePending fails every pending record created before cutoff.
func (s *Store) ExpirePending(ctx context.Context, cutoff time.Time) (int64, error) {
	res := s.conn.WithContext(ctx).Model(&db.PendingPayment{}).
		Where("status = ? AND created_at < ?", db.PaymentPending, cutoff).
		Updates(map[string]interface{}{
			"status":             db.PaymentFailed,
			"verification_token": nil,
		})
	return res.RowsAffected, res.Error
}

type completion struct {
	Order         db.Order
	CouponApplied bool
}

// CompletePending settles a verified payment in one transaction: the pending
// record is claimed with a conditional update, then the order, its items and
// the coupon usage are written. Only the caller whose claim succeeds creates
// an order; a losing caller gets errNotPending and nothing is written.
func (s *Store) CompletePending(ctx context.Context, p *db.PendingPayment, refID string) (*completion, error) {
	var out completion

	err := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&db.PendingPayment{}).
			Where("id = ? AND status = ?", p.ID, db.PaymentPending).
			Updates(map[string]interface{}{
				"status":             db.PaymentCompleted,
				"ref_id":             refID,
				"verification_token": nil,
			})
		if res.Error != nil {
			return fmt.Errorf("claim pending payment: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return errNotPending
		}

		order := db.Order{
			ID:              uuid.NewString(),
			UserID:          p.UserID,
			ShippingAddress: p.ShippingAddress,
			TotalAmount:     p.Amount,
			Status:          db.OrderProcessing,
		}
		if err := tx.Create(&order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		items := make([]db.OrderItem, 0, len(p.Items))
		for _, it := range p.Items {
			items = append(items, db.OrderItem{
				OrderID:      order.ID,
				ProductName:  it.ProductName,
				ProductImage: it.ProductImage,
				Quantity:     it.Quantity,
				Price:        it.Price,
			})
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return fmt.Errorf("create order items: %w", err)
			}
		}
		order.Items = items

		if p.CouponID != nil && *p.CouponID != "" {
			res := tx.Model(&db.Coupon{}).
				Where("id = ?", *p.CouponID).
				UpdateColumn("used_count", gorm.Expr("used_count + ?", 1))
			if res.Error != nil {
				return fmt.Errorf("increment coupon usage: %w", res.Error)
			}
			out.CouponApplied = res.RowsAffected == 1
		}

		if err := tx.Model(&db.PendingPayment{}).
			Where("id = ?", p.ID).
			Update("order_id", order.ID).Error; err != nil {
			return fmt.Errorf("link order: %w", err)
		}

		out.Order = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
