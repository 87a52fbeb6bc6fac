package checkout

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"go-storefront/notify"
	"go-storefront/utils"
	"go-storefront/web/db"
)

type VerifyRequest struct {
	Authority string `json:"authority"`
	PendingID string `json:"pending_id"`
	Token     string `json:"token"`
}

type VerifyResult struct {
	RefID   string
	OrderID string
	// AlreadyVerified is set when an earlier call completed the payment.
	AlreadyVerified bool
}

// Verify confirms a gateway callback and turns the pending payment into an
// order. Repeated calls after success return the same order.
func (s *Service) Verify(ctx context.Context, req VerifyRequest) (*VerifyResult, error) {
	if s.configErr != nil {
		return nil, s.configErr
	}
	if req.Authority == "" || req.PendingID == "" || req.Token == "" {
		return nil, ErrValidation
	}

	p, err := s.store.GetPending(ctx, req.PendingID)
	if err != nil {
		return nil, err
	}

	// checked before the token: a completed record no longer has one
	if p.Status == db.PaymentCompleted {
		return alreadyVerified(p), nil
	}

	if !utils.TokensEqual(deref(p.VerificationToken), req.Token) {
		s.logger.Warn("verification token mismatch", zap.String("pending_id", p.ID))
		return nil, ErrForbidden
	}
	if p.Authority != nil && *p.Authority != req.Authority {
		s.logger.Warn("authority mismatch", zap.String("pending_id", p.ID), zap.String("authority", req.Authority))
		return nil, fmt.Errorf("%w: authority does not belong to this payment", ErrForbidden)
	}

	// the stored amount, never one supplied by the client
	res, err := s.gateway.Verify(ctx, p.Amount, req.Authority)
	if err != nil {
		gwErr := toGatewayError(err)
		if gwErr.Retryable {
			s.logger.Warn("payment verify unavailable", zap.String("pending_id", p.ID), zap.Error(err))
			return nil, gwErr
		}
		return nil, s.fail(ctx, p, gwErr)
	}

	refID := strconv.FormatInt(res.RefID, 10)
	done, err := s.store.CompletePending(ctx, p, refID)
	if errors.Is(err, errNotPending) {
		return s.settledElsewhere(ctx, p.ID)
	}
	if err != nil {
		s.logger.Error("complete pending payment",
			zap.String("pending_id", p.ID),
			zap.String("ref_id", refID),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	if p.CouponID != nil && !done.CouponApplied {
		s.logger.Warn("coupon not found for completed payment", zap.String("pending_id", p.ID), zap.String("coupon_id", *p.CouponID))
	}

	s.logger.Info("payment verified",
		zap.String("pending_id", p.ID),
		zap.String("order_id", done.Order.ID),
		zap.String("ref_id", refID),
		zap.Int("code", res.Code))

	s.emit(ctx, done.Order)

	return &VerifyResult{RefID: refID, OrderID: done.Order.ID}, nil
}

func (s *Service) fail(ctx context.Context, p *db.PendingPayment, gwErr *GatewayError) error {
	if err := s.store.FailPending(ctx, p.ID); err != nil && !errors.Is(err, errNotPending) {
		s.logger.Error("mark pending payment failed", zap.String("pending_id", p.ID), zap.Error(err))
	}
	s.logger.Info("payment failed", zap.String("pending_id", p.ID), zap.Int("code", gwErr.Code))
	return &PaymentFailedError{Code: gwErr.Code, Message: gwErr.Message, Details: gwErr.Details}
}

// settledElsewhere handles losing the completion race to a concurrent call.
func (s *Service) settledElsewhere(ctx context.Context, id string) (*VerifyResult, error) {
	p, err := s.store.GetPending(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status == db.PaymentCompleted {
		return alreadyVerified(p), nil
	}
	// verified by the gateway but failed here (expired by the sweeper)
	s.logger.Error("verified payment is no longer pending",
		zap.String("pending_id", p.ID),
		zap.String("status", p.Status))
	return nil, &PaymentFailedError{Message: "payment is no longer pending"}
}

func (s *Service) emit(ctx context.Context, o db.Order) {
	createdAt := o.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	ev := notify.OrderCreatedEvent{
		OrderID:         o.ID,
		UserID:          o.UserID,
		TotalAmount:     o.TotalAmount,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       createdAt,
	}
	if err := s.notifier.OrderCreated(context.WithoutCancel(ctx), ev); err != nil {
		s.logger.Warn("order notification failed", zap.String("order_id", o.ID), zap.Error(err))
	}
}

func alreadyVerified(p *db.PendingPayment) *VerifyResult {
	return &VerifyResult{
		RefID:           deref(p.RefID),
		OrderID:         deref(p.OrderID),
		AlreadyVerified: true,
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
