package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"go-storefront/payment/gateway"
	"go-storefront/utils"
	"go-storefront/web/db"
)

type InitiateRequest struct {
	Amount      int64      `json:"amount"`
	Description string     `json:"description"`
	Mobile      string     `json:"mobile"`
	CallbackURL string     `json:"callback_url"`
	OrderData   *OrderData `json:"order_data"`
}

type OrderData struct {
	ShippingAddress string    `json:"shipping_address"`
	Items           []db.Item `json:"items"`
	CouponID        *string   `json:"coupon_id"`
}

type InitiateResult struct {
	PendingID  string
	Authority  string
	PaymentURL string
}

func (r InitiateRequest) validate() error {
	if r.Amount <= 0 {
		return fmt.Errorf("%w: amount must be positive", ErrValidation)
	}
	if strings.TrimSpace(r.CallbackURL) == "" {
		return fmt.Errorf("%w: callback_url", ErrValidation)
	}
	if _, err := url.Parse(r.CallbackURL); err != nil {
		return fmt.Errorf("%w: callback_url: %v", ErrValidation, err)
	}
	if r.OrderData == nil {
		return fmt.Errorf("%w: order_data", ErrValidation)
	}
	if strings.TrimSpace(r.OrderData.ShippingAddress) == "" {
		return fmt.Errorf("%w: order_data.shipping_address", ErrValidation)
	}
	if len(r.OrderData.Items) == 0 {
		return fmt.Errorf("%w: order_data.items", ErrValidation)
	}
	return nil
}

// Initiate stores a pending payment for userID and asks the gateway for an
// authority. userID must come from the authenticated identity.
func (s *Service) Initiate(ctx context.Context, userID string, req InitiateRequest) (*InitiateResult, error) {
	if s.configErr != nil {
		return nil, s.configErr
	}
	if userID == "" {
		return nil, ErrUnauthorized
	}
	if err := req.validate(); err != nil {
		return nil, err
	}

	token, err := utils.GenerateVerificationToken()
	if err != nil {
		return nil, fmt.Errorf("generate verification token: %w", err)
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = defaultDescription
	}

	p := &db.PendingPayment{
		ID:                uuid.NewString(),
		UserID:            userID,
		Amount:            req.Amount,
		Description:       description,
		Mobile:            req.Mobile,
		ShippingAddress:   req.OrderData.ShippingAddress,
		Items:             req.OrderData.Items,
		Status:            db.PaymentPending,
		VerificationToken: &token,
	}
	if c := req.OrderData.CouponID; c != nil && *c != "" {
		p.CouponID = c
	}

	if err := s.store.CreatePending(ctx, p); err != nil {
		s.logger.Error("create pending payment", zap.String("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	callback, err := callbackURL(req.CallbackURL, p.ID, token)
	if err != nil {
		s.discard(ctx, p.ID)
		return nil, fmt.Errorf("%w: callback_url: %v", ErrValidation, err)
	}

	res, err := s.gateway.Request(ctx, gateway.PaymentRequest{
		Amount:      p.Amount,
		Description: description,
		Mobile:      req.Mobile,
		CallbackURL: callback,
	})
	if err != nil {
		s.discard(ctx, p.ID)
		s.logger.Warn("payment request rejected", zap.String("pending_id", p.ID), zap.Error(err))
		return nil, toGatewayError(err)
	}

	if err := s.store.SetAuthority(ctx, p.ID, res.Authority); err != nil {
		s.logger.Error("store authority", zap.String("pending_id", p.ID), zap.String("authority", res.Authority), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStore, err)
	}

	s.logger.Info("payment initiated",
		zap.String("pending_id", p.ID),
		zap.String("authority", res.Authority),
		zap.Int64("amount", p.Amount))

	return &InitiateResult{
		PendingID:  p.ID,
		Authority:  res.Authority,
		PaymentURL: s.gateway.StartPayURL(res.Authority),
	}, nil
}

// discard removes a pending record whose gateway request never went through.
// The request context may already be done, so a fresh one is used.
func (s *Service) discard(ctx context.Context, id string) {
	if err := s.store.DeletePending(context.WithoutCancel(ctx), id); err != nil {
		s.logger.Error("delete orphaned pending payment", zap.String("pending_id", id), zap.Error(err))
	}
}

// callbackURL adds pending_id and token to the client's callback, keeping
// whatever query it already has.
func callbackURL(base, pendingID, token string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("pending_id", pendingID)
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func toGatewayError(err error) *GatewayError {
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		return &GatewayError{Code: gwErr.Code, Message: gwErr.Message, Details: gwErr.Details, Err: err}
	}
	return &GatewayError{Message: err.Error(), Retryable: true, Err: err}
}
