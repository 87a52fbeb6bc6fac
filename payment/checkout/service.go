package checkout

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"go-storefront/notify"
	"go-storefront/payment/gateway"
)

const defaultDescription = "پرداخت سفارش فروشگاه سفال"

// Gateway is the part of the payment provider the checkout flow relies on.
type Gateway interface {
	Request(ctx context.Context, req gateway.PaymentRequest) (*gateway.RequestResult, error)
	Verify(ctx context.Context, amount int64, authority string) (*gateway.VerifyResult, error)
	StartPayURL(authority string) string
}

type Service struct {
	store     *Store
	gateway   Gateway
	notifier  notify.Notifier
	logger    *zap.Logger
	configErr error
}

// NewService checks the merchant credential once. A bad credential does not
// stop construction; every Initiate and Verify call fails with
// ErrConfiguration instead.
func NewService(store *Store, gw Gateway, notifier notify.Notifier, merchantID string, logger *zap.Logger) *Service {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		store:    store,
		gateway:  gw,
		notifier: notifier,
		logger:   logger,
	}

	switch {
	case merchantID == "":
		s.configErr = fmt.Errorf("%w: merchant id is not set", ErrConfiguration)
	case !gateway.ValidMerchantID(merchantID):
		s.configErr = fmt.Errorf("%w: merchant id must be %d characters", ErrConfiguration, gateway.MerchantIDLength)
	}
	if s.configErr != nil {
		logger.Warn("payment endpoints disabled", zap.Error(s.configErr))
	}
	return s
}

// ConfigErr reports the merchant credential problem found at construction.
func (s *Service) ConfigErr() error {
	return s.configErr
}

// PaymentURL is the gateway redirect for an authority.
func (s *Service) PaymentURL(authority string) string {
	return s.gateway.StartPayURL(authority)
}
