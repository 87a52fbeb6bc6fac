package checkout

import (
	"context"
	"encoding/hex"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"go-storefront/internal/testutil"
	"go-storefront/notify"
	"go-storefront/payment/gateway"
	"go-storefront/web/db"
)

const merchantID = "11111111-2222-3333-4444-555555555555"

type fakeGateway struct {
	mu        sync.Mutex
	requests  []gateway.PaymentRequest
	verifies  []int64
	requestFn func(req gateway.PaymentRequest) (*gateway.RequestResult, error)
	verifyFn  func(amount int64, authority string) (*gateway.VerifyResult, error)
}

func (f *fakeGateway) Request(_ context.Context, req gateway.PaymentRequest) (*gateway.RequestResult, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.requestFn != nil {
		return f.requestFn(req)
	}
	return &gateway.RequestResult{Code: gateway.CodeSuccess, Authority: "A123"}, nil
}

func (f *fakeGateway) Verify(_ context.Context, amount int64, authority string) (*gateway.VerifyResult, error) {
	f.mu.Lock()
	f.verifies = append(f.verifies, amount)
	f.mu.Unlock()
	if f.verifyFn != nil {
		return f.verifyFn(amount, authority)
	}
	return &gateway.VerifyResult{Code: gateway.CodeSuccess, RefID: 987654}, nil
}

func (f *fakeGateway) StartPayURL(authority string) string {
	return "https://sandbox.zarinpal.com/pg/StartPay/" + authority
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.OrderCreatedEvent
	err    error
}

func (r *recordingNotifier) OrderCreated(_ context.Context, ev notify.OrderCreatedEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

type fixture struct {
	conn     *gorm.DB
	store    *Store
	gw       *fakeGateway
	notifier *recordingNotifier
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := testutil.NewDB(t)
	f := &fixture{
		conn:     conn,
		store:    NewStore(conn),
		gw:       &fakeGateway{},
		notifier: &recordingNotifier{},
	}
	f.svc = NewService(f.store, f.gw, f.notifier, merchantID, zap.NewNop())
	return f
}

func vaseRequest() InitiateRequest {
	return InitiateRequest{
		Amount:      150000,
		Description: "خرید گلدان",
		Mobile:      "09120000000",
		CallbackURL: "https://shop.example.ir/payment/verify",
		OrderData: &OrderData{
			ShippingAddress: "اصفهان، میدان نقش جهان",
			Items: []db.Item{
				{ProductName: "Vase", ProductImage: "/img/vase.jpg", Quantity: 2, Price: 75000},
			},
		},
	}
}

// initiate runs a successful initiation and returns the stored record and the
// token the gateway callback would carry.
func (f *fixture) initiate(t *testing.T, req InitiateRequest) (*db.PendingPayment, string) {
	t.Helper()
	res, err := f.svc.Initiate(context.Background(), "user-1", req)
	require.NoError(t, err)

	p, err := f.store.GetPending(context.Background(), res.PendingID)
	require.NoError(t, err)
	require.NotNil(t, p.VerificationToken)
	return p, *p.VerificationToken
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.conn.Model(model).Count(&n).Error)
	return n
}

func TestInitiateCreatesPendingAndReturnsPaymentURL(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.Initiate(context.Background(), "user-1", vaseRequest())
	require.NoError(t, err)

	assert.Equal(t, "A123", res.Authority)
	assert.Contains(t, res.PaymentURL, "A123")

	p, err := f.store.GetPending(context.Background(), res.PendingID)
	require.NoError(t, err)
	assert.Equal(t, db.PaymentPending, p.Status)
	assert.Equal(t, "user-1", p.UserID)
	assert.Equal(t, int64(150000), p.Amount)
	assert.Equal(t, "A123", *p.Authority)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "Vase", p.Items[0].ProductName)
	assert.Equal(t, 2, p.Items[0].Quantity)

	require.NotNil(t, p.VerificationToken)
	assert.Len(t, *p.VerificationToken, 64)
	_, err = hex.DecodeString(*p.VerificationToken)
	assert.NoError(t, err)

	require.Len(t, f.gw.requests, 1)
	cb, err := url.Parse(f.gw.requests[0].CallbackURL)
	require.NoError(t, err)
	assert.Equal(t, res.PendingID, cb.Query().Get("pending_id"))
	assert.Equal(t, *p.VerificationToken, cb.Query().Get("token"))
	assert.Equal(t, "/payment/verify", cb.Path)
}

func TestInitiateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *InitiateRequest)
	}{
		{"missing callback", func(r *InitiateRequest) { r.CallbackURL = "" }},
		{"missing order data", func(r *InitiateRequest) { r.OrderData = nil }},
		{"zero amount", func(r *InitiateRequest) { r.Amount = 0 }},
		{"negative amount", func(r *InitiateRequest) { r.Amount = -10 }},
		{"missing address", func(r *InitiateRequest) { r.OrderData.ShippingAddress = " " }},
		{"no items", func(r *InitiateRequest) { r.OrderData.Items = nil }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			req := vaseRequest()
			tt.mutate(&req)

			_, err := f.svc.Initiate(context.Background(), "user-1", req)

			assert.ErrorIs(t, err, ErrValidation)
			assert.Zero(t, f.count(t, &db.PendingPayment{}))
			assert.Empty(t, f.gw.requests)
		})
	}
}

func TestInitiateWithoutIdentity(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Initiate(context.Background(), "", vaseRequest())

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, f.count(t, &db.PendingPayment{}))
}

func TestInitiateConfigurationError(t *testing.T) {
	for _, id := range []string{"", "too-short"} {
		f := newFixture(t)
		svc := NewService(f.store, f.gw, nil, id, nil)

		_, err := svc.Initiate(context.Background(), "user-1", vaseRequest())

		assert.ErrorIs(t, err, ErrConfiguration)
		assert.Zero(t, f.count(t, &db.PendingPayment{}))
	}
}

func TestInitiateGatewayRejectionDeletesPending(t *testing.T) {
	f := newFixture(t)
	f.gw.requestFn = func(gateway.PaymentRequest) (*gateway.RequestResult, error) {
		return nil, &gateway.Error{Code: -9, Message: "validation error", Details: []byte(`{"code":-9}`)}
	}

	_, err := f.svc.Initiate(context.Background(), "user-1", vaseRequest())

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, -9, gwErr.Code)
	assert.False(t, gwErr.Retryable)
	assert.JSONEq(t, `{"code":-9}`, string(gwErr.Details))
	assert.Zero(t, f.count(t, &db.PendingPayment{}))
}

func TestInitiateGatewayUnavailableIsRetryable(t *testing.T) {
	f := newFixture(t)
	f.gw.requestFn = func(gateway.PaymentRequest) (*gateway.RequestResult, error) {
		return nil, context.DeadlineExceeded
	}

	_, err := f.svc.Initiate(context.Background(), "user-1", vaseRequest())

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, gwErr.Retryable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Zero(t, f.count(t, &db.PendingPayment{}))
}

func TestInitiateKeepsCallbackQuery(t *testing.T) {
	got, err := callbackURL("https://shop.example.ir/verify?lang=fa", "p-1", "tok")
	require.NoError(t, err)

	u, err := url.Parse(got)
	require.NoError(t, err)
	assert.Equal(t, "fa", u.Query().Get("lang"))
	assert.Equal(t, "p-1", u.Query().Get("pending_id"))
	assert.Equal(t, "tok", u.Query().Get("token"))
}

func TestVerifyValidation(t *testing.T) {
	f := newFixture(t)

	for _, req := range []VerifyRequest{
		{PendingID: "p", Token: "t"},
		{Authority: "A", Token: "t"},
		{Authority: "A", PendingID: "p"},
	} {
		_, err := f.svc.Verify(context.Background(), req)
		assert.ErrorIs(t, err, ErrValidation)
	}
}

func TestVerifyUnknownPending(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Verify(context.Background(), VerifyRequest{Authority: "A123", PendingID: "missing", Token: "t"})

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestVerifyRejectsWrongToken(t *testing.T) {
	f := newFixture(t)
	p, token := f.initiate(t, vaseRequest())

	wrong := []string{
		token[:63],
		token + "0",
		flip(token, 0),
		flip(token, 31),
		flip(token, 63),
	}
	for _, w := range wrong {
		_, err := f.svc.Verify(context.Background(), VerifyRequest{Authority: "A123", PendingID: p.ID, Token: w})
		assert.ErrorIs(t, err, ErrForbidden)
	}

	assert.Empty(t, f.gw.verifies)
	assert.Zero(t, f.count(t, &db.Order{}))

	still, err := f.store.GetPending(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, db.PaymentPending, still.Status)
}

func TestVerifyRejectsForeignAuthority(t *testing.T) {
	f := newFixture(t)
	p, token := f.initiate(t, vaseRequest())

	_, err := f.svc.Verify(context.Background(), VerifyRequest{Authority: "B999", PendingID: p.ID, Token: token})

	assert.ErrorIs(t, err, ErrForbidden)
	assert.Empty(t, f.gw.verifies)
}

func TestVerifySuccessCreatesOrder(t *testing.T) {
	f := newFixture(t)
	p, token := f.initiate(t, vaseRequest())

	res, err := f.svc.Verify(context.Background(), VerifyRequest{Authority: "A123", PendingID: p.ID, Token: token})
	require.NoError(t, err)

	assert.Equal(t, "987654", res.RefID)
	assert.False(t, res.AlreadyVerified)
	assert.Equal(t, []int64{150000}, f.gw.verifies)

	var order db.Order
	require.NoError(t, f.conn.Preload("Items").First(&order, "id = ?", res.OrderID).Error)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, int64(150000), order.TotalAmount)
	assert.Equal(t, db.OrderProcessing, order.Status)
	assert.Equal(t, p.ShippingAddress, order.ShippingAddress)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "Vase", order.Items[0].ProductName)
	assert.Equal(t, int64(75000), order.Items[0].Price)

	done, err := f.store.GetPending(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, db.PaymentCompleted, done.Status)
	assert.Nil(t, done.VerificationToken)
	assert.Equal(t, res.OrderID, *done.OrderID)
	assert.Equal(t, "987654", *done.RefID)

	require.Len(t, f.notifier.events, 1)
	ev := f.notifier.events[0]
	assert.Equal(t, res.OrderID, ev.OrderID)
	assert.Equal(t, "user-1", ev.UserID)
	assert.Equal(t, int64(150000), ev.TotalAmount)
	assert.Equal(t, p.ShippingAddress, ev.ShippingAddress)
	assert.False(t, ev.CreatedAt.IsZero())
}

func TestVerifyTwiceReturnsSameOrder(t *testing.T) {
	f := newFixture(t)
	p, token := f.initiate(t, vaseRequest())
	req := VerifyRequest{Authority: "A123", PendingID: p.ID, Token: token}

	first, err := f.svc.Verify(context.Background(), req)
	require.NoError(t, err)

	// the token was cleared by the first call, the completed short-circuit still answers
	second, err := f.svc.Verify(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, second.AlreadyVerified)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.RefID, second.RefID)
	assert.Len(t, f.gw.verifies, 1)
	assert.Equal(t, int64(1), f.count(t, &db.Order{}))
	assert.Equal(t, int64(1), f.count(t, &db.OrderItem{}))
	assert.Len(t, f.notifier.events, 1)
}

func TestVerifyAfterLostClaimCreatesOneOrder(t *testing.T) {
	f := newFixture(t)
	p, token := f.initiate(t, vaseRequest())
	req := VerifyRequest{Authority: "A123", PendingID: p.ID, Token: token}

	// both callers pass the token check before either settles
	pending, err := f.store.GetPending(context.Background(), p.ID)
	require.NoError(t, err)

	_, err = f.store.CompletePending(context.Background(), pending, "1")
	require.NoError(t, err)
	_, err = f.store.CompletePending(context.Background(), pending, "2")
	assert.ErrorIs(t, err, errNotPending)

	const callers = 5
	var wg sync.WaitGroup
	results := make([]*VerifyResult, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.Verify(context.Background(), req)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	for _, res := range results {
		require.NotNil(t, res)
		assert.Equal(t, results[0].OrderID, res.OrderID)
	}
	assert.Equal(t, int64(1), f.count(t, &db.Order{}))
}

func TestVerifyGatewayFailureMarksFailed(t *testing.T) {
	f := newFixture(t)
	p, token := f.initiate(t, vaseRequest())
	f.gw.verifyFn = func(int64, string) (*gateway.VerifyResult, error) {
		return nil, &gateway.Error{Code: -51, Message: "payment failed", Details: []byte(`{"code":-51}`)}
	}

	_, err := f.svc.Verify(context.Background(), VerifyRequest{Authority: "A123", PendingID: p.ID, Token: token})

	var failed *PaymentFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, -51, failed.Code)

	got, err := f.store.GetPending(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, db.PaymentFailed, got.Status)
	assert.Nil(t, got.VerificationToken)
	assert.Zero(t, f.count(t, &db.Order{}))
	assert.Empty(t, f.notifier.events)

	// the consumed token can not be replayed
	_, err = f.svc.Verify(context.Background(), VerifyRequest{Authority: "A123", PendingID: p.ID, Token: token})
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestVerifyGatewayUnavailableKeepsPending(t *testing.T) {
	f := newFixture(t)
	p, token := f.initiate(t, vaseRequest())
	f.gw.verifyFn = func(int64, string) (*gateway.VerifyResult, error) {
		return nil, errors.New("connection reset")
	}

	_, err := f.svc.Verify(context.Background(), VerifyRequest{Authority: "A123", PendingID: p.ID, Token: token})

	var gwErr *GatewayError
	require.True(t, errors.As(err, &gwErr))
	assert.True(t, gwErr.Retryable)

	got, err := f.store.GetPending(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, db.PaymentPending, got.Status)
	assert.Equal(t, token, *got.VerificationToken)

	// the retry succeeds once the gateway is back
	f.gw.verifyFn = nil
	res, err := f.svc.Verify(context.Background(), VerifyRequest{Authority: "A123", PendingID: p.ID, Token: token})
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderID)
}

func TestVerifyAlreadyVerifiedCodeIsSuccess(t *testing.T) {
	f := newFixture(t)
	p, token := f.initiate(t, vaseRequest())
	f.gw.verifyFn = func(int64, string) (*gateway.VerifyResult, error) {
		return &gateway.VerifyResult{Code: gateway.CodeAlreadyVerified, RefID: 42}, nil
	}

	res, err := f.svc.Verify(context.Background(), VerifyRequest{Authority: "A123", PendingID: p.ID, Token: token})
	require.NoError(t, err)
	assert.Equal(t, "42", res.RefID)
	assert.Equal(t, int64(1), f.count(t, &db.Order{}))
}

func TestVerifyIncrementsCouponOnce(t *testing.T) {
	f := newFixture(t)
	coupon := db.Coupon{ID: "c-1", Code: "NOWRUZ", DiscountPercent: 10, UsedCount: 3, Active: true}
	require.NoError(t, f.conn.Create(&coupon).Error)

	req := vaseRequest()
	couponID := coupon.ID
	req.OrderData.CouponID = &couponID
	p, token := f.initiate(t, req)
	require.Equal(t, "c-1", *p.CouponID)

	verify := VerifyRequest{Authority: "A123", PendingID: p.ID, Token: token}
	_, err := f.svc.Verify(context.Background(), verify)
	require.NoError(t, err)
	_, err = f.svc.Verify(context.Background(), verify)
	require.NoError(t, err)

	var got db.Coupon
	require.NoError(t, f.conn.First(&got, "id = ?", "c-1").Error)
	assert.Equal(t, 4, got.UsedCount)
}

func TestVerifyNotifierFailureDoesNotFailOrder(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")
	p, token := f.initiate(t, vaseRequest())

	res, err := f.svc.Verify(context.Background(), VerifyRequest{Authority: "A123", PendingID: p.ID, Token: token})
	require.NoError(t, err)
	assert.NotEmpty(t, res.OrderID)
	assert.Equal(t, int64(1), f.count(t, &db.Order{}))
}

func TestSweeperExpiresStalePending(t *testing.T) {
	f := newFixture(t)
	stale, _ := f.initiate(t, vaseRequest())
	fresh, _ := f.initiate(t, vaseRequest())

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, f.conn.Model(&db.PendingPayment{}).Where("id = ?", stale.ID).Update("created_at", old).Error)

	n, err := NewSweeper(f.store, 24*time.Hour, zap.NewNop()).Sweep(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := f.store.GetPending(context.Background(), stale.ID)
	require.NoError(t, err)
	assert.Equal(t, db.PaymentFailed, got.Status)
	assert.Nil(t, got.VerificationToken)

	got, err = f.store.GetPending(context.Background(), fresh.ID)
	require.NoError(t, err)
	assert.Equal(t, db.PaymentPending, got.Status)
}

func flip(s string, i int) string {
	b := []byte(s)
	if b[i] == '0' {
		b[i] = '1'
	} else {
		b[i] = '0'
	}
	return string(b)
}
