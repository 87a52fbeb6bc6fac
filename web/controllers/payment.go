package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"go-storefront/payment/checkout"
	"go-storefront/payment/qrcode"
	"go-storefront/web/db"
)

type PaymentController struct {
	svc    *checkout.Service
	store  *checkout.Store
	logger *zap.Logger
}

func NewPaymentController(svc *checkout.Service, store *checkout.Store, logger *zap.Logger) *PaymentController {
	return &PaymentController{svc: svc, store: store, logger: logger}
}

// Request starts a checkout for the authenticated user.
func (pc *PaymentController) Request(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req checkout.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	res, err := pc.svc.Initiate(c.Request.Context(), user.ID, req)
	if err != nil {
		pc.initiateError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"authority":   res.Authority,
		"payment_url": res.PaymentURL,
		"pending_id":  res.PendingID,
	})
}

func (pc *PaymentController) initiateError(c *gin.Context, err error) {
	var gwErr *checkout.GatewayError
	switch {
	case errors.Is(err, checkout.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
	case errors.Is(err, checkout.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	case errors.Is(err, checkout.ErrConfiguration):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment configuration error", "details": err.Error()})
	case errors.As(err, &gwErr):
		c.JSON(http.StatusBadGateway, gatewayBody(gwErr))
	case errors.Is(err, checkout.ErrStore):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store order data"})
	default:
		pc.logger.Error("initiate payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// Verify confirms the gateway callback. It needs no bearer token: the
// verification token from the callback URL authorises the call.
func (pc *PaymentController) Verify(c *gin.Context) {
	var req checkout.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	res, err := pc.svc.Verify(c.Request.Context(), req)
	if err != nil {
		pc.verifyError(c, err)
		return
	}

	if res.AlreadyVerified {
		c.JSON(http.StatusOK, gin.H{
			"success":  true,
			"message":  "Payment already verified",
			"order_id": res.OrderID,
			"ref_id":   res.RefID,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"ref_id":   res.RefID,
		"order_id": res.OrderID,
	})
}

func (pc *PaymentController) verifyError(c *gin.Context, err error) {
	var (
		failed *checkout.PaymentFailedError
		gwErr  *checkout.GatewayError
	)
	switch {
	case errors.Is(err, checkout.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
	case errors.Is(err, checkout.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment data not found"})
	case errors.Is(err, checkout.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "Invalid verification token"})
	case errors.Is(err, checkout.ErrConfiguration):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Payment configuration error", "details": err.Error()})
	case errors.As(err, &failed):
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Payment verification failed",
			"code":    failed.Code,
			"details": rawOrNull(failed.Details, failed.Message),
		})
	case errors.As(err, &gwErr):
		body := gatewayBody(gwErr)
		body["success"] = false
		c.JSON(http.StatusBadGateway, body)
	case errors.Is(err, checkout.ErrStore):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store order data"})
	default:
		pc.logger.Error("verify payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
	}
}

// Status reports one of the caller's checkout attempts.
func (pc *PaymentController) Status(c *gin.Context) {
	p, ok := pc.ownPending(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, statusBody(p))
}

// List returns the caller's latest checkout attempts.
func (pc *PaymentController) List(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	payments, err := pc.store.ListPending(c.Request.Context(), user.ID)
	if err != nil {
		pc.logger.Error("list payments", zap.String("user_id", user.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payments"})
		return
	}

	out := make([]gin.H, 0, len(payments))
	for i := range payments {
		out = append(out, statusBody(&payments[i]))
	}
	c.JSON(http.StatusOK, gin.H{"payments": out})
}

// QRCode renders the start-pay link of a pending checkout as a PNG.
func (pc *PaymentController) QRCode(c *gin.Context) {
	p, ok := pc.ownPending(c)
	if !ok {
		return
	}
	if p.Status != db.PaymentPending || p.Authority == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Payment is not awaiting payment"})
		return
	}

	size, _ := strconv.Atoi(c.Query("size"))
	png, err := qrcode.PaymentPNG(pc.svc.PaymentURL(*p.Authority), size)
	if err != nil {
		pc.logger.Error("render payment qrcode", zap.String("pending_id", p.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to render QR code"})
		return
	}
	c.Data(http.StatusOK, "image/png", png)
}

// ownPending loads :pending_id and hides other users' records behind 404.
func (pc *PaymentController) ownPending(c *gin.Context) (*db.PendingPayment, bool) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return nil, false
	}

	p, err := pc.store.GetPending(c.Request.Context(), c.Param("pending_id"))
	if errors.Is(err, checkout.ErrNotFound) || (err == nil && p.UserID != user.ID) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Payment data not found"})
		return nil, false
	}
	if err != nil {
		pc.logger.Error("load pending payment", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch payment"})
		return nil, false
	}
	return p, true
}

func statusBody(p *db.PendingPayment) gin.H {
	body := gin.H{
		"pending_id": p.ID,
		"status":     p.Status,
		"amount":     p.Amount,
		"items":      p.Items,
		"created_at": p.CreatedAt,
	}
	if p.Authority != nil {
		body["authority"] = *p.Authority
	}
	if p.RefID != nil {
		body["ref_id"] = *p.RefID
	}
	if p.OrderID != nil {
		body["order_id"] = *p.OrderID
	}
	return body
}

func gatewayBody(gwErr *checkout.GatewayError) gin.H {
	return gin.H{
		"error":   "Payment gateway error",
		"code":    gwErr.Code,
		"details": rawOrNull(gwErr.Details, gwErr.Message),
	}
}

// rawOrNull passes the gateway's error object through when there is one.
func rawOrNull(raw []byte, message string) any {
	if len(raw) > 0 {
		return json.RawMessage(raw)
	}
	if message != "" {
		return message
	}
	return nil
}
