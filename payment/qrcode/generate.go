package qrcode

import (
	"errors"

	qrcode "github.com/skip2/go-qrcode"
)

const DefaultSize = 256

// PaymentPNG renders the gateway start-pay URL as a PNG so a buyer can finish
// paying on a phone.
func PaymentPNG(paymentURL string, size int) ([]byte, error) {
	if paymentURL == "" {
		return nil, errors.New("qrcode: empty payment url")
	}
	if size <= 0 || size > 1024 {
		size = DefaultSize
	}
	return qrcode.Encode(paymentURL, qrcode.Medium, size)
}
