package db

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PaymentPending   = "pending"
	PaymentCompleted = "completed"
	PaymentFailed    = "failed"

	OrderProcessing = "processing"

	NotificationNewOrder = "new_order"
)

type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
}

// Item is a line of the checkout snapshot. It is copied into OrderItem as is,
// never joined against the live catalog.
type Item struct {
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image"`
	Quantity     int    `json:"quantity"`
	Price        int64  `json:"price"`
}

// PendingPayment is one checkout attempt waiting for the gateway.
// Status moves pending -> completed or pending -> failed, never back.
type PendingPayment struct {
	ID                string                    `gorm:"primaryKey;size:36" json:"id"`
	UserID            string                    `gorm:"size:36;index;not null" json:"user_id"`
	Amount            int64                     `gorm:"not null" json:"amount"`
	Description       string                    `gorm:"size:255" json:"description"`
	Mobile            string                    `gorm:"size:32" json:"mobile,omitempty"`
	ShippingAddress   string                    `gorm:"type:text" json:"shipping_address"`
	Items             datatypes.JSONSlice[Item] `json:"items"`
	CouponID          *string                   `gorm:"size:36" json:"coupon_id,omitempty"`
	Status            string                    `gorm:"size:16;index;not null" json:"status"`
	Authority         *string                   `gorm:"size:64;index" json:"authority,omitempty"`
	VerificationToken *string                   `gorm:"size:64" json:"-"`
	RefID             *string                   `gorm:"size:64" json:"ref_id,omitempty"`
	OrderID           *string                   `gorm:"size:36" json:"order_id,omitempty"`
	CreatedAt         time.Time                 `gorm:"index" json:"created_at"`
	UpdatedAt         time.Time                 `json:"updated_at"`
}

type Order struct {
	ID              string      `gorm:"primaryKey;size:36" json:"id"`
	UserID          string      `gorm:"size:36;index;not null" json:"user_id"`
	ShippingAddress string      `gorm:"type:text" json:"shipping_address"`
	TotalAmount     int64       `gorm:"not null" json:"total_amount"`
	Status          string      `gorm:"size:16;not null" json:"status"`
	Items           []OrderItem `gorm:"foreignKey:OrderID" json:"items,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

type OrderItem struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	OrderID      string `gorm:"size:36;index;not null" json:"order_id"`
	ProductName  string `gorm:"size:255" json:"product_name"`
	ProductImage string `gorm:"size:1024" json:"product_image"`
	Quantity     int    `json:"quantity"`
	Price        int64  `json:"price"`
}

type Coupon struct {
	ID              string     `gorm:"primaryKey;size:36" json:"id"`
	Code            string     `gorm:"uniqueIndex;size:64;not null" json:"code"`
	DiscountPercent int        `json:"discount_percent"`
	MaxUses         int        `json:"max_uses"` // 0 means unlimited
	UsedCount       int        `gorm:"not null;default:0" json:"used_count"`
	ExpiresAt       *time.Time `json:"expires_at,omitempty"`
	Active          bool       `json:"active"`
	CreatedAt       time.Time  `json:"created_at"`
}

type AdminNotification struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Type      string    `gorm:"size:32;index" json:"type"`
	Title     string    `gorm:"size:255" json:"title"`
	Message   string    `gorm:"type:text" json:"message"`
	OrderID   *string   `gorm:"size:36" json:"order_id,omitempty"`
	Link      string    `gorm:"size:1024" json:"link"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
}
