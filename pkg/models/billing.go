package models

import "time"

// OrderStatus is the lifecycle of a payment order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderPaid      OrderStatus = "paid"
	OrderCancelled OrderStatus = "cancelled"
	OrderRefunded  OrderStatus = "refunded"
)

// Product identifies what an order buys.
type Product string

const (
	ProductBasicMonth   Product = "basic_month"
	ProductPremiumMonth Product = "premium_month"
	ProductCreditPack10 Product = "credit_pack_10"
)

// Order is one payment attempt from the payment provider webhook.
type Order struct {
	ID        string      `json:"id"`
	Platform  Platform    `json:"platform"`
	UserID    string      `json:"userId"`
	Product   Product     `json:"product"`
	AmountKRW int         `json:"amountKrw"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	PaidAt    *time.Time  `json:"paidAt,omitempty"`
}

// Subscription is an active tier grant with an expiry.
type Subscription struct {
	Platform  Platform  `json:"platform"`
	UserID    string    `json:"userId"`
	Tier      Tier      `json:"tier"`
	ExpiresAt time.Time `json:"expiresAt"`
	CreatedAt time.Time `json:"createdAt"`
}

// Active reports whether the grant covers the given instant.
func (s *Subscription) Active(now time.Time) bool {
	return s.ExpiresAt.After(now)
}

// CreditEntry is one ledger row; balance is the sum of deltas.
type CreditEntry struct {
	Platform  Platform  `json:"platform"`
	UserID    string    `json:"userId"`
	Delta     int       `json:"delta"`
	Reason    string    `json:"reason"`
	CreatedAt time.Time `json:"createdAt"`
}
