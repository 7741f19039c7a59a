package models

import "time"

// PaymentStatus is the lifecycle state of a purchase.
type PaymentStatus string

const (
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// ReferralSource records how a purchase was attributed.
type ReferralSource string

const (
	ReferralSourceDirect     ReferralSource = "direct"
	ReferralSourceStorefront ReferralSource = "storefront"
	ReferralSourceRefLink    ReferralSource = "ref_link"
)

// Purchase is one completed transaction. Created exactly once by settlement,
// mutated only by the refund path (status flip), never deleted.
type Purchase struct {
	ID                 string         `db:"id" json:"id"`
	PaymentID          string         `db:"payment_id" json:"payment_id"`
	AppID              *string        `db:"app_id" json:"app_id,omitempty"`
	AffiliateProductID *string        `db:"affiliate_product_id" json:"affiliate_product_id,omitempty"`
	BuyerName          string         `db:"buyer_name" json:"buyer_name"`
	BuyerEmail         string         `db:"buyer_email" json:"buyer_email"`
	AffiliateID        *string        `db:"affiliate_id" json:"affiliate_id,omitempty"`
	AffiliateSlug      *string        `db:"affiliate_slug" json:"affiliate_slug,omitempty"`
	Amount             float64        `db:"amount" json:"amount"`
	CommissionRate     float64        `db:"commission_rate" json:"commission_rate"`
	CommissionAmount   float64        `db:"commission_amount" json:"commission_amount"`
	PaymentStatus      PaymentStatus  `db:"payment_status" json:"payment_status"`
	ReferralSource     ReferralSource `db:"referral_source" json:"referral_source"`
	ProductName        string         `db:"product_name" json:"product_name"`
	CreatedAt          time.Time      `db:"created_at" json:"created_at"`
}

// AffiliateProfile is one creator account. TotalEarnings is adjusted only
// through the store's atomic earnings operation and never drops below zero.
type AffiliateProfile struct {
	ID             string    `db:"id" json:"id"`
	Slug           string    `db:"slug" json:"slug"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	CommissionRate *float64  `db:"commission_rate" json:"commission_rate,omitempty"`
	TotalEarnings  float64   `db:"total_earnings" json:"total_earnings"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}

// StorefrontVisit is one tracked inbound referral-link visit. VisitorIP is a
// truncated SHA-256 of the caller address, never the raw IP.
type StorefrontVisit struct {
	ID            string    `db:"id" json:"id"`
	AffiliateSlug string    `db:"affiliate_slug" json:"affiliate_slug"`
	VisitorIP     string    `db:"visitor_ip" json:"visitor_ip"`
	Referrer      string    `db:"referrer" json:"referrer,omitempty"`
	UserAgent     string    `db:"user_agent" json:"user_agent,omitempty"`
	Converted     bool      `db:"converted" json:"converted"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// App is a catalog entry sold on behalf of a partner. Read-only for the core.
type App struct {
	ID             string   `db:"id" json:"id"`
	Name           string   `db:"name" json:"name"`
	Price          float64  `db:"price" json:"price"`
	CommissionRate *float64 `db:"commission_rate" json:"commission_rate,omitempty"`
}

// AffiliateProduct is a product listed by a specific affiliate. Sales carry
// explicit attribution to the owning affiliate.
type AffiliateProduct struct {
	ID          string  `db:"id" json:"id"`
	Name        string  `db:"name" json:"name"`
	Price       float64 `db:"price" json:"price"`
	AffiliateID string  `db:"affiliate_id" json:"affiliate_id"`
}

// EmailTemplate is a trigger-keyed template with {buyer_name}, {app_name} and
// {amount} placeholders. At most one active template per trigger is assumed.
type EmailTemplate struct {
	ID       string `db:"id" json:"id"`
	Trigger  string `db:"trigger" json:"trigger"`
	Subject  string `db:"subject" json:"subject"`
	Body     string `db:"body" json:"body"`
	IsActive bool   `db:"is_active" json:"is_active"`
}

// EmailTriggerPurchaseComplete selects the purchase confirmation template.
const EmailTriggerPurchaseComplete = "purchase_complete"

// UserSubscription mirrors a content-studio subscription maintained from the
// second Stripe webhook consumer.
type UserSubscription struct {
	ID                   string    `db:"id" json:"id"`
	UserEmail            string    `db:"user_email" json:"user_email"`
	StripeCustomerID     string    `db:"stripe_customer_id" json:"stripe_customer_id"`
	StripeSubscriptionID string    `db:"stripe_subscription_id" json:"stripe_subscription_id"`
	Plan                 string    `db:"plan" json:"plan"`
	Status               string    `db:"status" json:"status"`
	CurrentPeriodEnd     time.Time `db:"current_period_end" json:"current_period_end"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
}
