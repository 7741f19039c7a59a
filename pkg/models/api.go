package models

// ErrorResponse is the generic error body returned by all handlers.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// SuccessResponse is the generic success body for acknowledgement-style endpoints.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// CompletePurchaseRequest is the client-invoked settlement input. Exactly one
// of AppID or AffiliateProductID must be set.
type CompletePurchaseRequest struct {
	AppID              string `json:"app_id,omitempty"`
	AffiliateProductID string `json:"affiliate_product_id,omitempty"`
	BuyerName          string `json:"buyer_name" validate:"required"`
	BuyerEmail         string `json:"buyer_email" validate:"required,email"`
	AffiliateSlug      string `json:"affiliate_slug,omitempty"`
	PaymentID          string `json:"payment_id" validate:"required"`
}

// CompletePurchaseResponse is returned to the client-invoked settlement caller.
type CompletePurchaseResponse struct {
	Success          bool    `json:"success"`
	PurchaseID       string  `json:"purchase_id"`
	CommissionEarned float64 `json:"commission_earned"`
}

// CreatePaymentIntentRequest creates a gateway payment intent.
type CreatePaymentIntentRequest struct {
	Amount        float64           `json:"amount" validate:"required,gt=0"`
	Currency      string            `json:"currency,omitempty"`
	PaymentMethod string            `json:"payment_method" validate:"required"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// PaymentIntentResponse wraps the created intent reference for the client.
type PaymentIntentResponse struct {
	ID           string `json:"id"`
	ClientSecret string `json:"client_secret"`
	Status       string `json:"status"`
}

// TrackVisitRequest records a storefront referral visit.
type TrackVisitRequest struct {
	AffiliateSlug string `json:"affiliate_slug" validate:"required"`
	Referrer      string `json:"referrer,omitempty"`
}

// ChatRequest is proxied to the AI assistant.
type ChatRequest struct {
	Prompt  string `json:"prompt" validate:"required"`
	Context string `json:"context,omitempty"`
}

// ChatResponse carries the assistant reply.
type ChatResponse struct {
	Reply string `json:"reply"`
}

// SendEmailRequest is the retrying email relay input.
type SendEmailRequest struct {
	To       string `json:"to" validate:"required,email"`
	Subject  string `json:"subject" validate:"required"`
	Body     string `json:"body" validate:"required"`
	FromName string `json:"from_name,omitempty"`
}

// BillingPortalRequest opens a gateway billing portal session.
type BillingPortalRequest struct {
	UserEmail string `json:"user_email" validate:"required,email"`
}

// BillingPortalResponse carries the portal URL.
type BillingPortalResponse struct {
	URL string `json:"url"`
}
