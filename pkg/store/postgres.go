package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/creatorstack/storefront/pkg/models"
)

// Postgres is the production Store backed by Postgres via sqlx.
type Postgres struct {
	db *sqlx.DB
}

var _ Store = (*Postgres)(nil)

// schema is applied on startup. Uniqueness on purchases.payment_id is the
// guard that makes at-least-once webhook delivery create at most one row.
const schema = `
CREATE TABLE IF NOT EXISTS apps (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	price NUMERIC(20,2) NOT NULL,
	commission_rate NUMERIC(10,2)
);

CREATE TABLE IF NOT EXISTS affiliate_products (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	price NUMERIC(20,2) NOT NULL,
	affiliate_id TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS affiliate_profiles (
	id TEXT PRIMARY KEY,
	slug TEXT NOT NULL UNIQUE,
	name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	commission_rate NUMERIC(10,2),
	total_earnings NUMERIC(20,2) NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS purchases (
	id TEXT PRIMARY KEY,
	payment_id TEXT NOT NULL UNIQUE,
	app_id TEXT,
	affiliate_product_id TEXT,
	buyer_name TEXT NOT NULL,
	buyer_email TEXT NOT NULL,
	affiliate_id TEXT,
	affiliate_slug TEXT,
	amount NUMERIC(20,2) NOT NULL,
	commission_rate NUMERIC(10,2) NOT NULL,
	commission_amount NUMERIC(20,2) NOT NULL,
	payment_status TEXT NOT NULL,
	referral_source TEXT NOT NULL,
	product_name TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS storefront_visits (
	id TEXT PRIMARY KEY,
	affiliate_slug TEXT NOT NULL,
	visitor_ip TEXT NOT NULL,
	referrer TEXT NOT NULL DEFAULT '',
	user_agent TEXT NOT NULL DEFAULT '',
	converted BOOLEAN NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_visits_slug_unconverted
	ON storefront_visits (affiliate_slug, created_at) WHERE NOT converted;

CREATE TABLE IF NOT EXISTS email_templates (
	id TEXT PRIMARY KEY,
	trigger TEXT NOT NULL,
	subject TEXT NOT NULL,
	body TEXT NOT NULL,
	is_active BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS user_subscriptions (
	id TEXT PRIMARY KEY,
	user_email TEXT NOT NULL,
	stripe_customer_id TEXT NOT NULL DEFAULT '',
	stripe_subscription_id TEXT NOT NULL UNIQUE,
	plan TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	current_period_end TIMESTAMPTZ NOT NULL DEFAULT now(),
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_subscriptions_email ON user_subscriptions (user_email);
`

// NewPostgres connects, pings and applies the schema.
func NewPostgres(databaseURL string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed opening connection to postgres: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed creating schema: %w", err)
	}

	log.Println("✅ Database connected and schema applied")
	return &Postgres{db: db}, nil
}

// Close closes the underlying connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

// Ping checks database reachability.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

func (p *Postgres) GetApp(ctx context.Context, id string) (*models.App, error) {
	var a models.App
	err := p.db.GetContext(ctx, &a,
		`SELECT id, name, price, commission_rate FROM apps WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get app: %w", err)
	}
	return &a, nil
}

func (p *Postgres) GetAffiliateProduct(ctx context.Context, id string) (*models.AffiliateProduct, error) {
	var ap models.AffiliateProduct
	err := p.db.GetContext(ctx, &ap,
		`SELECT id, name, price, affiliate_id FROM affiliate_products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate product: %w", err)
	}
	return &ap, nil
}

func (p *Postgres) GetAffiliateBySlug(ctx context.Context, slug string) (*models.AffiliateProfile, error) {
	var af models.AffiliateProfile
	err := p.db.GetContext(ctx, &af,
		`SELECT id, slug, name, email, commission_rate, total_earnings, created_at
		 FROM affiliate_profiles WHERE slug = $1`, slug)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate by slug: %w", err)
	}
	return &af, nil
}

func (p *Postgres) GetAffiliateByID(ctx context.Context, id string) (*models.AffiliateProfile, error) {
	var af models.AffiliateProfile
	err := p.db.GetContext(ctx, &af,
		`SELECT id, slug, name, email, commission_rate, total_earnings, created_at
		 FROM affiliate_profiles WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get affiliate: %w", err)
	}
	return &af, nil
}

// AdjustEarnings applies the delta in a single UPDATE so concurrent
// settlements for the same affiliate never lose credits, and clamps the
// running total at zero for the refund path.
func (p *Postgres) AdjustEarnings(ctx context.Context, affiliateID string, delta float64) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE affiliate_profiles
		 SET total_earnings = GREATEST(0, total_earnings + $1)
		 WHERE id = $2`, delta, affiliateID)
	if err != nil {
		return fmt.Errorf("failed to adjust earnings: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to adjust earnings: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreatePurchase(ctx context.Context, pu *models.Purchase) error {
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO purchases (
			id, payment_id, app_id, affiliate_product_id, buyer_name, buyer_email,
			affiliate_id, affiliate_slug, amount, commission_rate, commission_amount,
			payment_status, referral_source, product_name, created_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (payment_id) DO NOTHING`,
		pu.ID, pu.PaymentID, pu.AppID, pu.AffiliateProductID, pu.BuyerName, pu.BuyerEmail,
		pu.AffiliateID, pu.AffiliateSlug, pu.Amount, pu.CommissionRate, pu.CommissionAmount,
		pu.PaymentStatus, pu.ReferralSource, pu.ProductName, pu.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create purchase: %w", err)
	}
	if n == 0 {
		return ErrDuplicatePayment
	}
	return nil
}

func (p *Postgres) GetPurchaseByPaymentID(ctx context.Context, paymentID string) (*models.Purchase, error) {
	var pu models.Purchase
	err := p.db.GetContext(ctx, &pu,
		`SELECT id, payment_id, app_id, affiliate_product_id, buyer_name, buyer_email,
			affiliate_id, affiliate_slug, amount, commission_rate, commission_amount,
			payment_status, referral_source, product_name, created_at
		 FROM purchases WHERE payment_id = $1`, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get purchase by payment id: %w", err)
	}
	return &pu, nil
}

func (p *Postgres) MarkPurchaseRefunded(ctx context.Context, purchaseID string) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE purchases SET payment_status = $1 WHERE id = $2`,
		models.PaymentStatusRefunded, purchaseID)
	if err != nil {
		return fmt.Errorf("failed to mark purchase refunded: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to mark purchase refunded: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) CreateVisit(ctx context.Context, v *models.StorefrontVisit) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO storefront_visits (id, affiliate_slug, visitor_ip, referrer, user_agent, converted, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		v.ID, v.AffiliateSlug, v.VisitorIP, v.Referrer, v.UserAgent, v.Converted, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create visit: %w", err)
	}
	return nil
}

// ConvertVisit flips the oldest unconverted visit for the slug. SKIP LOCKED
// keeps concurrent settlements from converting the same row twice.
func (p *Postgres) ConvertVisit(ctx context.Context, slug string) (bool, error) {
	res, err := p.db.ExecContext(ctx,
		`UPDATE storefront_visits SET converted = TRUE
		 WHERE id = (
			SELECT id FROM storefront_visits
			WHERE affiliate_slug = $1 AND NOT converted
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		 )`, slug)
	if err != nil {
		return false, fmt.Errorf("failed to convert visit: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to convert visit: %w", err)
	}
	return n > 0, nil
}

func (p *Postgres) DeleteUnconvertedVisitsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM storefront_visits WHERE NOT converted AND created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune visits: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to prune visits: %w", err)
	}
	return n, nil
}

func (p *Postgres) GetActiveEmailTemplate(ctx context.Context, trigger string) (*models.EmailTemplate, error) {
	var t models.EmailTemplate
	err := p.db.GetContext(ctx, &t,
		`SELECT id, trigger, subject, body, is_active
		 FROM email_templates WHERE trigger = $1 AND is_active LIMIT 1`, trigger)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get email template: %w", err)
	}
	return &t, nil
}

func (p *Postgres) UpsertSubscription(ctx context.Context, s *models.UserSubscription) error {
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO user_subscriptions
			(id, user_email, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end, created_at)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		 ON CONFLICT (stripe_subscription_id) DO UPDATE SET
			user_email = EXCLUDED.user_email,
			stripe_customer_id = EXCLUDED.stripe_customer_id,
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end`,
		s.ID, s.UserEmail, s.StripeCustomerID, s.StripeSubscriptionID, s.Plan, s.Status, s.CurrentPeriodEnd, s.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert subscription: %w", err)
	}
	return nil
}

func (p *Postgres) GetSubscriptionByEmail(ctx context.Context, email string) (*models.UserSubscription, error) {
	var s models.UserSubscription
	err := p.db.GetContext(ctx, &s,
		`SELECT id, user_email, stripe_customer_id, stripe_subscription_id, plan, status, current_period_end, created_at
		 FROM user_subscriptions WHERE user_email = $1
		 ORDER BY created_at DESC LIMIT 1`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get subscription by email: %w", err)
	}
	return &s, nil
}

func (p *Postgres) UpdateSubscriptionStatus(ctx context.Context, stripeSubscriptionID, status string, periodEnd time.Time) error {
	res, err := p.db.ExecContext(ctx,
		`UPDATE user_subscriptions SET status = $1, current_period_end = $2
		 WHERE stripe_subscription_id = $3`, status, periodEnd, stripeSubscriptionID)
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update subscription status: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
