package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the settle store.
var Migrations = migrate.NewGroup("settle")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_settle_orders",
			Version: "20260101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settle_orders (
    id                  TEXT PRIMARY KEY,
    number              TEXT NOT NULL DEFAULT '',
    customer_id         TEXT NOT NULL,
    type                TEXT NOT NULL DEFAULT 'new_enrollment',
    billing_frequency   TEXT NOT NULL DEFAULT 'monthly',
    currency            TEXT NOT NULL DEFAULT 'usd',
    items               JSONB NOT NULL DEFAULT '[]',
    subtotal_amount     BIGINT NOT NULL DEFAULT 0,
    tax_amount          BIGINT NOT NULL DEFAULT 0,
    discount_amount     BIGINT NOT NULL DEFAULT 0,
    total_amount        BIGINT NOT NULL DEFAULT 0 CHECK (total_amount >= 0),
    promo_code          TEXT NOT NULL DEFAULT '',
    status              TEXT NOT NULL DEFAULT 'draft',
    effective_date      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    expiration_date     TIMESTAMPTZ,
    submitted_at        TIMESTAMPTZ,
    completed_at        TIMESTAMPTZ,
    cancelled_at        TIMESTAMPTZ,
    cancellation_reason TEXT NOT NULL DEFAULT '',
    notes               TEXT NOT NULL DEFAULT '',
    version             BIGINT NOT NULL DEFAULT 0,
    metadata            JSONB NOT NULL DEFAULT '{}',
    created_at          TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_settle_orders_number ON settle_orders (number);
CREATE INDEX IF NOT EXISTS idx_settle_orders_customer ON settle_orders (customer_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_settle_orders_status ON settle_orders (customer_id, status);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settle_orders`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settle_payments",
			Version: "20260101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settle_payments (
    id               TEXT PRIMARY KEY,
    order_id         TEXT NOT NULL REFERENCES settle_orders (id),
    amount           BIGINT NOT NULL CHECK (amount > 0),
    currency         TEXT NOT NULL DEFAULT 'usd',
    method           TEXT NOT NULL DEFAULT '',
    instrument_token TEXT NOT NULL DEFAULT '',
    instrument       JSONB NOT NULL DEFAULT '{}',
    status           TEXT NOT NULL DEFAULT 'pending',
    idempotency_key  TEXT NOT NULL,
    transaction_id   TEXT NOT NULL DEFAULT '',
    refunded_amount  BIGINT NOT NULL DEFAULT 0 CHECK (refunded_amount <= amount),
    refunds          JSONB NOT NULL DEFAULT '[]',
    failure_reason   TEXT NOT NULL DEFAULT '',
    timed_out        BOOLEAN NOT NULL DEFAULT FALSE,
    reconciled       BOOLEAN NOT NULL DEFAULT FALSE,
    reversal_id      TEXT NOT NULL DEFAULT '',
    retry_of         TEXT NOT NULL DEFAULT '',
    processed_at     TIMESTAMPTZ,
    failed_at        TIMESTAMPTZ,
    metadata         JSONB NOT NULL DEFAULT '{}',
    created_at       TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_settle_payments_idempotency ON settle_payments (idempotency_key);
CREATE INDEX IF NOT EXISTS idx_settle_payments_order ON settle_payments (order_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settle_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_settle_invoices",
			Version: "20260101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS settle_invoices (
    id              TEXT PRIMARY KEY,
    number          TEXT NOT NULL DEFAULT '',
    order_id        TEXT NOT NULL REFERENCES settle_orders (id),
    customer_id     TEXT NOT NULL DEFAULT '',
    status          TEXT NOT NULL DEFAULT 'draft',
    currency        TEXT NOT NULL DEFAULT 'usd',
    line_items      JSONB NOT NULL DEFAULT '[]',
    subtotal_amount BIGINT NOT NULL DEFAULT 0,
    tax_amount      BIGINT NOT NULL DEFAULT 0,
    discount_amount BIGINT NOT NULL DEFAULT 0,
    total_amount    BIGINT NOT NULL DEFAULT 0,
    issue_date      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    due_date        TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    period_start    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    period_end      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    sent_at         TIMESTAMPTZ,
    paid_at         TIMESTAMPTZ,
    cancelled_at    TIMESTAMPTZ,
    notes           TEXT NOT NULL DEFAULT '',
    metadata        JSONB NOT NULL DEFAULT '{}',
    created_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_settle_invoices_number ON settle_invoices (number);
CREATE INDEX IF NOT EXISTS idx_settle_invoices_order ON settle_invoices (order_id, created_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS settle_invoices`)
				return err
			},
		},
	)
}
