// Package testdb opens isolated in-memory SQLite databases carrying the billing
// schema. The DDL mirrors pkg/migrate/migrations, minus Postgres-only features
// (jsonb, triggers, gen_random_uuid); ids are assigned by model hooks instead.
package testdb

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE users (
		id         TEXT PRIMARY KEY,
		uuid       TEXT NOT NULL UNIQUE,
		email      TEXT NOT NULL UNIQUE,
		nickname   TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE orders (
		id                TEXT PRIMARY KEY,
		order_no          TEXT NOT NULL UNIQUE,
		user_uuid         TEXT NOT NULL,
		user_email        TEXT NOT NULL,
		product_id        TEXT NOT NULL,
		product_name      TEXT NOT NULL,
		credits           INTEGER NOT NULL,
		valid_months      INTEGER NOT NULL,
		amount            NUMERIC NOT NULL,
		currency          TEXT NOT NULL DEFAULT 'USD',
		status            TEXT NOT NULL DEFAULT 'pending'
		                  CHECK (status IN ('pending', 'paid', 'completed', 'failed')),
		provider          TEXT,
		provider_order_id TEXT,
		paid_at           DATETIME,
		paid_detail       TEXT,
		created_at        DATETIME,
		updated_at        DATETIME
	)`,
	`CREATE TABLE subscriptions (
		id                TEXT PRIMARY KEY,
		user_uuid         TEXT NOT NULL,
		order_no          TEXT NOT NULL UNIQUE,
		product_id        TEXT NOT NULL,
		product_name      TEXT NOT NULL,
		status            TEXT NOT NULL DEFAULT 'active'
		                  CHECK (status IN ('active', 'inactive', 'expired')),
		period_start      DATETIME NOT NULL,
		period_end        DATETIME NOT NULL,
		credits_total     INTEGER NOT NULL,
		credits_remaining INTEGER NOT NULL,
		credits_used      INTEGER NOT NULL DEFAULT 0,
		created_at        DATETIME,
		updated_at        DATETIME
	)`,
	`CREATE UNIQUE INDEX subscriptions_one_active_per_user ON subscriptions (user_uuid) WHERE status = 'active'`,
	`CREATE TABLE credit_entries (
		id         TEXT PRIMARY KEY,
		user_uuid  TEXT NOT NULL,
		trans_no   TEXT NOT NULL UNIQUE,
		trans_type TEXT NOT NULL,
		credits    INTEGER NOT NULL,
		order_no   TEXT,
		expired_at DATETIME,
		created_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id             TEXT PRIMARY KEY,
		event_type     TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		payload        TEXT NOT NULL,
		created_at     DATETIME,
		published_at   DATETIME,
		attempt_count  INTEGER NOT NULL DEFAULT 0,
		last_error     TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id             TEXT PRIMARY KEY,
		event_id       TEXT NOT NULL UNIQUE,
		event_type     TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id   TEXT NOT NULL,
		payload_json   TEXT NOT NULL,
		error_reason   TEXT NOT NULL,
		error_message  TEXT,
		attempt_count  INTEGER NOT NULL DEFAULT 0,
		failed_at      DATETIME
	)`,
}

// Open returns a fresh database private to the calling test. The pool is capped
// at one connection, so code running inside a transaction must only use the tx
// handle it was given.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(uuid.NewString(), "-", "")
	conn, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		require.NoError(t, conn.Exec(stmt).Error)
	}
	return conn
}
