package db_test

import (
	"context"
	"io"
	"os"
	"testing"

	"metaltrade/db"
	"metaltrade/db/migrations"
	"metaltrade/internal/rfq"
	"metaltrade/internal/rfq/storetest"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

// тесты Postgres запускаются только при заданном POSTGRES_CONN
func openTestDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("POSTGRES_CONN")
	if dsn == "" {
		t.Skip("POSTGRES_CONN is not set")
	}

	conn, err := db.Connect(context.Background(), dsn)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	require.NoError(t, migrations.Run(conn.DB, logger))
	return conn
}

func truncate(t *testing.T, conn *sqlx.DB) {
	t.Helper()
	_, err := conn.Exec(`TRUNCATE offer_items, offers, offer_tokens, request_items, requests, suppliers, counterparties RESTART IDENTITY CASCADE`)
	require.NoError(t, err)
}

func TestPostgresStorage(t *testing.T) {
	conn := openTestDB(t)
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	storetest.Run(t, func(t *testing.T) rfq.Store {
		truncate(t, conn)
		return db.NewStorage(conn, logger)
	})
}

func TestWithTxRollsBack(t *testing.T) {
	conn := openTestDB(t)
	truncate(t, conn)
	s := db.NewStorage(conn, nil)

	err := s.WithTx(context.Background(), func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`INSERT INTO suppliers (buyer_id, short_name, inn, email, category) VALUES (1, 'x', '6600000000', 'x@x.test', 'Лист')`)
		require.NoError(t, err)
		return rfq.ErrForbidden
	})
	require.ErrorIs(t, err, rfq.ErrForbidden)

	var n int
	require.NoError(t, conn.Get(&n, `SELECT COUNT(*) FROM suppliers`))
	require.Zero(t, n)
}
