// Package store provides the PostgreSQL-backed storefront store.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

// PostgresStore implements Store using PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

// NewPostgresStore creates a new store instance.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{
		db: db,
		sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
	}
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// FindInStock returns in-stock rows whose product name contains productQuery
// case-insensitively.
func (s *PostgresStore) FindInStock(ctx context.Context, productQuery string) ([]StockedOffer, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(productQuery)) + "%"

	query := s.sb.
		Select(
			"st.id", "st.name", "st.latitude", "st.longitude", "st.address",
			"p.id", "p.name", "p.price",
			"k.quantity",
		).
		From("stock k").
		Join("stores st ON st.id = k.store_id").
		Join("products p ON p.id = k.product_id").
		Where("p.name ILIKE ?", pattern).
		Where(sq.Gt{"k.quantity": 0}).
		OrderBy("st.id", "p.id")

	sqlStr, args, err := query.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building stock search query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("querying in-stock offers: %w", err)
	}
	defer rows.Close()

	var offers []StockedOffer
	for rows.Next() {
		var offer StockedOffer
		if scanErr := rows.Scan(
			&offer.StoreID, &offer.StoreName, &offer.Latitude, &offer.Longitude, &offer.Address,
			&offer.ProductID, &offer.ProductName, &offer.Price,
			&offer.Quantity,
		); scanErr != nil {
			return nil, fmt.Errorf("scanning in-stock offer: %w", scanErr)
		}
		offers = append(offers, offer)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating in-stock offers: %w", err)
	}
	return offers, nil
}

// Reserve decrements available quantity inside one transaction, locking the
// stock row so concurrent reservations for the same key serialize.
func (s *PostgresStore) Reserve(ctx context.Context, storeID, productID string, quantity int) error {
	if quantity <= 0 {
		return fmt.Errorf("reservation quantity must be positive, got %d", quantity)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting reservation transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	selectSQL, selectArgs, err := s.sb.
		Select("quantity").
		From("stock").
		Where(sq.Eq{"store_id": storeID, "product_id": productID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return fmt.Errorf("building stock lock query: %w", err)
	}

	var available int
	if err := tx.QueryRowContext(ctx, selectSQL, selectArgs...).Scan(&available); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("reading stock row: %w", err)
	}

	if available < quantity {
		return &InsufficientStockError{Available: available, Requested: quantity}
	}

	updateSQL, updateArgs, err := s.sb.
		Update("stock").
		Set("quantity", available-quantity).
		Set("updated_at", time.Now().UTC()).
		Where(sq.Eq{"store_id": storeID, "product_id": productID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building stock decrement query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, updateSQL, updateArgs...); err != nil {
		return fmt.Errorf("decrementing stock: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing reservation: %w", err)
	}
	return nil
}

// UpsertStock applies restock levels in one transaction.
func (s *PostgresStore) UpsertStock(ctx context.Context, levels []StockLevel) error {
	if len(levels) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting restock transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, level := range levels {
		if level.Quantity < 0 {
			return fmt.Errorf("restock quantity for (%s, %s) must be non-negative, got %d",
				level.StoreID, level.ProductID, level.Quantity)
		}

		upsertSQL, upsertArgs, buildErr := s.sb.
			Insert("stock").
			Columns("store_id", "product_id", "quantity", "updated_at").
			Values(level.StoreID, level.ProductID, level.Quantity, now).
			Suffix(`
				ON CONFLICT (store_id, product_id) DO UPDATE SET
					quantity = EXCLUDED.quantity,
					updated_at = EXCLUDED.updated_at
			`).
			ToSql()
		if buildErr != nil {
			return fmt.Errorf("building restock upsert query: %w", buildErr)
		}
		if _, execErr := tx.ExecContext(ctx, upsertSQL, upsertArgs...); execErr != nil {
			return fmt.Errorf("upserting stock for (%s, %s): %w", level.StoreID, level.ProductID, execErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing restock transaction: %w", err)
	}
	return nil
}

func escapeLike(raw string) string {
	replacer := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return replacer.Replace(raw)
}
