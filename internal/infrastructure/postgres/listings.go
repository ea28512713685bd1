// Package postgres implements listing evidence persistence on pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/flipscout/backend/internal/domain"
)

// ListingStore is the pgx-backed ListingRepository. The engine only reads
// from it during pricing; rows are written after a listing reaches a
// terminal decision.
type ListingStore struct {
	pool *pgxpool.Pool
}

// NewListingStore connects a pool to the given DSN.
func NewListingStore(ctx context.Context, dsn string) (*ListingStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return &ListingStore{pool: pool}, nil
}

// Close releases the connection pool.
func (s *ListingStore) Close() {
	s.pool.Close()
}

// GetBySearchIdentity returns prior listings sharing the canonical identity
// key, newest first, excluding rows written by excludeRunID. The 90-day
// window keeps stale price levels out of the evidence pool.
func (s *ListingStore) GetBySearchIdentity(ctx context.Context, canonicalKey, excludeRunID string) ([]domain.ListingSnapshot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT source_id, title, bid, bids_count, ends_at, run_id
		FROM priced_listings
		WHERE canonical_key = $1
		  AND ($2 = '' OR run_id <> $2)
		  AND priced_at > now() - interval '90 days'
		ORDER BY priced_at DESC
		LIMIT 200`,
		canonicalKey, excludeRunID)
	if err != nil {
		return nil, fmt.Errorf("query listings: %w", err)
	}
	defer rows.Close()

	var listings []domain.ListingSnapshot
	for rows.Next() {
		var (
			l      domain.ListingSnapshot
			bid    decimal.Decimal
			endsAt *time.Time
		)
		if err := rows.Scan(&l.SourceID, &l.Title, &bid, &l.BidsCount, &endsAt, &l.RunID); err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		l.Bid = bid
		if endsAt != nil {
			l.EndsAt = *endsAt
		}
		listings = append(listings, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate listings: %w", err)
	}
	return listings, nil
}

// Persist upserts a priced listing by its marketplace-native ID, so a
// listing re-seen in a later run keeps one row with the freshest estimate.
func (s *ListingStore) Persist(ctx context.Context, listing *domain.PricedListing) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO priced_listings
			(source_id, title, product_key, canonical_key, bundle_type,
			 estimate_value, estimate_source, estimate_samples,
			 bid, bids_count, run_id, priced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (source_id) DO UPDATE SET
			title = EXCLUDED.title,
			product_key = EXCLUDED.product_key,
			canonical_key = EXCLUDED.canonical_key,
			bundle_type = EXCLUDED.bundle_type,
			estimate_value = EXCLUDED.estimate_value,
			estimate_source = EXCLUDED.estimate_source,
			estimate_samples = EXCLUDED.estimate_samples,
			bid = EXCLUDED.bid,
			bids_count = EXCLUDED.bids_count,
			run_id = EXCLUDED.run_id,
			priced_at = EXCLUDED.priced_at`,
		listing.SourceID, listing.Title, listing.ProductKey, listing.CanonicalKey,
		string(listing.BundleType),
		listing.Estimate.Value, string(listing.Estimate.Source), listing.Estimate.SampleCount,
		listing.Bid, listing.BidsCount, listing.RunID, listing.PricedAt)
	if err != nil {
		return fmt.Errorf("persist listing: %w", err)
	}
	return nil
}

// GetBySourceID fetches one persisted listing.
func (s *ListingStore) GetBySourceID(ctx context.Context, sourceID string) (*domain.PricedListing, error) {
	var (
		l      domain.PricedListing
		bt     string
		source string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT source_id, title, product_key, canonical_key, bundle_type,
		       estimate_value, estimate_source, estimate_samples,
		       bid, bids_count, run_id, priced_at
		FROM priced_listings
		WHERE source_id = $1`,
		sourceID).Scan(
		&l.SourceID, &l.Title, &l.ProductKey, &l.CanonicalKey, &bt,
		&l.Estimate.Value, &source, &l.Estimate.SampleCount,
		&l.Bid, &l.BidsCount, &l.RunID, &l.PricedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query listing: %w", err)
	}
	l.BundleType = domain.BundleType(bt)
	l.Estimate.Source = domain.PriceSource(source)
	return &l, nil
}
