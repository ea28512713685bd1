package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/flipscout/backend/internal/domain"
	"github.com/flipscout/backend/internal/logger"
)

// fakeListingRepo serves canned prior-run evidence keyed by canonical key.
type fakeListingRepo struct {
	listings  map[string][]domain.ListingSnapshot
	err       error
	persisted []domain.PricedListing
}

func (f *fakeListingRepo) GetBySearchIdentity(_ context.Context, canonicalKey, _ string) ([]domain.ListingSnapshot, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.listings[canonicalKey], nil
}

func (f *fakeListingRepo) Persist(_ context.Context, listing *domain.PricedListing) error {
	f.persisted = append(f.persisted, *listing)
	return nil
}

func snapshot(sourceID string, bid float64, bidsCount int) domain.ListingSnapshot {
	return domain.ListingSnapshot{
		SourceID:  sourceID,
		Bid:       decimal.NewFromFloat(bid),
		BidsCount: bidsCount,
	}
}

func newTestAggregator(repo domain.ListingRepository) *MarketAggregator {
	return NewMarketAggregator(repo, MarketAggregatorConfig{}, logger.Discard())
}

func TestAggregate(t *testing.T) {
	ctx := context.Background()

	t.Run("one sample is insufficient evidence", func(t *testing.T) {
		a := newTestAggregator(nil)
		batch := []domain.ListingSnapshot{snapshot("l1", 50, 3)}

		_, err := a.Aggregate(ctx, "gym_80_hantelscheibe_40kg", batch, "run-1")
		if !errors.Is(err, domain.ErrInsufficientEvidence) {
			t.Errorf("expected ErrInsufficientEvidence, got %v", err)
		}
	})

	t.Run("two samples return their median", func(t *testing.T) {
		a := newTestAggregator(nil)
		batch := []domain.ListingSnapshot{
			snapshot("l1", 40, 2),
			snapshot("l2", 60, 1),
		}

		est, err := a.Aggregate(ctx, "gym_80_hantelscheibe_40kg", batch, "run-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !est.Value.Equal(decimal.NewFromInt(50)) {
			t.Errorf("median = %s, want 50", est.Value)
		}
		if est.Source != domain.SourceMarketAuction {
			t.Errorf("source = %s, want %s", est.Source, domain.SourceMarketAuction)
		}
		if est.SampleCount != 2 {
			t.Errorf("sample count = %d, want 2", est.SampleCount)
		}
	})

	t.Run("odd pool returns middle value", func(t *testing.T) {
		a := newTestAggregator(nil)
		batch := []domain.ListingSnapshot{
			snapshot("l1", 30, 1),
			snapshot("l2", 45, 2),
			snapshot("l3", 200, 5),
		}

		est, err := a.Aggregate(ctx, "key", batch, "run-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !est.Value.Equal(decimal.NewFromInt(45)) {
			t.Errorf("median = %s, want 45", est.Value)
		}
	})

	t.Run("active bid floor accepts low bids with bidders", func(t *testing.T) {
		a := newTestAggregator(nil)
		batch := []domain.ListingSnapshot{
			snapshot("l1", 6, 4),
			snapshot("l2", 8, 2),
		}

		est, err := a.Aggregate(ctx, "key", batch, "run-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !est.Value.Equal(decimal.NewFromInt(7)) {
			t.Errorf("median = %s, want 7", est.Value)
		}
	})

	t.Run("starting bid floor rejects cheap unverified asks", func(t *testing.T) {
		a := newTestAggregator(nil)
		batch := []domain.ListingSnapshot{
			// 6 with zero bids is below the 20 starting floor
			snapshot("l1", 6, 0),
			snapshot("l2", 25, 0),
		}

		_, err := a.Aggregate(ctx, "key", batch, "run-1")
		if !errors.Is(err, domain.ErrInsufficientEvidence) {
			t.Errorf("expected ErrInsufficientEvidence, got %v", err)
		}
	})

	t.Run("zero bid listings ignored", func(t *testing.T) {
		a := newTestAggregator(nil)
		batch := []domain.ListingSnapshot{
			snapshot("l1", 0, 0),
			snapshot("l2", 40, 1),
			snapshot("l3", 50, 2),
		}

		est, err := a.Aggregate(ctx, "key", batch, "run-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if est.SampleCount != 2 {
			t.Errorf("sample count = %d, want 2", est.SampleCount)
		}
	})

	t.Run("merges cross run evidence from repository", func(t *testing.T) {
		repo := &fakeListingRepo{listings: map[string][]domain.ListingSnapshot{
			"key": {snapshot("old-1", 80, 3)},
		}}
		a := newTestAggregator(repo)
		batch := []domain.ListingSnapshot{snapshot("l1", 40, 2)}

		est, err := a.Aggregate(ctx, "key", batch, "run-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !est.Value.Equal(decimal.NewFromInt(60)) {
			t.Errorf("median = %s, want 60", est.Value)
		}
	})

	t.Run("batch copy wins over persisted duplicate", func(t *testing.T) {
		repo := &fakeListingRepo{listings: map[string][]domain.ListingSnapshot{
			"key": {snapshot("l1", 200, 1), snapshot("old-1", 40, 1)},
		}}
		a := newTestAggregator(repo)
		batch := []domain.ListingSnapshot{snapshot("l1", 40, 2)}

		est, err := a.Aggregate(ctx, "key", batch, "run-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// l1 counted once at its live 40, not the stale 200
		if !est.Value.Equal(decimal.NewFromInt(40)) {
			t.Errorf("median = %s, want 40", est.Value)
		}
		if est.SampleCount != 2 {
			t.Errorf("sample count = %d, want 2", est.SampleCount)
		}
	})

	t.Run("repository failure degrades to batch evidence", func(t *testing.T) {
		repo := &fakeListingRepo{err: errors.New("connection refused")}
		a := newTestAggregator(repo)
		batch := []domain.ListingSnapshot{
			snapshot("l1", 40, 1),
			snapshot("l2", 60, 2),
		}

		est, err := a.Aggregate(ctx, "key", batch, "run-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !est.Value.Equal(decimal.NewFromInt(50)) {
			t.Errorf("median = %s, want 50", est.Value)
		}
	})
}

func TestActiveAuctionMedian(t *testing.T) {
	ctx := context.Background()

	t.Run("ignores unbid listings entirely", func(t *testing.T) {
		a := newTestAggregator(nil)
		batch := []domain.ListingSnapshot{
			snapshot("l1", 40, 2),
			snapshot("l2", 500, 0), // high ask, no bids
		}

		_, _, err := a.ActiveAuctionMedian(ctx, "key", batch, "run-1")
		if !errors.Is(err, domain.ErrInsufficientEvidence) {
			t.Errorf("expected ErrInsufficientEvidence, got %v", err)
		}
	})

	t.Run("returns median of active auctions", func(t *testing.T) {
		a := newTestAggregator(nil)
		batch := []domain.ListingSnapshot{
			snapshot("l1", 30, 2),
			snapshot("l2", 50, 1),
		}

		median, count, err := a.ActiveAuctionMedian(ctx, "key", batch, "run-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !median.Equal(decimal.NewFromInt(40)) {
			t.Errorf("median = %s, want 40", median)
		}
		if count != 2 {
			t.Errorf("count = %d, want 2", count)
		}
	})
}

func TestMedianPrice(t *testing.T) {
	testCases := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"single value", []float64{10}, 10},
		{"even count averages middle pair", []float64{10, 20, 30, 100}, 25},
		{"odd count takes middle", []float64{10, 20, 100}, 20},
		{"unsorted input", []float64{100, 10, 20}, 20},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			values := make([]decimal.Decimal, len(tc.values))
			for i, v := range tc.values {
				values[i] = decimal.NewFromFloat(v)
			}
			got := medianPrice(values)
			if !got.Equal(decimal.NewFromFloat(tc.want)) {
				t.Errorf("medianPrice(%v) = %s, want %f", tc.values, got, tc.want)
			}
		})
	}
}
