package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/prxgr4mmer/ec-index-collector/internal/domain"
)

// HistoryRepository implements ports.HistoryStore on the benchmark_history table
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new PostgreSQL history repository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Load returns every stored point of a benchmark
func (r *HistoryRepository) Load(ctx context.Context, benchmark string) (*domain.History, error) {
	query := `
		SELECT to_char(date, 'YYYY-MM-DD'), platform, category,
		       average_price::text, median_price::text, min_price::text, max_price::text,
		       sample_size
		FROM benchmark_history
		WHERE benchmark = $1
		ORDER BY date, platform
	`

	rows, err := r.db.Pool.Query(ctx, query, benchmark)
	if err != nil {
		return nil, fmt.Errorf("%w: querying history of %s: %v", domain.ErrHistoryStore, benchmark, err)
	}
	defer rows.Close()

	history := domain.NewHistory(benchmark)
	for rows.Next() {
		p, err := scanPoint(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scanning history of %s: %v", domain.ErrHistoryStore, benchmark, err)
		}
		history.Upsert(p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterating history of %s: %v", domain.ErrHistoryStore, benchmark, err)
	}

	if history.Empty() {
		return nil, fmt.Errorf("%w: %s", domain.ErrNoHistory, benchmark)
	}

	return history, nil
}

// Save replaces the stored history of h.Benchmark in one transaction
func (r *HistoryRepository) Save(ctx context.Context, h *domain.History) error {
	tx, err := r.db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: failed to begin transaction: %v", domain.ErrHistoryStore, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM benchmark_history WHERE benchmark = $1`, h.Benchmark); err != nil {
		return fmt.Errorf("%w: clearing history of %s: %v", domain.ErrHistoryStore, h.Benchmark, err)
	}

	insert := `
		INSERT INTO benchmark_history
			(benchmark, date, platform, category, average_price, median_price, min_price, max_price, sample_size, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
	`

	batch := &pgx.Batch{}
	for _, p := range h.Points() {
		args, err := insertArgs(h.Benchmark, p)
		if err != nil {
			return fmt.Errorf("%w: point %s: %v", domain.ErrHistoryStore, p.Key(), err)
		}
		batch.Queue(insert, args...)
	}

	if batch.Len() > 0 {
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("%w: writing history of %s: %v", domain.ErrHistoryStore, h.Benchmark, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: failed to commit transaction: %v", domain.ErrHistoryStore, err)
	}

	r.db.logger.Debug("history saved", "benchmark", h.Benchmark, "points", h.Len())
	return nil
}

// Ping checks that the database is reachable
func (r *HistoryRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}

// insertArgs returns the parameters $1 to $9 of one history row
func insertArgs(benchmark string, p domain.AggregatedPoint) ([]any, error) {
	date, err := time.Parse(domain.DateLayout, p.Date)
	if err != nil {
		return nil, err
	}
	return []any{
		benchmark,
		date,
		string(p.Platform),
		p.Category,
		p.AveragePrice,
		p.MedianPrice,
		p.MinPrice,
		p.MaxPrice,
		p.SampleSize,
	}, nil
}

func scanPoint(row pgx.Row) (domain.AggregatedPoint, error) {
	var (
		p                         domain.AggregatedPoint
		platform                  string
		average, median, min, max string
	)

	if err := row.Scan(&p.Date, &platform, &p.Category, &average, &median, &min, &max, &p.SampleSize); err != nil {
		return p, err
	}
	p.Platform = domain.Platform(platform)

	var err error
	if p.AveragePrice, err = decimal.NewFromString(average); err != nil {
		return p, fmt.Errorf("failed to parse average price: %w", err)
	}
	if p.MedianPrice, err = decimal.NewFromString(median); err != nil {
		return p, fmt.Errorf("failed to parse median price: %w", err)
	}
	if p.MinPrice, err = decimal.NewFromString(min); err != nil {
		return p, fmt.Errorf("failed to parse min price: %w", err)
	}
	if p.MaxPrice, err = decimal.NewFromString(max); err != nil {
		return p, fmt.Errorf("failed to parse max price: %w", err)
	}

	return p, nil
}
