package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/skirmish/internal/game/round"
)

// RoundHistoryRepository stores resolved round results per tenant, trimmed
// to a configured retention limit. It implements round.History.
type RoundHistoryRepository struct {
	db    *pgxpool.Pool
	limit int
}

// NewRoundHistoryRepository creates a RoundHistoryRepository. limit <= 0
// disables trimming.
//
// Precondition: db must be a valid, open connection pool.
func NewRoundHistoryRepository(db *pgxpool.Pool, limit int) *RoundHistoryRepository {
	return &RoundHistoryRepository{db: db, limit: limit}
}

// Append records one resolved round result and trims rows beyond the
// retention limit, oldest first.
func (r *RoundHistoryRepository) Append(ctx context.Context, tenantID string, result round.Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding round result: %w", err)
	}

	if _, err := r.db.Exec(ctx,
		`INSERT INTO round_history (tenant_id, round, payload) VALUES ($1, $2, $3)`,
		tenantID, result.Round, payload,
	); err != nil {
		return fmt.Errorf("inserting round history for %q: %w", tenantID, err)
	}

	if r.limit <= 0 {
		return nil
	}
	if _, err := r.db.Exec(ctx,
		`DELETE FROM round_history
		 WHERE tenant_id = $1
		   AND id NOT IN (
		     SELECT id FROM round_history
		     WHERE tenant_id = $1
		     ORDER BY id DESC
		     LIMIT $2
		   )`,
		tenantID, r.limit,
	); err != nil {
		return fmt.Errorf("trimming round history for %q: %w", tenantID, err)
	}
	return nil
}

// Recent returns up to n results for the tenant, newest first.
func (r *RoundHistoryRepository) Recent(ctx context.Context, tenantID string, n int) ([]round.Result, error) {
	rows, err := r.db.Query(ctx,
		`SELECT payload FROM round_history
		 WHERE tenant_id = $1
		 ORDER BY id DESC
		 LIMIT $2`,
		tenantID, n,
	)
	if err != nil {
		return nil, fmt.Errorf("querying round history for %q: %w", tenantID, err)
	}
	defer rows.Close()

	var results []round.Result
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scanning round history row: %w", err)
		}
		var res round.Result
		if err := json.Unmarshal(payload, &res); err != nil {
			return nil, fmt.Errorf("decoding round history row: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating round history rows: %w", err)
	}
	return results, nil
}

// Clear deletes all history rows for the tenant. Used when a game is
// reset after the final standings.
func (r *RoundHistoryRepository) Clear(ctx context.Context, tenantID string) error {
	if _, err := r.db.Exec(ctx,
		`DELETE FROM round_history WHERE tenant_id = $1`,
		tenantID,
	); err != nil {
		return fmt.Errorf("clearing round history for %q: %w", tenantID, err)
	}
	return nil
}

var _ round.History = (*RoundHistoryRepository)(nil)
