package cockroach

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"gufagu-backend/internal/domain"
	apperrors "gufagu-backend/pkg/errors"
)

// CallRepository handles friend call data operations
type CallRepository struct {
	pool *pgxpool.Pool
}

// NewCallRepository creates a new call repository
func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{pool: pool}
}

// Create creates a new call record
func (r *CallRepository) Create(ctx context.Context, call *domain.Call) error {
	query := `
		INSERT INTO calls (
			call_id, caller_id, receiver_id, call_type, status, started_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (call_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		call.CallID,
		call.CallerID,
		call.ReceiverID,
		call.CallType,
		call.Status,
		call.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}

	return nil
}

// UpdateStatus writes a state transition. The full row is upserted so a
// transition that lands before its Create still converges; terminal rows
// never change again.
func (r *CallRepository) UpdateStatus(ctx context.Context, call *domain.Call) error {
	query := `
		INSERT INTO calls (
			call_id, caller_id, receiver_id, call_type, status, started_at,
			answered_at, ended_at, duration, end_reason
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (call_id) DO UPDATE SET
			status = EXCLUDED.status,
			answered_at = EXCLUDED.answered_at,
			ended_at = EXCLUDED.ended_at,
			duration = EXCLUDED.duration,
			end_reason = EXCLUDED.end_reason
		WHERE calls.status NOT IN ('declined', 'missed', 'ended', 'failed')
	`

	_, err := r.pool.Exec(ctx, query,
		call.CallID,
		call.CallerID,
		call.ReceiverID,
		call.CallType,
		call.Status,
		call.StartedAt,
		call.AnsweredAt,
		call.EndedAt,
		call.Duration,
		call.EndReason,
	)
	if err != nil {
		return fmt.Errorf("failed to update call status: %w", err)
	}

	return nil
}

const callColumns = `
	call_id, caller_id, receiver_id, call_type, status,
	started_at, answered_at, ended_at, duration, COALESCE(end_reason, '')
`

func scanCall(row pgx.Row) (*domain.Call, error) {
	call := &domain.Call{}
	err := row.Scan(
		&call.CallID,
		&call.CallerID,
		&call.ReceiverID,
		&call.CallType,
		&call.Status,
		&call.StartedAt,
		&call.AnsweredAt,
		&call.EndedAt,
		&call.Duration,
		&call.EndReason,
	)
	return call, err
}

// GetByID retrieves a call by ID
func (r *CallRepository) GetByID(ctx context.Context, callID string) (*domain.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE call_id = $1`

	call, err := scanCall(r.pool.QueryRow(ctx, query, callID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.CallNotFoundError()
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}

	return call, nil
}

// GetUserCalls retrieves all calls placed or received by a user
func (r *CallRepository) GetUserCalls(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Call, error) {
	query := `SELECT ` + callColumns + `
		FROM calls
		WHERE caller_id = $1 OR receiver_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get user calls: %w", err)
	}
	defer rows.Close()

	var calls []*domain.Call
	for rows.Next() {
		call, err := scanCall(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate calls: %w", err)
	}

	return calls, nil
}
