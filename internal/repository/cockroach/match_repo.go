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

// MatchRepository handles durable random-chat match records
type MatchRepository struct {
	pool *pgxpool.Pool
}

// NewMatchRepository creates a new match repository
func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

// nullableID maps anonymous parties to SQL NULL
func nullableID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func fromNullableID(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

// Create inserts a freshly committed match
func (r *MatchRepository) Create(ctx context.Context, match *domain.Match) error {
	query := `
		INSERT INTO matches (
			match_id, user1_handle, user2_handle, user1_id, user2_id,
			user1_name, user2_name, shared_interests, start_time, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (match_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		match.MatchID,
		string(match.User1Conn),
		string(match.User2Conn),
		nullableID(match.User1ID),
		nullableID(match.User2ID),
		match.User1Name,
		match.User2Name,
		match.SharedInterests,
		match.StartTime,
		match.Status,
	)
	if err != nil {
		return fmt.Errorf("failed to create match: %w", err)
	}

	return nil
}

// Finish records the terminal state of a match. It upserts the full row so a
// Finish that lands before its Create still converges, and rows already in a
// terminal status are left untouched.
func (r *MatchRepository) Finish(ctx context.Context, match *domain.Match) error {
	query := `
		INSERT INTO matches (
			match_id, user1_handle, user2_handle, user1_id, user2_id,
			user1_name, user2_name, shared_interests, start_time, status,
			end_reason, end_time, duration, connection_quality
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (match_id) DO UPDATE SET
			status = EXCLUDED.status,
			end_reason = EXCLUDED.end_reason,
			end_time = EXCLUDED.end_time,
			duration = EXCLUDED.duration,
			connection_quality = EXCLUDED.connection_quality
		WHERE matches.status = 'active'
	`

	_, err := r.pool.Exec(ctx, query,
		match.MatchID,
		string(match.User1Conn),
		string(match.User2Conn),
		nullableID(match.User1ID),
		nullableID(match.User2ID),
		match.User1Name,
		match.User2Name,
		match.SharedInterests,
		match.StartTime,
		match.Status,
		match.EndReason,
		match.EndTime,
		match.Duration,
		match.ConnectionQuality,
	)
	if err != nil {
		return fmt.Errorf("failed to finish match: %w", err)
	}

	return nil
}

const matchColumns = `
	match_id, user1_handle, user2_handle, user1_id, user2_id, user1_name, user2_name,
	shared_interests, start_time, end_time, status, COALESCE(end_reason, ''),
	duration, COALESCE(connection_quality, '')
`

func scanMatch(row pgx.Row) (*domain.Match, error) {
	var (
		m            domain.Match
		conn1, conn2 string
		user1, user2 *uuid.UUID
	)
	err := row.Scan(
		&m.MatchID,
		&conn1,
		&conn2,
		&user1,
		&user2,
		&m.User1Name,
		&m.User2Name,
		&m.SharedInterests,
		&m.StartTime,
		&m.EndTime,
		&m.Status,
		&m.EndReason,
		&m.Duration,
		&m.ConnectionQuality,
	)
	if err != nil {
		return nil, err
	}
	m.User1Conn = domain.ConnID(conn1)
	m.User2Conn = domain.ConnID(conn2)
	m.User1ID = fromNullableID(user1)
	m.User2ID = fromNullableID(user2)
	return &m, nil
}

// GetByID retrieves a match by ID
func (r *MatchRepository) GetByID(ctx context.Context, matchID uuid.UUID) (*domain.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM matches WHERE match_id = $1`

	match, err := scanMatch(r.pool.QueryRow(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.MatchNotFoundError()
		}
		return nil, fmt.Errorf("failed to get match: %w", err)
	}

	return match, nil
}

// GetUserMatches retrieves the match history of an account, newest first
func (r *MatchRepository) GetUserMatches(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Match, error) {
	query := `SELECT ` + matchColumns + `
		FROM matches
		WHERE user1_id = $1 OR user2_id = $1
		ORDER BY start_time DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get user matches: %w", err)
	}
	defer rows.Close()

	var matches []*domain.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		matches = append(matches, match)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate matches: %w", err)
	}

	return matches, nil
}
