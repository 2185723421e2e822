package cockroach

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"gufagu-backend/internal/domain"
)

// ReportRepository stores moderation reports raised from a match
type ReportRepository struct {
	pool *pgxpool.Pool
}

// NewReportRepository creates a new ReportRepository
func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// Create inserts a report record
func (r *ReportRepository) Create(ctx context.Context, report *domain.MatchReport) error {
	query := `
		INSERT INTO match_reports (
			report_id, match_id, reporter_handle, reporter_id,
			reported_handle, reported_id, reason, evidence_key, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		report.ReportID,
		report.MatchID,
		string(report.ReporterConn),
		nullableID(report.ReporterID),
		string(report.ReportedConn),
		nullableID(report.ReportedID),
		report.Reason,
		report.EvidenceKey,
		report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create match report: %w", err)
	}

	return nil
}
