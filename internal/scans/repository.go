package scans

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a scan lookup finds no matching record.
var ErrNotFound = errors.New("scan not found")

// ScanRepository persists scans and statistics in PostgreSQL.
type ScanRepository struct {
	db *pgxpool.Pool
}

// NewScanRepository creates a new ScanRepository.
func NewScanRepository(db *pgxpool.Pool) *ScanRepository {
	return &ScanRepository{db: db}
}

// Record atomically inserts the scan and folds it into the owner's
// statistics row. The stats row is created on first scan. Sets ID and
// CreatedAt on the scan.
func (r *ScanRepository) Record(ctx context.Context, s *Scan) error {
	s.ID = uuid.New()
	s.CreatedAt = time.Now().UTC()

	resultJSON, err := json.Marshal(s.Result)
	if err != nil {
		return fmt.Errorf("marshal scan result: %w", err)
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	q := `
		INSERT INTO scans (id, user_id, url, risk_score, risk_level, result, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, q,
		s.ID, s.UserID, s.URL, s.RiskScore, s.RiskLevel, resultJSON, s.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}

	stats := Stats{UserID: s.UserID}
	sel := `
		SELECT total_scans, threats_detected, safe_urls, avg_risk_score,
		       high_risk_scans, medium_risk_scans, low_risk_scans, last_scan_date
		FROM scan_stats WHERE user_id = $1 FOR UPDATE`
	err = tx.QueryRow(ctx, sel, s.UserID).Scan(
		&stats.TotalScans, &stats.ThreatsDetected, &stats.SafeURLs, &stats.AvgRiskScore,
		&stats.HighRiskScans, &stats.MediumRiskScans, &stats.LowRiskScans, &stats.LastScanDate,
	)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("query scan stats: %w", err)
	}

	stats.Apply(s.RiskScore, s.RiskLevel, s.CreatedAt)

	up := `
		INSERT INTO scan_stats (user_id, total_scans, threats_detected, safe_urls, avg_risk_score,
		                        high_risk_scans, medium_risk_scans, low_risk_scans, last_scan_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (user_id) DO UPDATE SET
			total_scans = EXCLUDED.total_scans,
			threats_detected = EXCLUDED.threats_detected,
			safe_urls = EXCLUDED.safe_urls,
			avg_risk_score = EXCLUDED.avg_risk_score,
			high_risk_scans = EXCLUDED.high_risk_scans,
			medium_risk_scans = EXCLUDED.medium_risk_scans,
			low_risk_scans = EXCLUDED.low_risk_scans,
			last_scan_date = EXCLUDED.last_scan_date`
	if _, err := tx.Exec(ctx, up,
		stats.UserID, stats.TotalScans, stats.ThreatsDetected, stats.SafeURLs, stats.AvgRiskScore,
		stats.HighRiskScans, stats.MediumRiskScans, stats.LowRiskScans, stats.LastScanDate,
	); err != nil {
		return fmt.Errorf("upsert scan stats: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID retrieves a single scan with its full stored report.
func (r *ScanRepository) GetByID(ctx context.Context, id uuid.UUID) (*Scan, error) {
	q := `
		SELECT id, user_id, url, risk_score, risk_level, result, created_at
		FROM scans WHERE id = $1`
	var s Scan
	var resultJSON []byte
	err := r.db.QueryRow(ctx, q, id).Scan(
		&s.ID, &s.UserID, &s.URL, &s.RiskScore, &s.RiskLevel, &resultJSON, &s.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query scan: %w", err)
	}
	if len(resultJSON) > 0 {
		if err := json.Unmarshal(resultJSON, &s.Result); err != nil {
			return nil, fmt.Errorf("decode scan result: %w", err)
		}
	}
	return &s, nil
}

// ListByUser returns the user's most recent scans, newest first. The
// stored report is omitted; history views only need the summary row.
func (r *ScanRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Scan, error) {
	q := `
		SELECT id, user_id, url, risk_score, risk_level, created_at
		FROM scans WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`
	rows, err := r.db.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query scans: %w", err)
	}
	defer rows.Close()

	var out []Scan
	for rows.Next() {
		var s Scan
		if err := rows.Scan(&s.ID, &s.UserID, &s.URL, &s.RiskScore, &s.RiskLevel, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GetStats returns the user's statistics row, or a zero-value Stats
// when the user has never scanned.
func (r *ScanRepository) GetStats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	q := `
		SELECT total_scans, threats_detected, safe_urls, avg_risk_score,
		       high_risk_scans, medium_risk_scans, low_risk_scans, last_scan_date
		FROM scan_stats WHERE user_id = $1`
	stats := Stats{UserID: userID}
	err := r.db.QueryRow(ctx, q, userID).Scan(
		&stats.TotalScans, &stats.ThreatsDetected, &stats.SafeURLs, &stats.AvgRiskScore,
		&stats.HighRiskScans, &stats.MediumRiskScans, &stats.LowRiskScans, &stats.LastScanDate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return &stats, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query scan stats: %w", err)
	}
	return &stats, nil
}

// Delete removes a scan owned by userID. Ownership is enforced in the
// query so one user cannot delete another's history.
func (r *ScanRepository) Delete(ctx context.Context, userID, scanID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM scans WHERE id = $1 AND user_id = $2`, scanID, userID)
	if err != nil {
		return fmt.Errorf("delete scan: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
