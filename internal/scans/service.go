package scans

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kianh03/fraudlens/internal/report"
)

// defaultHistoryLimit caps history queries that pass no explicit limit.
const defaultHistoryLimit = 50

// analyzer submits URLs to the upstream analysis service.
type analyzer interface {
	Analyze(ctx context.Context, rawURL string) (*report.AnalysisResult, error)
}

// scanRepo is the storage interface consumed by ScanService.
type scanRepo interface {
	Record(ctx context.Context, s *Scan) error
	GetByID(ctx context.Context, id uuid.UUID) (*Scan, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]Scan, error)
	GetStats(ctx context.Context, userID uuid.UUID) (*Stats, error)
	Delete(ctx context.Context, userID, scanID uuid.UUID) error
}

// Notifier receives completed high-risk scans. Implementations must be
// safe for concurrent use.
type Notifier interface {
	NotifyHighRisk(ctx context.Context, s *Scan) error
}

// ScanService runs the scan pipeline: analyze, render, persist, alert.
type ScanService struct {
	analyzer analyzer
	builder  *report.Builder
	repo     scanRepo
	notifier Notifier // optional
	logger   *zap.Logger
}

// NewScanService creates a new ScanService. notifier may be nil.
func NewScanService(a analyzer, b *report.Builder, repo scanRepo, notifier Notifier, logger *zap.Logger) *ScanService {
	return &ScanService{analyzer: a, builder: b, repo: repo, notifier: notifier, logger: logger}
}

// Scan analyzes rawURL and returns the rendered report plus the stored
// scan record. Anonymous callers (userID == uuid.Nil) get a report but
// no persisted record or statistics update.
func (s *ScanService) Scan(ctx context.Context, userID uuid.UUID, rawURL string) (*report.Report, *Scan, error) {
	result, err := s.analyzer.Analyze(ctx, rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("analyze url: %w", err)
	}

	rep := s.builder.Build(result)

	scan := &Scan{
		UserID:    userID,
		URL:       rep.URL,
		RiskScore: rep.AggregateScore,
		RiskLevel: RiskLevelForScore(rep.AggregateScore),
		Result:    rep,
	}

	if userID == uuid.Nil {
		return rep, scan, nil
	}

	if err := s.repo.Record(ctx, scan); err != nil {
		return nil, nil, fmt.Errorf("record scan: %w", err)
	}
	s.logger.Info("scan recorded",
		zap.String("scan_id", scan.ID.String()),
		zap.String("url", scan.URL),
		zap.Float64("risk_score", scan.RiskScore),
		zap.String("risk_level", scan.RiskLevel),
	)

	if s.notifier != nil && scan.RiskLevel == RiskLevelHigh {
		// Alert delivery must not block or fail the scan response.
		go func(sc Scan) {
			nctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := s.notifier.NotifyHighRisk(nctx, &sc); err != nil {
				s.logger.Warn("high-risk notification failed",
					zap.String("scan_id", sc.ID.String()), zap.Error(err))
			}
		}(*scan)
	}

	return rep, scan, nil
}

// Get returns one of the caller's scans with its stored report.
// Another user's scan ID yields ErrNotFound, not a permission error.
func (s *ScanService) Get(ctx context.Context, userID, scanID uuid.UUID) (*Scan, error) {
	scan, err := s.repo.GetByID(ctx, scanID)
	if err != nil {
		return nil, err
	}
	if scan.UserID != userID {
		return nil, ErrNotFound
	}
	return scan, nil
}

// History returns the caller's most recent scans, newest first.
func (s *ScanService) History(ctx context.Context, userID uuid.UUID, limit int) ([]Scan, error) {
	if limit <= 0 || limit > defaultHistoryLimit {
		limit = defaultHistoryLimit
	}
	return s.repo.ListByUser(ctx, userID, limit)
}

// Stats returns the caller's scan statistics. A user who has never
// scanned gets a zero-value row, not an error.
func (s *ScanService) Stats(ctx context.Context, userID uuid.UUID) (*Stats, error) {
	return s.repo.GetStats(ctx, userID)
}

// Delete removes one of the caller's scans from history. Statistics
// are intentionally left untouched: counters reflect scans performed,
// not history retained.
func (s *ScanService) Delete(ctx context.Context, userID, scanID uuid.UUID) error {
	if err := s.repo.Delete(ctx, userID, scanID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("delete scan: %w", err)
	}
	return nil
}
