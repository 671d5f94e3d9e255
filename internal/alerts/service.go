package alerts

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kianh03/fraudlens/internal/email"
	"github.com/kianh03/fraudlens/internal/scans"
	"github.com/kianh03/fraudlens/internal/users"
)

const (
	signatureHeader = "X-FraudLens-Signature"
	eventHeader     = "X-FraudLens-Event"

	maxAttempts = 3
)

// retry backoff indexed by attempt number.
var retryDelays = []time.Duration{0, time.Second, 5 * time.Second, 25 * time.Second}

type subscriptionRepo interface {
	Create(ctx context.Context, sub *Subscription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Subscription, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)
	ListByEvent(ctx context.Context, userID uuid.UUID, eventType string) ([]*Subscription, error)
	Delete(ctx context.Context, id, userID uuid.UUID) error
	RecordDelivery(ctx context.Context, d *Delivery) error
	ListDeliveries(ctx context.Context, subscriptionID uuid.UUID, limit int) ([]*Delivery, error)
}

type userDirectory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.User, error)
}

// AlertService dispatches scan alerts to webhook subscriptions and sends
// email notifications to users who opted in. It satisfies scans.Notifier.
type AlertService struct {
	repo      subscriptionRepo
	users     userDirectory
	mailer    email.EmailSender
	client    *http.Client
	onMetrics func(status string)
	logger    *zap.Logger
}

func NewAlertService(repo subscriptionRepo, dir userDirectory, mailer email.EmailSender, logger *zap.Logger) *AlertService {
	return &AlertService{
		repo:   repo,
		users:  dir,
		mailer: mailer,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// SetMetricsRecord installs a callback invoked once per webhook delivery
// outcome with "success" or "failure".
func (s *AlertService) SetMetricsRecord(fn func(status string)) {
	s.onMetrics = fn
}

// CreateSubscription registers a webhook endpoint for the given events and
// returns the subscription together with its signing secret. The secret is
// only exposed at creation time.
func (s *AlertService) CreateSubscription(ctx context.Context, userID uuid.UUID, req CreateSubscriptionRequest) (*Subscription, string, error) {
	for _, ev := range req.Events {
		if ev != EventScanHighRisk && ev != EventScanCompleted {
			return nil, "", fmt.Errorf("unknown event type %q", ev)
		}
	}

	secret, err := generateSecret()
	if err != nil {
		return nil, "", fmt.Errorf("generate secret: %w", err)
	}

	sub := &Subscription{
		ID:        uuid.New(),
		UserID:    userID,
		URL:       req.URL,
		Events:    req.Events,
		Secret:    secret,
		Active:    true,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, sub); err != nil {
		return nil, "", err
	}
	return sub, secret, nil
}

func (s *AlertService) ListSubscriptions(ctx context.Context, userID uuid.UUID) ([]*Subscription, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *AlertService) DeleteSubscription(ctx context.Context, id, userID uuid.UUID) error {
	return s.repo.Delete(ctx, id, userID)
}

// ListDeliveries returns recent delivery attempts for a subscription owned
// by the given user.
func (s *AlertService) ListDeliveries(ctx context.Context, id, userID uuid.UUID) ([]*Delivery, error) {
	sub, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, ErrNotFound
	}
	return s.repo.ListDeliveries(ctx, id, 50)
}

// NotifyHighRisk dispatches the high-risk event to the scan owner's webhook
// subscriptions and emails the owner when alert emails are enabled.
func (s *AlertService) NotifyHighRisk(ctx context.Context, scan *scans.Scan) error {
	event := Event{
		Type:      EventScanHighRisk,
		Timestamp: time.Now().UTC(),
		Payload: map[string]string{
			"scan_id":    scan.ID.String(),
			"url":        scan.URL,
			"risk_score": strconv.FormatFloat(scan.RiskScore, 'f', 2, 64),
			"risk_level": scan.RiskLevel,
		},
	}

	subs, err := s.repo.ListByEvent(ctx, scan.UserID, EventScanHighRisk)
	if err != nil {
		return fmt.Errorf("list subscriptions: %w", err)
	}
	for _, sub := range subs {
		go s.deliver(context.Background(), sub, event)
	}

	if err := s.emailOwner(ctx, scan); err != nil {
		s.logger.Warn("alert email failed", zap.String("scan_id", scan.ID.String()), zap.Error(err))
	}
	return nil
}

func (s *AlertService) emailOwner(ctx context.Context, scan *scans.Scan) error {
	owner, err := s.users.GetByID(ctx, scan.UserID)
	if err != nil {
		return err
	}
	if !owner.AlertEmails {
		return nil
	}
	subject := "FraudLens alert: high-risk URL detected"
	body := fmt.Sprintf(
		"Hi %s,\n\nA scan you ran flagged a high-risk URL.\n\nURL: %s\nRisk score: %.1f\n\nReview the full report in your FraudLens dashboard.\n\nManage alert emails in your account preferences.\n",
		owner.DisplayName, scan.URL, scan.RiskScore)
	return s.mailer.Send(ctx, owner.Email, subject, body)
}

func (s *AlertService) deliver(ctx context.Context, sub *Subscription, event Event) {
	body, err := json.Marshal(event)
	if err != nil {
		s.logger.Error("marshal alert event", zap.Error(err))
		return
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		select {
		case <-time.After(retryDelays[attempt-1]):
		case <-ctx.Done():
			return
		}

		status, err := s.doDelivery(ctx, sub, event.Type, body)
		success := err == nil

		rec := &Delivery{
			ID:             uuid.New(),
			SubscriptionID: sub.ID,
			EventType:      event.Type,
			StatusCode:     status,
			Attempt:        attempt,
			Success:        success,
			DeliveredAt:    time.Now().UTC(),
		}
		if err != nil {
			rec.ErrorMessage = err.Error()
		}
		if rerr := s.repo.RecordDelivery(ctx, rec); rerr != nil {
			s.logger.Warn("record delivery", zap.Error(rerr))
		}

		if success {
			if s.onMetrics != nil {
				s.onMetrics("success")
			}
			return
		}
		s.logger.Warn("webhook delivery failed",
			zap.String("subscription_id", sub.ID.String()),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	if s.onMetrics != nil {
		s.onMetrics("failure")
	}
}

func (s *AlertService) doDelivery(ctx context.Context, sub *Subscription, eventType string, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sub.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(eventHeader, eventType)
	req.Header.Set(signatureHeader, signPayload(body, sub.Secret))

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, fmt.Errorf("endpoint returned %d", resp.StatusCode)
	}
	return resp.StatusCode, nil
}

func signPayload(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func generateSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
