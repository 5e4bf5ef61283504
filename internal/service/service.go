package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"countyportal/internal/config"
	"countyportal/internal/langdetect"
	"countyportal/internal/metrics"
	"countyportal/internal/models"
	"countyportal/internal/notify"
	"countyportal/internal/store"
	"countyportal/internal/wordlist"
)

var (
	ErrDuplicateComment   = errors.New("duplicate comment")
	ErrProjectNotFound    = errors.New("project not found")
	ErrProjectUnavailable = errors.New("project not open for subscriptions")
	ErrAlreadySubscribed  = errors.New("already subscribed")
	ErrInvalidToken       = errors.New("invalid or expired token")
)

// ValidationError is a user-correctable input problem.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

type Service struct {
	cfg      config.Config
	st       *store.Store
	words    wordlist.Store
	detector langdetect.Detector
	mailer   notify.Mailer
	metrics  *metrics.Metrics
	logger   *zap.Logger
	now      func() time.Time
}

type Option func(*Service)

// WithClock replaces time.Now, mainly for tests of time windows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(cfg config.Config, st *store.Store, words wordlist.Store, detector langdetect.Detector, mailer notify.Mailer, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if detector == nil {
		detector = langdetect.Heuristic{}
	}
	if mailer == nil {
		mailer = notify.NewLogMailer(logger)
	}
	s := &Service{
		cfg:      cfg,
		st:       st,
		words:    words,
		detector: detector,
		mailer:   mailer,
		logger:   logger.Named("service"),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Service) Ready(ctx context.Context) error {
	return s.st.Ping(ctx)
}

// MailHealth probes the mail relay. checked is false when the transport
// has nothing to probe.
func (s *Service) MailHealth(ctx context.Context) (checked bool, err error) {
	p, ok := s.mailer.(notify.Prober)
	if !ok {
		return false, nil
	}
	return true, p.Probe(ctx)
}

func (s *Service) project(ctx context.Context, id int64) (models.Project, error) {
	p, err := s.st.GetProject(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return models.Project{}, ErrProjectNotFound
	}
	return p, err
}

// logActivity writes an audit row. Failures are logged and dropped.
func (s *Service) logActivity(ctx context.Context, activityType, description string, adminID *int64, targetType string, targetID *int64, data map[string]any) {
	entry := models.ActivityEntry{
		ActivityType: activityType,
		Description:  description,
		AdminID:      adminID,
		TargetType:   targetType,
		TargetID:     targetID,
		CreatedAt:    s.now(),
	}
	if len(data) > 0 {
		if b, err := json.Marshal(data); err == nil {
			entry.AdditionalData = string(b)
		}
	}
	if err := s.st.InsertActivity(ctx, entry); err != nil {
		s.logger.Warn("activity log write failed", zap.String("activity_type", activityType), zap.Error(err))
	}
}

