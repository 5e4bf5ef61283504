package langdetect

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// LibreTranslate asks a LibreTranslate /detect endpoint. A circuit breaker
// stops calling the service for a while after repeated failures.
type LibreTranslate struct {
	url           string
	minConfidence float64
	client        *http.Client
	breaker       *gobreaker.CircuitBreaker
	logger        *zap.Logger
}

func NewLibreTranslate(url string, timeout time.Duration, minConfidence float64, logger *zap.Logger) *LibreTranslate {
	if logger == nil {
		logger = zap.NewNop()
	}
	log := logger.Named("langdetect")
	settings := gobreaker.Settings{
		Name:        "libretranslate",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrLowConfidence)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change",
				zap.String("name", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	}
	return &LibreTranslate{
		url:           strings.TrimSpace(url),
		minConfidence: minConfidence,
		client:        &http.Client{Timeout: timeout},
		breaker:       gobreaker.NewCircuitBreaker(settings),
		logger:        log,
	}
}

type detection struct {
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

func (d *LibreTranslate) Detect(ctx context.Context, text string) (Result, error) {
	out, err := d.breaker.Execute(func() (interface{}, error) {
		return d.call(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		d.logger.Debug("language service skipped", zap.Error(err))
		return Result{}, err
	}
	return out.(Result), nil
}

func (d *LibreTranslate) call(ctx context.Context, text string) (Result, error) {
	raw, err := json.Marshal(map[string]string{"q": text})
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, bytes.NewReader(raw))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("%w: detect HTTP %d", ErrUnavailable, resp.StatusCode)
	}
	var body []detection
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(body) == 0 || strings.TrimSpace(body[0].Language) == "" {
		return Result{}, fmt.Errorf("%w: empty detect response", ErrUnavailable)
	}
	best := body[0]
	conf := best.Confidence
	// Newer LibreTranslate releases report confidence as a percentage.
	if conf > 1 {
		conf /= 100
	}
	if conf <= d.minConfidence {
		return Result{}, fmt.Errorf("%w: %s at %.2f", ErrLowConfidence, best.Language, conf)
	}
	return Result{
		Language:   strings.ToLower(strings.TrimSpace(best.Language)),
		Confidence: conf,
		Source:     SourceService,
	}, nil
}
