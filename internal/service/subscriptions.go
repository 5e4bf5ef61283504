package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"countyportal/internal/auth"
	"countyportal/internal/models"
	"countyportal/internal/notify"
	"countyportal/internal/store"
)

const (
	SubscriptionCreated     = "created"
	SubscriptionReactivated = "reactivated"
)

type SubscribeRequest struct {
	ProjectID int64
	Email     string
	IP        string
	UserAgent string
}

type SubscribeResult struct {
	SubscriptionID       int64
	Outcome              string
	RequiresVerification bool
}

func (s *Service) Subscribe(ctx context.Context, in SubscribeRequest) (SubscribeResult, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	if in.ProjectID <= 0 {
		return SubscribeResult{}, invalid("project_id", "a valid project is required")
	}
	if email == "" || len(email) > maxEmailLength {
		return SubscribeResult{}, invalid("email", "a valid email address is required")
	}
	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return SubscribeResult{}, invalid("email", "a valid email address is required")
	}

	project, err := s.project(ctx, in.ProjectID)
	if err != nil {
		return SubscribeResult{}, err
	}
	if !project.Published() {
		return SubscribeResult{}, ErrProjectUnavailable
	}

	existing, err := s.st.GetSubscriptionByProjectEmail(ctx, in.ProjectID, email)
	switch {
	case err == nil && existing.IsActive:
		return SubscribeResult{}, ErrAlreadySubscribed
	case err == nil:
		return s.reactivate(ctx, project, existing)
	case !errors.Is(err, store.ErrNotFound):
		return SubscribeResult{}, err
	}

	subToken, err := auth.NewCapabilityToken()
	if err != nil {
		return SubscribeResult{}, err
	}
	verifyToken, err := auth.NewCapabilityToken()
	if err != nil {
		return SubscribeResult{}, err
	}
	sub := models.Subscription{
		ProjectID:         in.ProjectID,
		Email:             email,
		SubscriptionToken: subToken,
		VerificationToken: &verifyToken,
		IsActive:          true,
		IPAddress:         in.IP,
		UserAgent:         in.UserAgent,
		SubscribedAt:      s.now(),
	}
	id, err := s.st.CreateSubscription(ctx, sub)
	if errors.Is(err, store.ErrConflict) {
		return SubscribeResult{}, ErrAlreadySubscribed
	}
	if err != nil {
		s.logger.Error("subscription insert failed", zap.Int64("project_id", in.ProjectID), zap.Error(err))
		return SubscribeResult{}, fmt.Errorf("store subscription: %w", err)
	}
	sub.ID = id

	s.sendVerification(ctx, project, sub)
	s.logActivity(ctx, "subscription_created",
		fmt.Sprintf("New subscription to project #%d", in.ProjectID),
		nil, "subscription", &id, map[string]any{"project_id": in.ProjectID})
	return SubscribeResult{SubscriptionID: id, Outcome: SubscriptionCreated, RequiresVerification: true}, nil
}

func (s *Service) reactivate(ctx context.Context, project models.Project, sub models.Subscription) (SubscribeResult, error) {
	var token *string
	if s.cfg.ReverifyOnReactivate {
		t, err := auth.NewCapabilityToken()
		if err != nil {
			return SubscribeResult{}, err
		}
		token = &t
	}
	if err := s.st.ReactivateSubscription(ctx, sub.ID, token, s.now()); err != nil {
		return SubscribeResult{}, fmt.Errorf("reactivate subscription: %w", err)
	}
	needsVerify := !sub.EmailVerified || token != nil
	if token != nil {
		sub.VerificationToken = token
	}
	if needsVerify && sub.VerificationToken != nil {
		s.sendVerification(ctx, project, sub)
	}
	s.logActivity(ctx, "subscription_reactivated",
		fmt.Sprintf("Subscription to project #%d reactivated", project.ID),
		nil, "subscription", &sub.ID, nil)
	return SubscribeResult{SubscriptionID: sub.ID, Outcome: SubscriptionReactivated, RequiresVerification: needsVerify}, nil
}

// sendVerification is best effort. The subscription stands even when the
// email cannot be delivered.
func (s *Service) sendVerification(ctx context.Context, project models.Project, sub models.Subscription) {
	if sub.VerificationToken == nil {
		return
	}
	body, err := notify.RenderVerification(notify.VerificationData{
		ProjectName:    project.Name,
		VerifyURL:      s.verifyURL(*sub.VerificationToken),
		UnsubscribeURL: s.unsubscribeURL(sub.SubscriptionToken),
	})
	if err == nil {
		err = s.mailer.SendEmail(ctx, sub.Email, notify.VerificationSubject(project.Name), body)
	}
	if err != nil {
		s.metrics.ObserveNotification("verification_failed")
		s.logger.Warn("verification email failed", zap.Int64("subscription_id", sub.ID), zap.Error(err))
		return
	}
	s.metrics.ObserveNotification("verification_sent")
}

func (s *Service) VerifyEmail(ctx context.Context, token string) (models.Subscription, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Subscription{}, ErrInvalidToken
	}
	sub, err := s.st.VerifySubscription(ctx, token, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return models.Subscription{}, ErrInvalidToken
	}
	if err != nil {
		return models.Subscription{}, err
	}
	s.logActivity(ctx, "subscription_verified", fmt.Sprintf("Subscription #%d verified", sub.ID), nil, "subscription", &sub.ID, nil)
	return sub, nil
}

func (s *Service) Unsubscribe(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return ErrInvalidToken
	}
	err := s.st.DeactivateSubscription(ctx, token, s.now())
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvalidToken
	}
	if err != nil {
		return err
	}
	s.logActivity(ctx, "subscription_cancelled", "Subscription cancelled", nil, "subscription", nil, nil)
	return nil
}

func (s *Service) SubscriberCount(ctx context.Context, projectID int64) (int, error) {
	return s.st.CountDeliverableSubscriptions(ctx, projectID)
}

func (s *Service) projectURL(id int64) string {
	return s.cfg.PublicBaseURL + "/projects/" + strconv.FormatInt(id, 10)
}

func (s *Service) verifyURL(token string) string {
	return s.cfg.PublicBaseURL + "/api/v1/subscriptions/verify?token=" + url.QueryEscape(token)
}

func (s *Service) unsubscribeURL(token string) string {
	return s.cfg.PublicBaseURL + "/api/v1/subscriptions/unsubscribe?token=" + url.QueryEscape(token)
}
