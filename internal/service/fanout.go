package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"countyportal/internal/models"
	"countyportal/internal/notify"
)

type FanoutResult struct {
	BatchID  string `json:"batch_id,omitempty"`
	Eligible int    `json:"eligible"`
	Sent     int    `json:"sent"`
	Failed   int    `json:"failed"`
}

// SendProjectUpdate emails every active, verified subscriber of a project.
// A failed recipient is logged and counted; the rest still get the email.
// adminID may be nil when the update is triggered outside the admin API.
func (s *Service) SendProjectUpdate(ctx context.Context, adminID *int64, projectID int64, updateType, details string) (FanoutResult, error) {
	subs, err := s.st.ListDeliverableSubscriptions(ctx, projectID)
	if err != nil {
		return FanoutResult{}, fmt.Errorf("list subscribers: %w", err)
	}
	if len(subs) == 0 {
		return FanoutResult{}, nil
	}
	project, err := s.project(ctx, projectID)
	if err != nil {
		return FanoutResult{}, err
	}

	t := notify.NormalizeUpdateType(updateType)
	subject := notify.Subject(t, project.Name)
	res := FanoutResult{BatchID: uuid.NewString(), Eligible: len(subs)}
	log := s.logger.With(zap.String("batch_id", res.BatchID), zap.Int64("project_id", projectID))

	for _, sub := range subs {
		if err := ctx.Err(); err != nil {
			log.Warn("fan-out cancelled", zap.Int("sent", res.Sent), zap.Error(err))
			res.Failed += len(subs) - res.Sent - res.Failed
			break
		}
		if err := s.deliver(ctx, project, sub, t, subject, details, res.BatchID); err != nil {
			res.Failed++
			s.metrics.ObserveNotification("failed")
			log.Warn("notification failed", zap.Int64("subscription_id", sub.ID), zap.Error(err))
			continue
		}
		res.Sent++
		s.metrics.ObserveNotification("sent")
	}

	s.logActivity(ctx, "notification_sent",
		fmt.Sprintf("%s sent to %d of %d subscribers", subject, res.Sent, res.Eligible),
		adminID, "project", &projectID, map[string]any{
			"batch_id":    res.BatchID,
			"update_type": t,
			"sent":        res.Sent,
			"failed":      res.Failed,
		})
	log.Info("fan-out finished", zap.Int("sent", res.Sent), zap.Int("failed", res.Failed))
	return res, nil
}

func (s *Service) deliver(ctx context.Context, project models.Project, sub models.Subscription, t notify.UpdateType, subject, details, batchID string) error {
	body, err := notify.RenderUpdate(notify.UpdateData{
		ProjectName:    project.Name,
		ProjectStatus:  project.Status,
		Progress:       project.ProgressPercentage,
		UpdateType:     t,
		Details:        details,
		ProjectURL:     s.projectURL(project.ID),
		UnsubscribeURL: s.unsubscribeURL(sub.SubscriptionToken),
	})
	if err != nil {
		return err
	}
	if err := s.mailer.SendEmail(ctx, sub.Email, subject, body); err != nil {
		return err
	}

	now := s.now()
	if err := s.st.InsertNotificationLog(ctx, models.NotificationLogEntry{
		SubscriptionID:   sub.ID,
		ProjectID:        project.ID,
		NotificationType: string(t),
		Subject:          subject,
		Content:          details,
		BatchID:          batchID,
		SentAt:           now,
	}); err != nil {
		s.logger.Warn("notification log write failed", zap.Int64("subscription_id", sub.ID), zap.Error(err))
	}
	if err := s.st.TouchLastNotified(ctx, sub.ID, now); err != nil {
		s.logger.Warn("last notification update failed", zap.Int64("subscription_id", sub.ID), zap.Error(err))
	}
	return nil
}
