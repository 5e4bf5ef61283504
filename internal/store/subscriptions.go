package store

import (
	"context"
	"database/sql"
	"time"

	"countyportal/internal/models"
)

const subscriptionColumns = `id,project_id,email,subscription_token,verification_token,email_verified,is_active,ip_address,user_agent,subscribed_at,verified_at,unsubscribed_at,last_notification_sent`

func scanSubscription(row scanner) (models.Subscription, error) {
	var sub models.Subscription
	var verification, ip, ua sql.NullString
	var verifiedAt, unsubscribedAt, lastSent sql.NullTime
	err := row.Scan(&sub.ID, &sub.ProjectID, &sub.Email, &sub.SubscriptionToken, &verification, &sub.EmailVerified,
		&sub.IsActive, &ip, &ua, &sub.SubscribedAt, &verifiedAt, &unsubscribedAt, &lastSent)
	if err != nil {
		return models.Subscription{}, err
	}
	sub.VerificationToken = strPtr(verification)
	sub.IPAddress = ip.String
	sub.UserAgent = ua.String
	sub.SubscribedAt = sub.SubscribedAt.UTC()
	sub.VerifiedAt = timePtr(verifiedAt)
	sub.UnsubscribedAt = timePtr(unsubscribedAt)
	sub.LastNotificationSent = timePtr(lastSent)
	return sub, nil
}

func (s *Store) GetSubscriptionByProjectEmail(ctx context.Context, projectID int64, email string) (models.Subscription, error) {
	sub, err := scanSubscription(s.queryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM project_subscriptions WHERE project_id=? AND email=?`, projectID, email))
	if err == sql.ErrNoRows {
		return models.Subscription{}, ErrNotFound
	}
	return sub, err
}

func (s *Store) GetSubscriptionByVerificationToken(ctx context.Context, token string) (models.Subscription, error) {
	sub, err := scanSubscription(s.queryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM project_subscriptions WHERE verification_token=?`, token))
	if err == sql.ErrNoRows {
		return models.Subscription{}, ErrNotFound
	}
	return sub, err
}

// CreateSubscription returns ErrConflict when the project already has a row
// for the email.
func (s *Store) CreateSubscription(ctx context.Context, sub models.Subscription) (int64, error) {
	return s.insert(ctx,
		`INSERT INTO project_subscriptions(project_id,email,subscription_token,verification_token,email_verified,is_active,ip_address,user_agent,subscribed_at) VALUES(?,?,?,?,?,?,?,?,?)`,
		sub.ProjectID, sub.Email, sub.SubscriptionToken, nullString(sub.VerificationToken), boolInt(sub.EmailVerified),
		boolInt(sub.IsActive), sub.IPAddress, sub.UserAgent, dbTime(sub.SubscribedAt),
	)
}

// ReactivateSubscription turns an inactive row back on. With a non-nil
// verificationToken the address must be confirmed again.
func (s *Store) ReactivateSubscription(ctx context.Context, id int64, verificationToken *string, at time.Time) error {
	at = dbTime(at)
	if verificationToken != nil {
		return s.execOne(ctx,
			`UPDATE project_subscriptions SET is_active=1, unsubscribed_at=NULL, subscribed_at=?, email_verified=0, verified_at=NULL, verification_token=? WHERE id=?`,
			at, *verificationToken, id,
		)
	}
	return s.execOne(ctx,
		`UPDATE project_subscriptions SET is_active=1, unsubscribed_at=NULL, subscribed_at=? WHERE id=?`, at, id)
}

// VerifySubscription redeems a verification token once. The token is
// cleared so a second redemption fails with ErrNotFound.
func (s *Store) VerifySubscription(ctx context.Context, token string, at time.Time) (models.Subscription, error) {
	sub, err := s.GetSubscriptionByVerificationToken(ctx, token)
	if err != nil {
		return models.Subscription{}, err
	}
	if !sub.IsActive {
		return models.Subscription{}, ErrNotFound
	}
	at = dbTime(at)
	err = s.execOne(ctx,
		`UPDATE project_subscriptions SET email_verified=1, verification_token=NULL, verified_at=? WHERE id=? AND verification_token=? AND is_active=1`,
		at, sub.ID, token,
	)
	if err != nil {
		return models.Subscription{}, err
	}
	sub.EmailVerified = true
	sub.VerificationToken = nil
	sub.VerifiedAt = &at
	return sub, nil
}

// DeactivateSubscription redeems an unsubscribe token. Already inactive rows
// report ErrNotFound.
func (s *Store) DeactivateSubscription(ctx context.Context, token string, at time.Time) error {
	return s.execOne(ctx,
		`UPDATE project_subscriptions SET is_active=0, unsubscribed_at=? WHERE subscription_token=? AND is_active=1`,
		dbTime(at), token,
	)
}

// ListDeliverableSubscriptions returns active, verified subscriptions in id
// order.
func (s *Store) ListDeliverableSubscriptions(ctx context.Context, projectID int64) ([]models.Subscription, error) {
	rows, err := s.query(ctx,
		`SELECT `+subscriptionColumns+` FROM project_subscriptions WHERE project_id=? AND is_active=1 AND email_verified=1 ORDER BY id`,
		projectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *Store) CountDeliverableSubscriptions(ctx context.Context, projectID int64) (int, error) {
	var n int
	err := s.queryRow(ctx,
		`SELECT COUNT(1) FROM project_subscriptions WHERE project_id=? AND is_active=1 AND email_verified=1`, projectID,
	).Scan(&n)
	return n, err
}

func (s *Store) TouchLastNotified(ctx context.Context, id int64, at time.Time) error {
	return s.execOne(ctx, `UPDATE project_subscriptions SET last_notification_sent=? WHERE id=?`, dbTime(at), id)
}

func (s *Store) InsertNotificationLog(ctx context.Context, e models.NotificationLogEntry) error {
	_, err := s.insert(ctx,
		`INSERT INTO subscription_notifications(subscription_id,project_id,notification_type,subject,content,batch_id,sent_at) VALUES(?,?,?,?,?,?,?)`,
		e.SubscriptionID, e.ProjectID, e.NotificationType, e.Subject, e.Content, e.BatchID, dbTime(e.SentAt),
	)
	return err
}

func (s *Store) CountNotifications(ctx context.Context, projectID int64) (int, error) {
	var n int
	err := s.queryRow(ctx, `SELECT COUNT(1) FROM subscription_notifications WHERE project_id=?`, projectID).Scan(&n)
	return n, err
}
