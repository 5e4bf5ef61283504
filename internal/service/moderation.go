package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"countyportal/internal/models"
	"countyportal/internal/store"
)

const (
	ActionApprove   = "approve"
	ActionReject    = "reject"
	ActionGrievance = "grievance"
	ActionDelete    = "delete"
)

func (s *Service) ApproveComment(ctx context.Context, adminID, id int64) error {
	return s.setStatus(ctx, adminID, id, models.CommentApproved, "comment_approved")
}

func (s *Service) RejectComment(ctx context.Context, adminID, id int64) error {
	return s.setStatus(ctx, adminID, id, models.CommentRejected, "comment_rejected")
}

func (s *Service) MarkGrievance(ctx context.Context, adminID, id int64) error {
	return s.setStatus(ctx, adminID, id, models.CommentGrievance, "comment_grievance")
}

func (s *Service) setStatus(ctx context.Context, adminID, id int64, status models.CommentStatus, activity string) error {
	if err := s.st.UpdateCommentStatus(ctx, id, status, s.now()); err != nil {
		return err
	}
	s.logActivity(ctx, activity, fmt.Sprintf("Comment #%d marked %s", id, status), &adminID, "comment", &id, nil)
	return nil
}

func (s *Service) RespondToComment(ctx context.Context, adminID, id int64, response string) error {
	response = strings.TrimSpace(response)
	if response == "" {
		return invalid("response", "response text is required")
	}
	if err := s.st.RespondToComment(ctx, id, adminID, response, s.now()); err != nil {
		return err
	}
	s.logActivity(ctx, "comment_responded", fmt.Sprintf("Responded to comment #%d", id), &adminID, "comment", &id, nil)
	return nil
}

// DeleteComment removes the comment and its replies.
func (s *Service) DeleteComment(ctx context.Context, adminID, id int64) error {
	if err := s.st.DeleteComment(ctx, id); err != nil {
		return err
	}
	s.logActivity(ctx, "comment_deleted", fmt.Sprintf("Deleted comment #%d", id), &adminID, "comment", &id, nil)
	return nil
}

// BulkModerate applies one action to many comments. Ids that no longer
// exist are skipped; the count covers the comments actually changed.
func (s *Service) BulkModerate(ctx context.Context, adminID int64, action string, ids []int64) (int, error) {
	var apply func(context.Context, int64) error
	switch action {
	case ActionApprove:
		apply = func(ctx context.Context, id int64) error {
			return s.st.UpdateCommentStatus(ctx, id, models.CommentApproved, s.now())
		}
	case ActionReject:
		apply = func(ctx context.Context, id int64) error {
			return s.st.UpdateCommentStatus(ctx, id, models.CommentRejected, s.now())
		}
	case ActionGrievance:
		apply = func(ctx context.Context, id int64) error {
			return s.st.UpdateCommentStatus(ctx, id, models.CommentGrievance, s.now())
		}
	case ActionDelete:
		apply = s.st.DeleteComment
	default:
		return 0, invalid("action", "action must be one of approve, reject, grievance, delete")
	}
	if len(ids) == 0 {
		return 0, invalid("comment_ids", "no comments selected")
	}

	processed := 0
	for _, id := range ids {
		err := apply(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			s.logger.Error("bulk moderation stopped", zap.String("action", action), zap.Int64("comment_id", id), zap.Error(err))
			return processed, err
		}
		processed++
	}
	s.logActivity(ctx, "bulk_action",
		fmt.Sprintf("Bulk %s applied to %d comments", action, processed),
		&adminID, "comment", nil, map[string]any{"action": action, "comment_ids": ids, "processed": processed})
	return processed, nil
}

func (s *Service) ListActivity(ctx context.Context, q models.ActivityQuery) ([]models.ActivityEntry, int, error) {
	items, total, err := s.st.ListActivity(ctx, q)
	if items == nil {
		items = []models.ActivityEntry{}
	}
	return items, total, err
}
