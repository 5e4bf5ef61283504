package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"countyportal/internal/filter"
	"countyportal/internal/models"
	"countyportal/internal/store"
)

const (
	maxNameLength    = 100
	maxEmailLength   = 254
	threadReplyLimit = 3
)

type CommentSubmission struct {
	ProjectID int64
	ParentID  *int64
	Name      string
	Email     string
	Message   string
	IP        string
	UserAgent string
}

type SubmitResult struct {
	CommentID int64
	Status    models.CommentStatus
	Verdict   filter.Verdict
}

// Accepted is false when the filter rejected the comment. The row is still
// stored for moderators.
func (r SubmitResult) Accepted() bool { return r.Verdict.Accepted() }

func (s *Service) SubmitComment(ctx context.Context, in CommentSubmission) (SubmitResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Message = strings.TrimSpace(in.Message)

	if s.cfg.DuplicateWindow > 0 && in.ProjectID > 0 && in.Message != "" {
		n, err := s.st.CountRecentDuplicates(ctx, in.ProjectID, in.Name, in.Message, s.now().Add(-s.cfg.DuplicateWindow))
		if err != nil {
			s.logger.Error("duplicate check failed", zap.Int64("project_id", in.ProjectID), zap.Error(err))
			return SubmitResult{}, fmt.Errorf("duplicate check: %w", err)
		}
		if n > 0 {
			return SubmitResult{}, ErrDuplicateComment
		}
	}

	if err := validateSubmission(in); err != nil {
		return SubmitResult{}, err
	}
	if _, err := s.project(ctx, in.ProjectID); err != nil {
		return SubmitResult{}, err
	}

	var parentID *int64
	if in.ParentID != nil {
		root, err := s.threadRoot(ctx, in.ProjectID, *in.ParentID)
		if err != nil {
			return SubmitResult{}, err
		}
		parentID = &root
	}

	engine := filter.New(s.words.Load(ctx), s.detector, filter.WithLogger(s.logger))
	verdict := engine.FilterComment(ctx, in.Message)
	s.metrics.ObserveVerdict(string(verdict.Status), string(verdict.Reason))
	if verdict.DetectedLanguage != "" {
		s.metrics.ObserveLanguage(verdict.LanguageSource, verdict.DetectedLanguage)
	}

	meta, err := json.Marshal(verdict.Details())
	if err != nil {
		return SubmitResult{}, fmt.Errorf("encode filter metadata: %w", err)
	}
	now := s.now()
	c := models.Comment{
		ProjectID:         in.ProjectID,
		ParentID:          parentID,
		CitizenName:       in.Name,
		Message:           in.Message,
		Status:            verdict.CommentStatus(),
		FilterReason:      string(verdict.Reason),
		FilteringMetadata: string(meta),
		UserIP:            in.IP,
		UserAgent:         in.UserAgent,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.Email != "" {
		c.CitizenEmail = &in.Email
	}
	id, err := s.st.CreateComment(ctx, c)
	if err != nil {
		s.logger.Error("comment insert failed", zap.Int64("project_id", in.ProjectID), zap.Error(err))
		return SubmitResult{}, fmt.Errorf("store comment: %w", err)
	}

	s.logActivity(ctx, "comment_filtered",
		fmt.Sprintf("Comment #%d filtered: %s", id, verdict.Reason),
		nil, "comment", &id, map[string]any{
			"status":     verdict.Status,
			"reason":     verdict.Reason,
			"project_id": in.ProjectID,
		})
	s.logger.Info("comment submitted",
		zap.Int64("comment_id", id),
		zap.Int64("project_id", in.ProjectID),
		zap.String("verdict", string(verdict.Status)),
		zap.String("reason", string(verdict.Reason)),
	)
	return SubmitResult{CommentID: id, Status: c.Status, Verdict: verdict}, nil
}

func validateSubmission(in CommentSubmission) error {
	if in.ProjectID <= 0 {
		return invalid("project_id", "a valid project is required")
	}
	if n := utf8.RuneCountInString(in.Name); n < 2 {
		return invalid("citizen_name", "name must be at least 2 characters")
	} else if n > maxNameLength {
		return invalid("citizen_name", fmt.Sprintf("name must be at most %d characters", maxNameLength))
	}
	if in.Message == "" {
		return invalid("message", "message is required")
	}
	if in.Email != "" {
		if len(in.Email) > maxEmailLength {
			return invalid("citizen_email", "email address is too long")
		}
		if addr, err := mail.ParseAddress(in.Email); err != nil || addr.Address != in.Email {
			return invalid("citizen_email", "email address is not valid")
		}
	}
	return nil
}

// threadRoot resolves a reply target to the top-level comment of its
// thread. Threads are two levels deep.
func (s *Service) threadRoot(ctx context.Context, projectID, parentID int64) (int64, error) {
	parent, err := s.st.GetComment(ctx, parentID)
	if errors.Is(err, store.ErrNotFound) {
		return 0, invalid("parent_comment_id", "the comment you are replying to does not exist")
	}
	if err != nil {
		return 0, err
	}
	if parent.ProjectID != projectID {
		return 0, invalid("parent_comment_id", "the comment you are replying to belongs to another project")
	}
	if parent.ParentID != nil {
		return *parent.ParentID, nil
	}
	return parent.ID, nil
}

func (s *Service) ListComments(ctx context.Context, q models.CommentQuery) (models.CommentPage, error) {
	if q.Limit <= 0 {
		q.Limit = 20
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	if q.Status != "" && !models.CommentStatus(q.Status).Valid() {
		return models.CommentPage{}, invalid("status", "unknown comment status")
	}
	items, total, err := s.st.ListComments(ctx, q)
	if err != nil {
		return models.CommentPage{}, err
	}
	if items == nil {
		items = []models.Comment{}
	}
	return models.CommentPage{
		Items: items,
		Total: total,
		Page:  q.Offset/q.Limit + 1,
		Pages: (total + q.Limit - 1) / q.Limit,
	}, nil
}

// ProjectThreads returns the public discussion for a project. Pending
// comments are only included for the IP that posted them.
func (s *Service) ProjectThreads(ctx context.Context, projectID int64, viewerIP string) ([]models.CommentThread, error) {
	if _, err := s.project(ctx, projectID); err != nil {
		return nil, err
	}
	top, err := s.st.ListVisibleTopLevel(ctx, projectID, viewerIP)
	if err != nil {
		return nil, err
	}
	threads := make([]models.CommentThread, 0, len(top))
	for _, c := range top {
		replies, err := s.st.ListVisibleReplies(ctx, c.ID, viewerIP, threadReplyLimit)
		if err != nil {
			return nil, err
		}
		total, err := s.st.CountVisibleReplies(ctx, c.ID, viewerIP)
		if err != nil {
			return nil, err
		}
		if replies == nil {
			replies = []models.Comment{}
		}
		threads = append(threads, models.CommentThread{Comment: c, Replies: replies, ReplyCount: total})
	}
	return threads, nil
}
