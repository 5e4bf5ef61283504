package filter

import "countyportal/internal/models"

type Status string

const (
	StatusApproved      Status = "approved"
	StatusPendingReview Status = "pending_review"
	StatusRejected      Status = "rejected"
)

type Reason string

const (
	ReasonClean    Reason = "clean_content"
	ReasonBanned   Reason = "banned_words"
	ReasonFlagged  Reason = "flagged_words"
	ReasonLanguage Reason = "language_review"
	ReasonLength   Reason = "invalid_length"
	// ReasonManual is used when evaluation itself broke.
	ReasonManual Reason = "manual_review"
)

const (
	msgBanned   = "Your comment contains inappropriate language and cannot be posted. Please revise your comment and try again."
	msgFlagged  = "Your comment has been submitted for review due to potentially sensitive content. It will be published after approval by our moderation team."
	msgLanguage = "Your comment has been submitted for review to verify it meets our language requirements (English or Kiswahili only)."
	msgApproved = "Your comment has been posted successfully!"
	msgFailSafe = "Submitted for review due to filtering error"
)

// Verdict is the outcome for one comment. It is built once and not changed.
type Verdict struct {
	Status           Status   `json:"status"`
	Message          string   `json:"message"`
	Reason           Reason   `json:"reason"`
	MatchedTerms     []string `json:"matched_terms,omitempty"`
	DetectedLanguage string   `json:"detected_language,omitempty"`
	LanguageSource   string   `json:"-"`
	WordCount        int      `json:"word_count"`
}

// Accepted reports whether the comment is stored for display or review.
func (v Verdict) Accepted() bool { return v.Status != StatusRejected }

// CommentStatus maps the verdict onto the stored comment state.
func (v Verdict) CommentStatus() models.CommentStatus {
	switch v.Status {
	case StatusApproved:
		return models.CommentApproved
	case StatusRejected:
		return models.CommentRejected
	default:
		return models.CommentPending
	}
}

// Details is the metadata blob stored with the comment.
func (v Verdict) Details() map[string]any {
	d := map[string]any{"reason": string(v.Reason)}
	switch v.Reason {
	case ReasonBanned:
		d["banned_words_found"] = v.MatchedTerms
	case ReasonFlagged:
		d["flagged_words_found"] = v.MatchedTerms
	case ReasonLength:
		d["word_count"] = v.WordCount
	}
	if v.DetectedLanguage != "" {
		d["detected_language"] = v.DetectedLanguage
	}
	return d
}

func failSafe() Verdict {
	return Verdict{Status: StatusPendingReview, Message: msgFailSafe, Reason: ReasonManual}
}
