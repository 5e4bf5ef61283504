package models

import "time"

type CommentStatus string

const (
	CommentPending   CommentStatus = "pending"
	CommentApproved  CommentStatus = "approved"
	CommentRejected  CommentStatus = "rejected"
	CommentResponded CommentStatus = "responded"
	CommentGrievance CommentStatus = "grievance"
)

func (s CommentStatus) Valid() bool {
	switch s {
	case CommentPending, CommentApproved, CommentRejected, CommentResponded, CommentGrievance:
		return true
	}
	return false
}

type Comment struct {
	ID                int64         `json:"id"`
	ProjectID         int64         `json:"project_id"`
	ParentID          *int64        `json:"parent_comment_id,omitempty"`
	CitizenName       string        `json:"citizen_name"`
	CitizenEmail      *string       `json:"citizen_email,omitempty"`
	Message           string        `json:"message"`
	Status            CommentStatus `json:"status"`
	FilterReason      string        `json:"filter_reason,omitempty"`
	FilteringMetadata string        `json:"filtering_metadata,omitempty"`
	AdminResponse     *string       `json:"admin_response,omitempty"`
	RespondedBy       *int64        `json:"responded_by,omitempty"`
	RespondedAt       *time.Time    `json:"responded_at,omitempty"`
	UserIP            string        `json:"-"`
	UserAgent         string        `json:"-"`
	CreatedAt         time.Time     `json:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at"`

	// ProjectName is filled by admin listings only.
	ProjectName string `json:"project_name,omitempty"`
}

// CommentThread is a top-level comment with its first replies.
type CommentThread struct {
	Comment
	Replies    []Comment `json:"replies"`
	ReplyCount int       `json:"total_replies"`
}

type CommentQuery struct {
	Status    string
	ProjectID int64
	Q         string
	Limit     int
	Offset    int
}

type CommentPage struct {
	Items []Comment `json:"items"`
	Total int       `json:"total"`
	Page  int       `json:"page"`
	Pages int       `json:"pages"`
}

// Project is the read-only slice of a project record this module needs.
type Project struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"project_name"`
	Status             string    `json:"status"`
	ProgressPercentage float64   `json:"progress_percentage"`
	Visibility         string    `json:"visibility"`
	CreatedAt          time.Time `json:"created_at"`
}

func (p Project) Published() bool { return p.Visibility == "published" }

type Subscription struct {
	ID                   int64
	ProjectID            int64
	Email                string
	SubscriptionToken    string
	VerificationToken    *string
	EmailVerified        bool
	IsActive             bool
	IPAddress            string
	UserAgent            string
	SubscribedAt         time.Time
	VerifiedAt           *time.Time
	UnsubscribedAt       *time.Time
	LastNotificationSent *time.Time
}

type NotificationLogEntry struct {
	ID               int64
	SubscriptionID   int64
	ProjectID        int64
	NotificationType string
	Subject          string
	Content          string
	BatchID          string
	SentAt           time.Time
}

type ActivityEntry struct {
	ID             int64     `json:"id"`
	ActivityType   string    `json:"activity_type"`
	Description    string    `json:"activity_description"`
	AdminID        *int64    `json:"admin_id,omitempty"`
	TargetType     string    `json:"target_type,omitempty"`
	TargetID       *int64    `json:"target_id,omitempty"`
	AdditionalData string    `json:"additional_data,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

type ActivityQuery struct {
	Type   string
	Limit  int
	Offset int
}

// FilterStats summarises filter outcomes over a trailing window.
type FilterStats struct {
	AutoApproved       int            `json:"auto_approved"`
	FlaggedForReview   int            `json:"flagged_for_review"`
	AutoRejected       int            `json:"auto_rejected"`
	ByReason           map[string]int `json:"by_reason"`
	BannedWordsCount   int            `json:"banned_words_count"`
	FlaggedWordsCount  int            `json:"flagged_words_count"`
	SupportedLanguages []string       `json:"supported_languages"`
	WindowDays         int            `json:"window_days"`
}
