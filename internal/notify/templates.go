package notify

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/flosch/pongo2/v6"
)

type UpdateType string

const (
	UpdateProject      UpdateType = "project_update"
	UpdateStatusChange UpdateType = "status_change"
	UpdateCompletion   UpdateType = "completion"
	UpdateMilestone    UpdateType = "milestone"
)

// NormalizeUpdateType maps unknown values to UpdateProject.
func NormalizeUpdateType(s string) UpdateType {
	switch t := UpdateType(strings.ToLower(strings.TrimSpace(s))); t {
	case UpdateProject, UpdateStatusChange, UpdateCompletion, UpdateMilestone:
		return t
	}
	return UpdateProject
}

func (t UpdateType) icon() string {
	switch t {
	case UpdateStatusChange:
		return "🔄"
	case UpdateCompletion:
		return "✅"
	case UpdateMilestone:
		return "🎯"
	}
	return "📋"
}

// Heading is the type rendered for humans, e.g. "Status change".
func (t UpdateType) Heading() string {
	return upperFirst(strings.ReplaceAll(string(t), "_", " "))
}

func Subject(t UpdateType, projectName string) string {
	switch t {
	case UpdateStatusChange:
		return "Status Change: " + projectName
	case UpdateCompletion:
		return "Project Completed: " + projectName
	case UpdateMilestone:
		return "Milestone Reached: " + projectName
	}
	return "Project Update: " + projectName
}

func VerificationSubject(projectName string) string {
	return "Verify Your Project Subscription - " + projectName
}

type UpdateData struct {
	ProjectName    string
	ProjectStatus  string
	Progress       float64
	UpdateType     UpdateType
	Details        string
	ProjectURL     string
	UnsubscribeURL string
}

type VerificationData struct {
	ProjectName    string
	VerifyURL      string
	UnsubscribeURL string
}

var updateTpl = pongo2.Must(pongo2.FromString(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{ subject }}</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: #2c5aa0; color: #fff; padding: 20px; border-radius: 8px 8px 0 0;">
    <h1 style="margin: 0; font-size: 22px;">{{ icon }} {{ heading }}</h1>
  </div>
  <div style="background: #f8f9fa; padding: 20px; border: 1px solid #dee2e6;">
    <h2 style="margin-top: 0; color: #2c5aa0;">{{ project_name }}</h2>
    <p><strong>Status:</strong> {{ project_status }}</p>
    <p><strong>Progress:</strong> {{ progress }}%</p>
    <div style="background: #fff; padding: 15px; border-left: 4px solid #2c5aa0; margin: 15px 0;">{{ details|safe }}</div>
    <p><a href="{{ project_url }}" style="background: #2c5aa0; color: #fff; padding: 10px 20px; text-decoration: none; border-radius: 4px;">View Project Details</a></p>
  </div>
  <div style="font-size: 12px; color: #6c757d; padding: 15px; text-align: center;">
    <p>You are receiving this email because you subscribed to updates for this project.</p>
    <p><a href="{{ unsubscribe_url }}" style="color: #6c757d;">Unsubscribe from these notifications</a></p>
  </div>
</body>
</html>`))

var verificationTpl = pongo2.Must(pongo2.FromString(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>Verify your subscription</title></head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333; max-width: 600px; margin: 0 auto; padding: 20px;">
  <div style="background: #2c5aa0; color: #fff; padding: 20px; border-radius: 8px 8px 0 0;">
    <h1 style="margin: 0; font-size: 22px;">Confirm Your Subscription</h1>
  </div>
  <div style="background: #f8f9fa; padding: 20px; border: 1px solid #dee2e6;">
    <p>Thank you for subscribing to updates for <strong>{{ project_name }}</strong>.</p>
    <p>Please confirm your email address to start receiving project updates:</p>
    <p><a href="{{ verify_url }}" style="background: #28a745; color: #fff; padding: 10px 20px; text-decoration: none; border-radius: 4px;">Verify Email Address</a></p>
    <p style="font-size: 13px;">If the button does not work, copy this link into your browser:<br>{{ verify_url }}</p>
  </div>
  <div style="font-size: 12px; color: #6c757d; padding: 15px; text-align: center;">
    <p>If you did not request this subscription you can ignore this email.</p>
    <p><a href="{{ unsubscribe_url }}" style="color: #6c757d;">Unsubscribe</a></p>
  </div>
</body>
</html>`))

func RenderUpdate(d UpdateData) (string, error) {
	t := NormalizeUpdateType(string(d.UpdateType))
	out, err := updateTpl.Execute(pongo2.Context{
		"subject":         Subject(t, d.ProjectName),
		"icon":            t.icon(),
		"heading":         t.Heading(),
		"project_name":    d.ProjectName,
		"project_status":  upperFirst(d.ProjectStatus),
		"progress":        strconv.FormatFloat(d.Progress, 'f', -1, 64),
		"details":         detailsHTML(d.Details),
		"project_url":     d.ProjectURL,
		"unsubscribe_url": d.UnsubscribeURL,
	})
	if err != nil {
		return "", fmt.Errorf("render update email: %w", err)
	}
	return out, nil
}

func RenderVerification(d VerificationData) (string, error) {
	out, err := verificationTpl.Execute(pongo2.Context{
		"project_name":    d.ProjectName,
		"verify_url":      d.VerifyURL,
		"unsubscribe_url": d.UnsubscribeURL,
	})
	if err != nil {
		return "", fmt.Errorf("render verification email: %w", err)
	}
	return out, nil
}

func upperFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// detailsHTML escapes free text from an administrator and keeps its line
// breaks.
func detailsHTML(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(html.EscapeString(s), "\n", "<br>\n")
}
