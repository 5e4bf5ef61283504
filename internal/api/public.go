package api

import (
	"net/http"

	"countyportal/internal/middleware"
	"countyportal/internal/service"
	"countyportal/internal/util"
)

type commentRequest struct {
	CitizenName     string `json:"citizen_name"`
	CitizenEmail    string `json:"citizen_email"`
	Message         string `json:"message"`
	ParentCommentID *int64 `json:"parent_comment_id"`
}

func (h *Handlers) SubmitComment(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.ParentCommentID != nil && *req.ParentCommentID <= 0 {
		req.ParentCommentID = nil
	}
	res, err := h.svc.SubmitComment(r.Context(), service.CommentSubmission{
		ProjectID: projectID,
		ParentID:  req.ParentCommentID,
		Name:      req.CitizenName,
		Email:     req.CitizenEmail,
		Message:   req.Message,
		IP:        middleware.ClientIP(r, h.cfg.TrustProxy),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !res.Accepted() {
		util.WriteJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"success":    false,
			"code":       "comment_rejected",
			"message":    res.Verdict.Message,
			"reason":     res.Verdict.Reason,
			"request_id": middleware.RequestID(r.Context()),
		})
		return
	}
	util.WriteJSON(w, http.StatusCreated, map[string]any{
		"success":    true,
		"comment_id": res.CommentID,
		"status":     res.Status,
		"message":    res.Verdict.Message,
		"filter": map[string]any{
			"status": res.Verdict.Status,
			"reason": res.Verdict.Reason,
		},
	})
}

func (h *Handlers) ProjectComments(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.idParam(w, r)
	if !ok {
		return
	}
	threads, err := h.svc.ProjectThreads(r.Context(), projectID, middleware.ClientIP(r, h.cfg.TrustProxy))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"project_id": projectID, "comments": threads})
}

func (h *Handlers) Subscribe(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Email string `json:"email"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	res, err := h.svc.Subscribe(r.Context(), service.SubscribeRequest{
		ProjectID: projectID,
		Email:     req.Email,
		IP:        middleware.ClientIP(r, h.cfg.TrustProxy),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	status := http.StatusCreated
	msg := "Subscription successful! Please check your email to verify your subscription."
	if res.Outcome == service.SubscriptionReactivated {
		status = http.StatusOK
		msg = "Your subscription has been reactivated."
		if res.RequiresVerification {
			msg += " Please check your email to verify your subscription."
		}
	}
	util.WriteJSON(w, status, map[string]any{
		"success":               true,
		"status":                res.Outcome,
		"message":               msg,
		"requires_verification": res.RequiresVerification,
	})
}

func (h *Handlers) SubscriberCount(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.idParam(w, r)
	if !ok {
		return
	}
	n, err := h.svc.SubscriberCount(r.Context(), projectID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"project_id": projectID, "subscriber_count": n})
}

func (h *Handlers) VerifySubscription(w http.ResponseWriter, r *http.Request) {
	sub, err := h.svc.VerifyEmail(r.Context(), r.FormValue("token"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{
		"success":    true,
		"status":     "verified",
		"project_id": sub.ProjectID,
		"message":    "Your email has been verified. You will now receive project updates.",
	})
}

func (h *Handlers) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Unsubscribe(r.Context(), r.FormValue("token")); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{
		"success": true,
		"status":  "unsubscribed",
		"message": "You have been unsubscribed from project updates.",
	})
}
