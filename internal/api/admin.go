package api

import (
	"net/http"
	"strconv"
	"strings"

	"countyportal/internal/filter"
	"countyportal/internal/middleware"
	"countyportal/internal/models"
	"countyportal/internal/util"
	"countyportal/internal/wordlist"
)

func adminID(r *http.Request) int64 {
	id, _ := middleware.AdminID(r.Context())
	return id
}

func (h *Handlers) AdminListComments(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	q := models.CommentQuery{
		Status: strings.TrimSpace(r.URL.Query().Get("status")),
		Q:      strings.TrimSpace(r.URL.Query().Get("q")),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}
	if v := r.URL.Query().Get("project_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			util.WriteError(w, http.StatusBadRequest, "bad_request", "invalid project_id", middleware.RequestID(r.Context()))
			return
		}
		q.ProjectID = id
	}
	out, err := h.svc.ListComments(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, out)
}

func (h *Handlers) moderate(w http.ResponseWriter, r *http.Request, apply func(r *http.Request, admin, id int64) error, status models.CommentStatus) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := apply(r, adminID(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"id": id, "status": status})
}

func (h *Handlers) AdminApproveComment(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(r *http.Request, admin, id int64) error {
		return h.svc.ApproveComment(r.Context(), admin, id)
	}, models.CommentApproved)
}

func (h *Handlers) AdminRejectComment(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(r *http.Request, admin, id int64) error {
		return h.svc.RejectComment(r.Context(), admin, id)
	}, models.CommentRejected)
}

func (h *Handlers) AdminMarkGrievance(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, func(r *http.Request, admin, id int64) error {
		return h.svc.MarkGrievance(r.Context(), admin, id)
	}, models.CommentGrievance)
}

func (h *Handlers) AdminRespond(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Response string `json:"response"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.RespondToComment(r.Context(), adminID(r), id, req.Response); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"id": id, "status": models.CommentResponded})
}

func (h *Handlers) AdminDeleteComment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.idParam(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteComment(r.Context(), adminID(r), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"id": id, "status": "deleted"})
}

func (h *Handlers) AdminBulkModerate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Action     string  `json:"action"`
		CommentIDs []int64 `json:"comment_ids"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	n, err := h.svc.BulkModerate(r.Context(), adminID(r), strings.ToLower(strings.TrimSpace(req.Action)), req.CommentIDs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"action": req.Action, "processed": n})
}

func (h *Handlers) AdminWordLists(w http.ResponseWriter, r *http.Request) {
	util.WriteJSON(w, 200, h.svc.WordLists(r.Context()))
}

// wordListRequest accepts either JSON arrays or newline separated text as
// typed into the moderation screen. Arrays win when both are present.
type wordListRequest struct {
	Banned      []string `json:"banned_words"`
	Flagged     []string `json:"flagged_words"`
	BannedText  string   `json:"banned_words_text"`
	FlaggedText string   `json:"flagged_words_text"`
}

func (h *Handlers) AdminReplaceWordLists(w http.ResponseWriter, r *http.Request) {
	var req wordListRequest
	if !h.decode(w, r, &req) {
		return
	}
	banned, flagged := req.Banned, req.Flagged
	if banned == nil {
		banned = wordlist.ParseLines(req.BannedText)
	}
	if flagged == nil {
		flagged = wordlist.ParseLines(req.FlaggedText)
	}
	list, err := h.svc.ReplaceWordLists(r.Context(), adminID(r), banned, flagged)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, list)
}

func (h *Handlers) AdminFilterStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.FilterStats(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, stats)
}

func (h *Handlers) AdminPreviewFilter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	v := h.svc.PreviewFilter(r.Context(), req.Text)
	util.WriteJSON(w, 200, struct {
		filter.Verdict
		Details map[string]any `json:"details"`
	}{v, v.Details()})
}

func (h *Handlers) AdminSendProjectUpdate(w http.ResponseWriter, r *http.Request) {
	projectID, ok := h.idParam(w, r)
	if !ok {
		return
	}
	var req struct {
		UpdateType string `json:"update_type"`
		Details    string `json:"details"`
	}
	if !h.decode(w, r, &req) {
		return
	}
	admin := adminID(r)
	res, err := h.svc.SendProjectUpdate(r.Context(), &admin, projectID, req.UpdateType, req.Details)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"success": true, "result": res})
}

func (h *Handlers) AdminActivity(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	items, total, err := h.svc.ListActivity(r.Context(), models.ActivityQuery{
		Type:   strings.TrimSpace(r.URL.Query().Get("type")),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	util.WriteJSON(w, 200, map[string]any{"items": items, "total": total, "page": page, "page_size": pageSize})
}
