package handler

import (
	"errors"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"

	"praxihub/backend/internal/dto"
	"praxihub/backend/internal/model"
	"praxihub/backend/internal/service"
	pkgerrors "praxihub/backend/pkg/errors"
	"praxihub/backend/pkg/response"
)

const (
	streamBuffer    = 32
	streamHeartbeat = 25 * time.Second
)

// InternshipHandler internship lifecycle endpoints
type InternshipHandler struct {
	internshipSvc service.InternshipService
	maxFileSize   int64
}

// NewInternshipHandler creates an InternshipHandler
func NewInternshipHandler(internshipSvc service.InternshipService, maxFileSize int64) *InternshipHandler {
	return &InternshipHandler{internshipSvc: internshipSvc, maxFileSize: maxFileSize}
}

// ═══════════════════════════════════════════════════════════
// Student writes
// ═══════════════════════════════════════════════════════════

// Create registers a contract that is already stored
// POST /api/v1/internships
func (h *InternshipHandler) Create(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.CreateInternshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid parameters")
		return
	}

	rec, err := h.internshipSvc.Create(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, rec)
}

// Upload stores a contract file and starts its analysis
// POST /api/v1/internships/upload
func (h *InternshipHandler) Upload(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	file, ok := h.readFile(c)
	if !ok {
		return
	}

	rec, err := h.internshipSvc.Upload(c.Request.Context(), caller, file)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, rec)
}

// RequestOrg asks the coordinator to approve an organization
// POST /api/v1/internships/org-request
func (h *InternshipHandler) RequestOrg(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.OrgRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid parameters")
		return
	}

	rec, err := h.internshipSvc.RequestOrg(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Created(c, rec)
}

// AttachContract uploads the contract for an existing record
// POST /api/v1/internships/:id/contract
func (h *InternshipHandler) AttachContract(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	file, ok := h.readFile(c)
	if !ok {
		return
	}

	rec, err := h.internshipSvc.AttachContract(c.Request.Context(), caller, c.Param("id"), file)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Accepted(c, rec)
}

// Reanalyze runs the contract analysis again
// POST /api/v1/internships/:id/analyze
func (h *InternshipHandler) Reanalyze(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	rec, err := h.internshipSvc.Reanalyze(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.Accepted(c, rec)
}

// Confirm student confirms or corrects the extracted fields
// PUT /api/v1/internships/:id/confirm
func (h *InternshipHandler) Confirm(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.ConfirmInternshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid parameters")
		return
	}

	rec, err := h.internshipSvc.Confirm(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, rec)
}

// Rate student rates the company or the company rates the student
// POST /api/v1/internships/:id/rating
func (h *InternshipHandler) Rate(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.RatingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid parameters")
		return
	}

	rec, err := h.internshipSvc.Rate(c.Request.Context(), caller, c.Param("id"), &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, rec)
}

// ═══════════════════════════════════════════════════════════
// Coordinator decisions
// ═══════════════════════════════════════════════════════════

// Approve
// POST /api/v1/internships/:id/approve
func (h *InternshipHandler) Approve(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	rec, err := h.internshipSvc.Approve(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, rec)
}

// Reject
// POST /api/v1/internships/:id/reject
func (h *InternshipHandler) Reject(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.RejectInternshipRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 13005, "a rejection reason is required")
		return
	}

	rec, err := h.internshipSvc.Reject(c.Request.Context(), caller, c.Param("id"), req.Reason)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, rec)
}

// ═══════════════════════════════════════════════════════════
// Reads
// ═══════════════════════════════════════════════════════════

// Latest the caller's most recent record
// GET /api/v1/internships/latest
func (h *InternshipHandler) Latest(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	rec, err := h.internshipSvc.Latest(c.Request.Context(), caller)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, rec)
}

// Get
// GET /api/v1/internships/:id
func (h *InternshipHandler) Get(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	rec, err := h.internshipSvc.Get(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OK(c, rec)
}

// List records visible to the caller
// GET /api/v1/internships?status=&page=&page_size=
func (h *InternshipHandler) List(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.InternshipListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, 10001, "invalid parameters")
		return
	}

	list, total, err := h.internshipSvc.List(c.Request.Context(), caller, &req)
	if err != nil {
		h.handleError(c, err)
		return
	}
	response.OKPage(c, list, total, req.GetPage(), req.GetPageSize())
}

// Calendar .ics with the internship period
// GET /api/v1/internships/:id/calendar
func (h *InternshipHandler) Calendar(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	body, filename, err := h.internshipSvc.Calendar(c.Request.Context(), caller, c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename*=UTF-8''"+url.QueryEscape(filename))
	c.Data(http.StatusOK, "text/calendar; charset=utf-8", body)
}

// Stream server-sent change events visible to the caller
// GET /api/v1/internships/stream
func (h *InternshipHandler) Stream(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	changes, stop, err := h.internshipSvc.Stream(ctx, caller, streamBuffer)
	if err != nil {
		h.handleError(c, err)
		return
	}
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	heartbeat := time.NewTicker(streamHeartbeat)
	defer heartbeat.Stop()

	c.SSEvent("ready", gin.H{"user_id": caller.UserID})
	c.Writer.Flush()

	c.Stream(func(_ io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-changes:
			if !ok {
				return false
			}
			c.SSEvent("internship", ev)
			return true
		case t := <-heartbeat.C:
			c.SSEvent("ping", t.Unix())
			return true
		}
	})
}

// ═══════════════════════════════════════════════════════════
// Helpers
// ═══════════════════════════════════════════════════════════

// readFile reads the multipart "file" field within the size limit
func (h *InternshipHandler) readFile(c *gin.Context) (service.UploadFile, bool) {
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, 10001, "multipart field \"file\" is required")
		return service.UploadFile{}, false
	}
	if h.maxFileSize > 0 && fh.Size > h.maxFileSize {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "file too large")
		return service.UploadFile{}, false
	}

	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, 10001, "cannot read uploaded file")
		return service.UploadFile{}, false
	}
	defer f.Close()

	limit := h.maxFileSize
	if limit <= 0 {
		limit = fh.Size
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		response.BadRequest(c, 10001, "cannot read uploaded file")
		return service.UploadFile{}, false
	}
	if int64(len(data)) > limit {
		response.Error(c, http.StatusRequestEntityTooLarge, 10005, "file too large")
		return service.UploadFile{}, false
	}

	source := c.PostForm("source")
	if source != "" && source != model.SourceWeb && source != model.SourceMobile {
		response.BadRequest(c, 10001, "source must be web or mobile_app")
		return service.UploadFile{}, false
	}

	return service.UploadFile{
		Name:        fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Data:        data,
		Source:      source,
	}, true
}

func (h *InternshipHandler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInternshipNotFound):
		response.NotFound(c, 13001, "internship not found")
	case errors.Is(err, service.ErrUserNotFound):
		response.NotFound(c, 12001, "user not found")
	case errors.Is(err, service.ErrNoPermission):
		response.Forbidden(c, 10003, "access denied")
	case errors.Is(err, service.ErrWrongRole):
		response.Forbidden(c, 13002, "operation not available for this role")
	case errors.Is(err, service.ErrStatusConflict), errors.Is(err, pkgerrors.ErrOptimisticLock):
		response.Conflict(c, 13003, "internship was changed concurrently, reload and retry")
	case errors.Is(err, model.ErrInvalidTransition):
		response.Conflict(c, 13004, err.Error())
	case errors.Is(err, model.ErrRejectReasonRequired):
		response.BadRequest(c, 13005, "a rejection reason is required")
	case errors.Is(err, service.ErrInvalidCreateState):
		response.BadRequest(c, 13006, err.Error())
	case errors.Is(err, service.ErrForeignContractURL):
		response.BadRequest(c, 13012, err.Error())
	case errors.Is(err, service.ErrNotRatable):
		response.Conflict(c, 13007, err.Error())
	case errors.Is(err, service.ErrContractMissing):
		response.BadRequest(c, 13008, err.Error())
	case errors.Is(err, service.ErrEmptyFile):
		response.BadRequest(c, 13009, err.Error())
	case errors.Is(err, service.ErrCalendarDates):
		response.BadRequest(c, 13010, err.Error())
	case errors.Is(err, service.ErrStorageUnavailable):
		response.ServiceUnavailable(c, 13011, "file storage is not configured")
	default:
		response.InternalError(c)
	}
}
