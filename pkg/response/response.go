package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// CodeOK is the business code of every successful envelope
const CodeOK = 0

// requestIDKey mirrors middleware.CtxRequestID; pkg must not import internal
const requestIDKey = "request_id"

// Response is the envelope every endpoint answers with. RequestID lets a
// student quote a failing upload to the coordinator desk.
type Response struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Details   string `json:"details,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// Pagination page metadata
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// PageData paged payload
type PageData struct {
	List       any        `json:"list"`
	Pagination Pagination `json:"pagination"`
}

// NewPagination derives TotalPages, rounding up
func NewPagination(total int64, page, pageSize int) Pagination {
	p := Pagination{Page: page, PageSize: pageSize, Total: total}
	if pageSize > 0 {
		p.TotalPages = int((total + int64(pageSize) - 1) / int64(pageSize))
	}
	return p
}

func write(c *gin.Context, status int, body Response) {
	body.RequestID = c.GetString(requestIDKey)
	c.JSON(status, body)
}

// ── success ──

// OK 200
func OK(c *gin.Context, data any) {
	write(c, http.StatusOK, Response{Code: CodeOK, Message: "success", Data: data})
}

// Created 201
func Created(c *gin.Context, data any) {
	write(c, http.StatusCreated, Response{Code: CodeOK, Message: "success", Data: data})
}

// Accepted 202; intake analysis continues in the background
func Accepted(c *gin.Context, data any) {
	write(c, http.StatusAccepted, Response{Code: CodeOK, Message: "accepted", Data: data})
}

// OKPage 200 with pagination
func OKPage(c *gin.Context, list any, total int64, page, pageSize int) {
	OK(c, PageData{List: list, Pagination: NewPagination(total, page, pageSize)})
}

// ── errors ──

// Error writes a failure envelope
func Error(c *gin.Context, httpStatus, code int, message string) {
	write(c, httpStatus, Response{Code: code, Message: message})
}

// ErrorWithDetails carries validator output or a rejection reason
func ErrorWithDetails(c *gin.Context, httpStatus, code int, message, details string) {
	write(c, httpStatus, Response{Code: code, Message: message, Details: details})
}

func BadRequest(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadRequest, code, message)
}

func Unauthorized(c *gin.Context, code int, message string) {
	Error(c, http.StatusUnauthorized, code, message)
}

func Forbidden(c *gin.Context, code int, message string) {
	Error(c, http.StatusForbidden, code, message)
}

func NotFound(c *gin.Context, code int, message string) {
	Error(c, http.StatusNotFound, code, message)
}

func Conflict(c *gin.Context, code int, message string) {
	Error(c, http.StatusConflict, code, message)
}

// BadGateway: the model or mail provider failed
func BadGateway(c *gin.Context, code int, message string) {
	Error(c, http.StatusBadGateway, code, message)
}

// ServiceUnavailable: an optional backend (model, bucket) is not configured
func ServiceUnavailable(c *gin.Context, code int, message string) {
	Error(c, http.StatusServiceUnavailable, code, message)
}

// InternalError 500
func InternalError(c *gin.Context) {
	Error(c, http.StatusInternalServerError, 50000, "internal server error")
}
