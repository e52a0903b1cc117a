package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"praxihub/backend/internal/api/middleware"
	"praxihub/backend/internal/dto"
	"praxihub/backend/internal/service"
	"praxihub/backend/pkg/pdf"
	"praxihub/backend/pkg/response"
)

// ── assistant ──

// AssistantHandler chat endpoint
type AssistantHandler struct {
	assistantSvc service.AssistantService
}

// NewAssistantHandler creates an AssistantHandler
func NewAssistantHandler(assistantSvc service.AssistantService) *AssistantHandler {
	return &AssistantHandler{assistantSvc: assistantSvc}
}

// Chat answers one message; anonymous callers are treated as visitors
// POST /api/v1/assistant/chat
func (h *AssistantHandler) Chat(c *gin.Context) {
	var req dto.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 14001, "message must not be empty")
		return
	}

	reply, err := h.assistantSvc.Chat(c.Request.Context(), c.GetString(middleware.CtxRole), req.Message)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEmptyMessage):
			response.BadRequest(c, 14001, "message must not be empty")
		case errors.Is(err, service.ErrModelUnavailable):
			response.ServiceUnavailable(c, 14002, "assistant is not available")
		default:
			response.BadGateway(c, 14003, "assistant failed to answer")
		}
		return
	}

	response.OK(c, dto.ChatResponse{Response: reply})
}

// ── matchmaking ──

// MatchmakingHandler company recommendations for students
type MatchmakingHandler struct {
	matchSvc service.MatchmakingService
}

// NewMatchmakingHandler creates a MatchmakingHandler
func NewMatchmakingHandler(matchSvc service.MatchmakingService) *MatchmakingHandler {
	return &MatchmakingHandler{matchSvc: matchSvc}
}

// Match ranks companies against the caller's skills
// POST /api/v1/matchmaking
func (h *MatchmakingHandler) Match(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}

	result, err := h.matchSvc.Match(c.Request.Context(), caller)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrWrongRole):
			response.Forbidden(c, 14101, "matchmaking is available to students only")
		case errors.Is(err, service.ErrUserNotFound):
			response.NotFound(c, 12001, "user not found")
		case errors.Is(err, service.ErrModelUnavailable):
			response.ServiceUnavailable(c, 14002, "matchmaking is not available")
		case errors.Is(err, service.ErrMatchmakingFailed):
			response.BadGateway(c, 14102, "matchmaking failed")
		default:
			response.InternalError(c)
		}
		return
	}

	response.OK(c, result)
}

// ── contract generation ──

// ContractHandler contract PDF generation
type ContractHandler struct {
	contractSvc service.ContractService
}

// NewContractHandler creates a ContractHandler
func NewContractHandler(contractSvc service.ContractService) *ContractHandler {
	return &ContractHandler{contractSvc: contractSvc}
}

// Generate renders and stores a contract PDF
// POST /api/v1/contracts/generate
func (h *ContractHandler) Generate(c *gin.Context) {
	caller, ok := MustGetCaller(c)
	if !ok {
		return
	}
	var req dto.GenerateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, 10001, "invalid parameters")
		return
	}

	result, err := h.contractSvc.Generate(c.Request.Context(), caller, &req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrContractFieldsMissing):
			response.ErrorWithDetails(c, http.StatusBadRequest, 15001, "missing required contract fields", err.Error())
		case errors.Is(err, service.ErrStorageUnavailable):
			response.ServiceUnavailable(c, 13011, "file storage is not configured")
		case errors.Is(err, pdf.ErrFontUnavailable):
			response.BadGateway(c, 15002, "contract font could not be loaded")
		case errors.Is(err, service.ErrWrongRole):
			response.Forbidden(c, 15003, "only students can open an internship from a contract")
		default:
			response.InternalError(c)
		}
		return
	}

	response.Created(c, result)
}
