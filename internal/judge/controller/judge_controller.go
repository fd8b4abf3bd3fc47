package controller

import (
	"context"

	"codejudge/internal/judge/model"
	"codejudge/internal/judge/sandbox/result"
	"codejudge/pkg/utils/response"

	"github.com/gin-gonic/gin"
)

// JudgeService is the part of the judge service exposed over HTTP.
type JudgeService interface {
	Run(ctx context.Context, req model.RunRequest) (result.JudgeResult, error)
	Kill(ctx context.Context, submissionID string) error
	Progress(ctx context.Context, submissionID string) (model.RunProgress, error)
	Languages() []string
}

// JudgeController handles judge requests.
type JudgeController struct {
	svc JudgeService
}

// NewJudgeController creates a new controller.
func NewJudgeController(svc JudgeService) *JudgeController {
	return &JudgeController{svc: svc}
}

// RegisterRoutes mounts the judge endpoints.
func (h *JudgeController) RegisterRoutes(r gin.IRouter) {
	r.POST("/run", h.Run)
	api := r.Group("/api/v1/judge")
	api.POST("/run", h.Run)
	api.GET("/runs/:id", h.GetProgress)
	api.DELETE("/runs/:id", h.Kill)
	api.GET("/languages", h.Languages)
}

// Run judges a submission synchronously. Judged outcomes, compile errors
// included, are 200 responses; infra failures carry partial results in details.
func (h *JudgeController) Run(c *gin.Context) {
	var req model.RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body: "+err.Error())
		return
	}
	res, err := h.svc.Run(c.Request.Context(), req)
	if err != nil {
		if res.SubmissionID != "" {
			response.ErrorWithDetails(c, err, model.NewRunResponse(res))
			return
		}
		response.Error(c, err)
		return
	}
	response.Success(c, model.NewRunResponse(res))
}

// GetProgress returns live progress for one in-flight submission.
func (h *JudgeController) GetProgress(c *gin.Context) {
	submissionID := c.Param("id")
	if submissionID == "" {
		response.BadRequest(c, "Invalid submission id")
		return
	}
	progress, err := h.svc.Progress(c.Request.Context(), submissionID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, progress)
}

// Kill stops an in-flight submission.
func (h *JudgeController) Kill(c *gin.Context) {
	submissionID := c.Param("id")
	if err := h.svc.Kill(c.Request.Context(), submissionID); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"submissionId": submissionID})
}

// Languages lists supported language ids.
func (h *JudgeController) Languages(c *gin.Context) {
	response.Success(c, gin.H{"languages": h.svc.Languages()})
}
