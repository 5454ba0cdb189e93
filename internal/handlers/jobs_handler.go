package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tribehealth/aigateway/internal/jobstore"
	"github.com/tribehealth/aigateway/internal/utils"
)

// JobsHandler serves the supplemental read-only job endpoints. Not
// required by the OpenAI contract, but mirrors the job store's own
// Get/ListByUser surface so a caller can poll a job's status directly.
type JobsHandler struct {
	store *jobstore.Store
}

// NewJobsHandler builds a JobsHandler.
func NewJobsHandler(store *jobstore.Store) *JobsHandler {
	return &JobsHandler{store: store}
}

// GetJob handles GET /v1/images/jobs/:id.
func (h *JobsHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		utils.SendValidationError(c, err)
		return
	}

	job, err := h.store.Get(c.Request.Context(), id)
	if errors.Is(err, jobstore.ErrNotFound) {
		utils.SendError(c, 404, "job not found", nil)
		return
	}
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}

	utils.SendSuccess(c, "job fetched", job)
}

// ListJobs handles GET /v1/images/jobs?user=....
func (h *JobsHandler) ListJobs(c *gin.Context) {
	userID := c.Query("user")
	if userID == "" {
		utils.SendValidationError(c, errors.New("user query parameter is required"))
		return
	}

	page, limit := utils.GetPagination(c)
	offset := utils.GetOffset(page, limit)

	jobs, err := h.store.ListByUser(c.Request.Context(), userID, limit, offset)
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}

	utils.SendSuccess(c, "jobs fetched", jobs)
}
