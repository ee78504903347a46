package handlers

import (
	"database/sql"
	"fmt"
	"net/http"

	"github.com/freedesk/freedesk/internal/models"
	"github.com/freedesk/freedesk/internal/repositories"
	"github.com/freedesk/freedesk/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type ImportHandler struct {
	importService *services.ImportService
	reportService *services.ReportService
	jobRepo       *repositories.ImportJobRepository
}

func NewImportHandler(
	importService *services.ImportService,
	reportService *services.ReportService,
	jobRepo *repositories.ImportJobRepository,
) *ImportHandler {
	return &ImportHandler{
		importService: importService,
		reportService: reportService,
		jobRepo:       jobRepo,
	}
}

// ImportRequest is the trigger payload. The mode is selected by shape:
// test and preview are synchronous, everything else starts a full run.
type ImportRequest struct {
	OrganizationID string                `json:"organizationId"`
	MailboxIDs     []int64               `json:"mailboxIds"`
	DateFrom       string                `json:"dateFrom"`
	Preview        bool                  `json:"preview"`
	Test           bool                  `json:"test"`
	MailboxMapping models.MailboxMapping `json:"mailboxMapping"`
}

// StartImport handles POST /api/imports/helpscout
func (h *ImportHandler) StartImport(c *gin.Context) {
	var req ImportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if req.Test {
		if err := h.importService.TestConnection(c.Request.Context()); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
		return
	}

	if req.Preview {
		mailboxes, err := h.importService.PreviewMailboxes(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"mailboxes": mailboxes})
		return
	}

	if req.OrganizationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organizationId is required"})
		return
	}

	jobID, err := h.importService.StartImport(services.ImportOptions{
		OrganizationID: req.OrganizationID,
		MailboxIDs:     req.MailboxIDs,
		DateFrom:       req.DateFrom,
		Mapping:        req.MailboxMapping,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "started",
		"jobId":  jobID,
	})
}

// GetJob handles GET /api/imports/jobs/:id
func (h *ImportHandler) GetJob(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	job, err := h.jobRepo.GetByID(jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Import job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, job)
}

// ListJobs handles GET /api/imports/jobs?organization_id=
func (h *ImportHandler) ListJobs(c *gin.Context) {
	organizationID := c.Query("organization_id")
	if organizationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "organization_id is required"})
		return
	}

	jobs, err := h.jobRepo.GetByOrganizationID(organizationID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"jobs": jobs})
}

// GetJobReport handles GET /api/imports/jobs/:id/report
func (h *ImportHandler) GetJobReport(c *gin.Context) {
	jobID := c.Param("id")
	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid job ID"})
		return
	}

	job, err := h.jobRepo.GetByID(jobID)
	if err != nil {
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "Import job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if job.IsRunning() {
		c.JSON(http.StatusConflict, gin.H{"error": "Import job is still running"})
		return
	}

	report, err := h.reportService.BuildJobReport(jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=import-%s.xlsx", jobID))
	if err := report.Write(c.Writer); err != nil {
		c.Status(http.StatusInternalServerError)
	}
}
