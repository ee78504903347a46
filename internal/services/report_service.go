package services

import (
	"fmt"
	"time"

	"github.com/freedesk/freedesk/internal/models"
	"github.com/freedesk/freedesk/internal/repositories"
	"github.com/xuri/excelize/v2"
)

// ReportService builds spreadsheet reports for finished import jobs
type ReportService struct {
	jobRepo *repositories.ImportJobRepository
}

// NewReportService creates a new ReportService
func NewReportService(jobRepo *repositories.ImportJobRepository) *ReportService {
	return &ReportService{jobRepo: jobRepo}
}

// BuildJobReport renders a finished job as an xlsx workbook with a
// Summary sheet and an Errors sheet. Running jobs are not reportable.
func (s *ReportService) BuildJobReport(jobID string) (*excelize.File, error) {
	job, err := s.jobRepo.GetByID(jobID)
	if err != nil {
		return nil, err
	}
	if job.IsRunning() {
		return nil, fmt.Errorf("import job %s is still running", jobID)
	}

	f := excelize.NewFile()

	sheet := "Summary"
	f.SetSheetName("Sheet1", sheet)

	summary := [][]interface{}{
		{"Job ID", job.ID},
		{"Organization", job.OrganizationID},
		{"Source", string(job.Source)},
		{"Status", string(job.Status)},
		{"Mailboxes", job.TotalMailboxes},
		{"Conversations found", job.TotalConversations},
		{"Conversations imported", job.ConversationsImported},
		{"Messages imported", job.MessagesImported},
		{"Customers imported", job.CustomersImported},
		{"Started at", job.StartedAt.Format("2006-01-02 15:04:05")},
	}
	if job.CompletedAt != nil {
		summary = append(summary, []interface{}{"Completed at", job.CompletedAt.Format("2006-01-02 15:04:05")})
		summary = append(summary, []interface{}{"Duration", job.CompletedAt.Sub(job.StartedAt).Round(time.Second).String()})
	}
	for key, value := range job.Metadata {
		summary = append(summary, []interface{}{"Metadata: " + key, fmt.Sprintf("%v", value)})
	}

	for i, row := range summary {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return nil, err
		}
	}

	if err := s.writeErrorsSheet(f, job); err != nil {
		return nil, err
	}

	return f, nil
}

func (s *ReportService) writeErrorsSheet(f *excelize.File, job *models.ImportJob) error {
	sheet := "Errors"
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}

	header := []interface{}{"Timestamp", "Message"}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return err
	}

	for i, importError := range job.Errors {
		row := []interface{}{
			importError.Timestamp.Format("2006-01-02 15:04:05"),
			importError.Message,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	return nil
}
