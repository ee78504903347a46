package services

import (
	"context"
	"fmt"

	"github.com/freedesk/freedesk/internal/helpscout"
	"github.com/freedesk/freedesk/internal/models"
	"github.com/freedesk/freedesk/internal/repositories"
	"github.com/freedesk/freedesk/pkg/logger"
	"github.com/sirupsen/logrus"
)

// checkpointEvery is how many imported conversations go by between
// periodic job counter writes
const checkpointEvery = 5

// ImportOptions are the operator-supplied parameters of one run
type ImportOptions struct {
	OrganizationID string
	MailboxIDs     []int64
	DateFrom       string
	Mapping        models.MailboxMapping
}

// ImportService runs Help Scout batch imports. A full run executes as a
// detached background task; the trigger only waits for the job record.
type ImportService struct {
	jobRepo          *repositories.ImportJobRepository
	inboxRepo        *repositories.InboxRepository
	customerRepo     *repositories.CustomerRepository
	conversationRepo *repositories.ConversationRepository
	messageRepo      *repositories.MessageRepository
	newClient        func() *helpscout.Client
}

// NewImportService creates a new ImportService. newClient builds the API
// client per run so credentials and endpoints stay swappable in tests.
func NewImportService(
	jobRepo *repositories.ImportJobRepository,
	inboxRepo *repositories.InboxRepository,
	customerRepo *repositories.CustomerRepository,
	conversationRepo *repositories.ConversationRepository,
	messageRepo *repositories.MessageRepository,
	newClient func() *helpscout.Client,
) *ImportService {
	return &ImportService{
		jobRepo:          jobRepo,
		inboxRepo:        inboxRepo,
		customerRepo:     customerRepo,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
		newClient:        newClient,
	}
}

// TestConnection verifies the configured credentials by fetching a token
func (s *ImportService) TestConnection(ctx context.Context) error {
	return s.newClient().FetchToken(ctx)
}

// PreviewMailboxes lists the remote mailboxes without importing anything
func (s *ImportService) PreviewMailboxes(ctx context.Context) ([]helpscout.Mailbox, error) {
	client := s.newClient()
	if err := client.FetchToken(ctx); err != nil {
		return nil, err
	}
	return client.ListMailboxes(ctx)
}

// StartImport creates the job record and launches the import in the
// background. It returns the job id as soon as the record exists; the
// caller never waits for the run itself.
func (s *ImportService) StartImport(opts ImportOptions) (string, error) {
	job := models.NewImportJob(opts.OrganizationID, models.ImportSourceHelpScout, map[string]interface{}{
		"date_from":    opts.DateFrom,
		"mapping_size": len(opts.Mapping),
	})

	if err := s.jobRepo.Create(job); err != nil {
		return "", fmt.Errorf("failed to create import job: %w", err)
	}

	go s.runImport(job, opts)

	return job.ID, nil
}

// runImport is the outermost boundary of the background task. There is
// no caller left to report to, so every outcome lands on the job record.
func (s *ImportService) runImport(job *models.ImportJob, opts ImportOptions) {
	log := logger.WithFields(logrus.Fields{
		"job_id":          job.ID,
		"organization_id": job.OrganizationID,
	})
	log.Info("Import started")

	// The run has no cancellation channel; it ends by exhaustion or error
	ctx := context.Background()

	if err := s.run(ctx, job, opts); err != nil {
		job.AddError(err.Error())
		job.MarkError()
		log.WithError(err).Error("Import failed")
	} else {
		job.MarkCompleted()
		log.WithFields(logrus.Fields{
			"conversations": job.ConversationsImported,
			"messages":      job.MessagesImported,
			"customers":     job.CustomersImported,
		}).Info("Import completed")
	}

	if err := s.jobRepo.Update(job); err != nil {
		log.WithError(err).Error("Failed to finalize import job")
	}
}

func (s *ImportService) run(ctx context.Context, job *models.ImportJob, opts ImportOptions) error {
	client := s.newClient()

	if err := client.FetchToken(ctx); err != nil {
		return err
	}

	mailboxes, err := client.ListMailboxes(ctx)
	if err != nil {
		return err
	}
	mailboxes = filterMailboxes(mailboxes, opts.MailboxIDs)

	job.TotalMailboxes = len(mailboxes)
	s.checkpoint(job)

	for _, mailbox := range mailboxes {
		inboxID, skip, err := s.resolveInbox(job, opts.Mapping, mailbox)
		if err != nil {
			job.AddError(fmt.Sprintf("mailbox %d: %v", mailbox.ID, err))
			continue
		}
		if skip {
			continue
		}

		err = client.ConversationPages(ctx, mailbox.ID, opts.DateFrom, func(batch []helpscout.Conversation) error {
			job.TotalConversations += len(batch)
			s.checkpoint(job)

			for _, remote := range batch {
				before := job.ConversationsImported
				if err := s.importConversation(ctx, client, job, remote, inboxID); err != nil {
					job.AddError(fmt.Sprintf("conversation %d: %v", remote.ID, err))
				}
				if job.ConversationsImported != before && job.ConversationsImported%checkpointEvery == 0 {
					s.checkpoint(job)
				}
			}
			return nil
		})
		if err != nil {
			// Failure enumerating a mailbox's pages is fatal for the run
			return err
		}
	}

	return nil
}

// resolveInbox maps a remote mailbox to its local routing target.
// Mailboxes without a mapping entry are skipped.
func (s *ImportService) resolveInbox(job *models.ImportJob, mapping models.MailboxMapping, mailbox helpscout.Mailbox) (string, bool, error) {
	action, targetID := mapping.Resolve(mailbox.ID)

	switch action {
	case models.MappingActionSkip:
		return "", true, nil

	case models.MappingActionCreateNew:
		inbox := models.NewInbox(job.OrganizationID, mailbox.Name, mailbox.Email)
		if err := s.inboxRepo.Create(inbox); err != nil {
			return "", false, fmt.Errorf("failed to create inbox: %w", err)
		}
		return inbox.ID, false, nil

	default:
		inbox, err := s.inboxRepo.GetByID(targetID)
		if err != nil {
			return "", false, err
		}
		if inbox == nil {
			return "", false, fmt.Errorf("inbox %s not found", targetID)
		}
		return inbox.ID, false, nil
	}
}

// importConversation materializes one remote conversation. A returned
// error is recorded against the job and never aborts the run. Nothing
// done here is rolled back on a later failure.
func (s *ImportService) importConversation(ctx context.Context, client *helpscout.Client, job *models.ImportJob, remote helpscout.Conversation, inboxID string) error {
	externalID := models.ExternalID(job.Source, remote.ID)

	existing, err := s.conversationRepo.GetByExternalID(job.OrganizationID, externalID)
	if err != nil {
		return err
	}
	if existing != nil {
		// Already imported by a previous run
		return nil
	}

	customerID, err := s.resolveCustomer(job, remote.PrimaryCustomer)
	if err != nil {
		return err
	}

	conversation := models.NewConversation(job.OrganizationID, inboxID, customerID)
	conversation.Subject = remote.Subject
	conversation.Status = mapConversationStatus(remote.Status)
	conversation.ExternalID = externalID
	if !remote.CreatedAt.IsZero() {
		conversation.CreatedAt = remote.CreatedAt
	}

	if err := s.conversationRepo.Create(conversation); err != nil {
		return fmt.Errorf("failed to insert conversation: %w", err)
	}
	job.ConversationsImported++

	threads, err := client.ListThreads(ctx, remote.ID)
	if err != nil {
		return err
	}

	for _, thread := range threads {
		messageType, ok := threadMessageType(thread.Type)
		if !ok {
			continue
		}

		message := models.NewMessage(conversation.ID, messageType)
		message.ExternalID = models.ExternalID(job.Source, thread.ID)
		message.Body = thread.Body
		if !thread.CreatedAt.IsZero() {
			message.CreatedAt = thread.CreatedAt
		}

		if err := s.messageRepo.Create(message); err != nil {
			// Messages are best effort; keep going
			logger.WithError(err).Warnf("Failed to import message %d of conversation %d", thread.ID, remote.ID)
			continue
		}
		job.MessagesImported++
	}

	return nil
}

// resolveCustomer finds or creates the local customer for a remote
// contact, deduplicating on email or phone within the organization
func (s *ImportService) resolveCustomer(job *models.ImportJob, remote helpscout.RemoteCustomer) (string, error) {
	if remote.Email == "" && remote.Phone == "" {
		return "", nil
	}

	existing, err := s.customerRepo.FindByEmailOrPhone(job.OrganizationID, remote.Email, remote.Phone)
	if err != nil {
		return "", err
	}
	if existing != nil {
		return existing.ID, nil
	}

	customer := models.NewCustomer(job.OrganizationID, remote.Name(), remote.Email, remote.Phone)
	if err := s.customerRepo.Create(customer); err != nil {
		return "", err
	}
	job.CustomersImported++

	return customer.ID, nil
}

// checkpoint opportunistically persists the running counters. A failed
// write only costs staleness, never the run.
func (s *ImportService) checkpoint(job *models.ImportJob) {
	if err := s.jobRepo.Update(job); err != nil {
		logger.WithError(err).WithField("job_id", job.ID).Warn("Failed to checkpoint import job")
	}
}

func filterMailboxes(mailboxes []helpscout.Mailbox, ids []int64) []helpscout.Mailbox {
	if len(ids) == 0 {
		return mailboxes
	}

	wanted := make(map[int64]bool, len(ids))
	for _, id := range ids {
		wanted[id] = true
	}

	var filtered []helpscout.Mailbox
	for _, mailbox := range mailboxes {
		if wanted[mailbox.ID] {
			filtered = append(filtered, mailbox)
		}
	}
	return filtered
}

// mapConversationStatus maps the remote status vocabulary onto the local
// three-state model. Unrecognized remote states default to pending.
func mapConversationStatus(remote string) models.ConversationStatus {
	switch remote {
	case "active", "open":
		return models.ConversationStatusOpen
	case "closed":
		return models.ConversationStatusClosed
	default:
		return models.ConversationStatusPending
	}
}

// threadMessageType maps a remote thread type to a local message type.
// System entries (lineitems, chat transcripts) are not importable.
func threadMessageType(threadType string) (models.MessageType, bool) {
	switch threadType {
	case "customer":
		return models.MessageTypeCustomer, true
	case "message":
		return models.MessageTypeAgent, true
	case "note":
		return models.MessageTypeNote, true
	default:
		return "", false
	}
}
