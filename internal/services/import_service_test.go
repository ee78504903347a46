package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/freedesk/freedesk/internal/helpscout"
	"github.com/freedesk/freedesk/internal/models"
	"github.com/freedesk/freedesk/internal/repositories"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRemote is an in-memory Help Scout standing in behind httptest
type fakeRemote struct {
	mailboxes     []helpscout.Mailbox
	conversations map[int64][]helpscout.Conversation
	threads       map[int64][]helpscout.Thread
	tokenStatus   int
	listStatus    int
	threadStatus  map[int64]int
}

func (f *fakeRemote) start(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if f.tokenStatus != 0 {
			w.WriteHeader(f.tokenStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"access_token": "test-token",
			"token_type":   "bearer",
			"expires_in":   7200,
		})
	})

	mux.HandleFunc("/mailboxes", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, "mailboxes", f.mailboxes)
	})

	mux.HandleFunc("/conversations", func(w http.ResponseWriter, r *http.Request) {
		if f.listStatus != 0 {
			w.WriteHeader(f.listStatus)
			return
		}
		mailboxID, _ := strconv.ParseInt(r.URL.Query().Get("mailbox"), 10, 64)
		writeEnvelope(w, "conversations", f.conversations[mailboxID])
	})

	mux.HandleFunc("/conversations/", func(w http.ResponseWriter, r *http.Request) {
		idPart := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/conversations/"), "/threads")
		conversationID, _ := strconv.ParseInt(idPart, 10, 64)
		if status := f.threadStatus[conversationID]; status != 0 {
			w.WriteHeader(status)
			return
		}
		writeEnvelope(w, "threads", f.threads[conversationID])
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func writeEnvelope(w http.ResponseWriter, key string, items interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"_embedded": map[string]interface{}{key: items},
		"page":      map[string]interface{}{"number": 1, "totalPages": 1},
	})
}

type testEnv struct {
	db               *sql.DB
	service          *ImportService
	jobRepo          *repositories.ImportJobRepository
	inboxRepo        *repositories.InboxRepository
	customerRepo     *repositories.CustomerRepository
	conversationRepo *repositories.ConversationRepository
	messageRepo      *repositories.MessageRepository
}

func setupEnv(t *testing.T, remote *fakeRemote) *testEnv {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema, err := os.ReadFile("../../migrations/001_init.sql")
	require.NoError(t, err)
	_, err = db.Exec(string(schema))
	require.NoError(t, err)

	server := remote.start(t)
	newClient := func() *helpscout.Client {
		client := helpscout.NewClient(server.URL, server.URL+"/token", "app-id", "app-secret")
		client.Sleep = func(time.Duration) {}
		return client
	}

	env := &testEnv{
		db:               db,
		jobRepo:          repositories.NewImportJobRepository(db),
		inboxRepo:        repositories.NewInboxRepository(db),
		customerRepo:     repositories.NewCustomerRepository(db),
		conversationRepo: repositories.NewConversationRepository(db),
		messageRepo:      repositories.NewMessageRepository(db),
	}
	env.service = NewImportService(env.jobRepo, env.inboxRepo, env.customerRepo, env.conversationRepo, env.messageRepo, newClient)
	return env
}

// waitForJob polls the job record until it leaves the running state
func waitForJob(t *testing.T, env *testEnv, jobID string) *models.ImportJob {
	var job *models.ImportJob
	require.Eventually(t, func() bool {
		var err error
		job, err = env.jobRepo.GetByID(jobID)
		return err == nil && !job.IsRunning()
	}, 5*time.Second, 10*time.Millisecond)
	return job
}

func TestImportEndToEnd(t *testing.T) {
	remote := &fakeRemote{
		mailboxes: []helpscout.Mailbox{{ID: 10, Name: "Support", Email: "support@example.com"}},
		conversations: map[int64][]helpscout.Conversation{
			10: {
				{ID: 101, Subject: "Billing question", Status: "active", PrimaryCustomer: helpscout.RemoteCustomer{FirstName: "Alice", LastName: "Smith", Email: "alice@example.com"}},
				{ID: 102, Subject: "Bug report", Status: "closed", PrimaryCustomer: helpscout.RemoteCustomer{FirstName: "Bob", Email: "bob@example.com"}},
			},
		},
		threads: map[int64][]helpscout.Thread{
			101: {
				{ID: 1, Type: "customer", Body: "I was double charged"},
				{ID: 2, Type: "message", Body: "Refund issued"},
				{ID: 3, Type: "note", Body: "Check with finance"},
			},
			102: {
				{ID: 4, Type: "customer", Body: "The page crashes"},
			},
		},
	}
	env := setupEnv(t, remote)

	jobID, err := env.service.StartImport(ImportOptions{
		OrganizationID: "org1",
		Mapping:        models.MailboxMapping{"10": "create_new"},
	})
	require.NoError(t, err)

	job := waitForJob(t, env, jobID)
	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Empty(t, job.Errors)
	assert.Equal(t, 1, job.TotalMailboxes)
	assert.Equal(t, 2, job.TotalConversations)
	assert.Equal(t, 2, job.ConversationsImported)
	assert.Equal(t, 4, job.MessagesImported)
	assert.Equal(t, 2, job.CustomersImported)
	assert.NotNil(t, job.CompletedAt)

	inboxes, err := env.inboxRepo.CountByOrganizationID("org1")
	require.NoError(t, err)
	assert.Equal(t, 1, inboxes)

	conversations, err := env.conversationRepo.CountByOrganizationID("org1")
	require.NoError(t, err)
	assert.Equal(t, 2, conversations)

	// Remote statuses map onto the local three-state model
	billing, err := env.conversationRepo.GetByExternalID("org1", "helpscout_101")
	require.NoError(t, err)
	require.NotNil(t, billing)
	assert.Equal(t, models.ConversationStatusOpen, billing.Status)

	bug, err := env.conversationRepo.GetByExternalID("org1", "helpscout_102")
	require.NoError(t, err)
	require.NotNil(t, bug)
	assert.Equal(t, models.ConversationStatusClosed, bug.Status)

	messages, err := env.messageRepo.GetByConversationID(billing.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	for _, message := range messages {
		if message.Type == models.MessageTypeNote {
			assert.False(t, message.CustomerVisible)
		}
	}
}

func TestImportIdempotency(t *testing.T) {
	remote := &fakeRemote{
		mailboxes: []helpscout.Mailbox{{ID: 10, Name: "Support"}},
		conversations: map[int64][]helpscout.Conversation{
			10: {
				{ID: 101, Subject: "First", PrimaryCustomer: helpscout.RemoteCustomer{Email: "alice@example.com"}},
				{ID: 102, Subject: "Second", PrimaryCustomer: helpscout.RemoteCustomer{Email: "alice@example.com"}},
			},
		},
		threads: map[int64][]helpscout.Thread{
			101: {{ID: 1, Type: "customer", Body: "hi"}},
			102: {{ID: 2, Type: "customer", Body: "hi again"}},
		},
	}
	env := setupEnv(t, remote)

	// First run creates an inbox; the second run attaches to it so the
	// conversations resolve to the same idempotency scope
	inbox := models.NewInbox("org1", "Support", "")
	require.NoError(t, env.inboxRepo.Create(inbox))
	mapping := models.MailboxMapping{"10": inbox.ID}

	firstID, err := env.service.StartImport(ImportOptions{OrganizationID: "org1", Mapping: mapping})
	require.NoError(t, err)
	first := waitForJob(t, env, firstID)
	require.Equal(t, models.ImportStatusCompleted, first.Status)
	assert.Equal(t, 2, first.ConversationsImported)
	assert.Equal(t, 1, first.CustomersImported)

	secondID, err := env.service.StartImport(ImportOptions{OrganizationID: "org1", Mapping: mapping})
	require.NoError(t, err)
	second := waitForJob(t, env, secondID)
	require.Equal(t, models.ImportStatusCompleted, second.Status)

	// Re-running over unchanged remote data is a no-op
	assert.Equal(t, 0, second.ConversationsImported)
	assert.Equal(t, 0, second.MessagesImported)
	assert.Equal(t, 0, second.CustomersImported)
	assert.Empty(t, second.Errors)

	conversations, err := env.conversationRepo.CountByOrganizationID("org1")
	require.NoError(t, err)
	assert.Equal(t, 2, conversations)

	customers, err := env.customerRepo.CountByOrganizationID("org1")
	require.NoError(t, err)
	assert.Equal(t, 1, customers)
}

func TestImportPerRecordIsolation(t *testing.T) {
	conversations := make([]helpscout.Conversation, 0, 5)
	threads := map[int64][]helpscout.Thread{}
	for i := int64(1); i <= 5; i++ {
		conversations = append(conversations, helpscout.Conversation{ID: i, Subject: "Item"})
		threads[i] = []helpscout.Thread{{ID: i * 100, Type: "customer", Body: "body"}}
	}
	remote := &fakeRemote{
		mailboxes:     []helpscout.Mailbox{{ID: 10, Name: "Support"}},
		conversations: map[int64][]helpscout.Conversation{10: conversations},
		threads:       threads,
	}
	env := setupEnv(t, remote)

	// Simulate a storage failure on the third record only
	_, err := env.db.Exec(`
		CREATE TRIGGER poison_conversation BEFORE INSERT ON conversations
		WHEN NEW.external_id = 'helpscout_3'
		BEGIN SELECT RAISE(ABORT, 'disk I/O error'); END
	`)
	require.NoError(t, err)

	jobID, err := env.service.StartImport(ImportOptions{
		OrganizationID: "org1",
		Mapping:        models.MailboxMapping{"10": "create_new"},
	})
	require.NoError(t, err)

	job := waitForJob(t, env, jobID)

	// One bad record never aborts the run
	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Equal(t, 4, job.ConversationsImported)
	require.Len(t, job.Errors, 1)
	assert.Contains(t, job.Errors[0].Message, "conversation 3")

	for _, id := range []string{"helpscout_1", "helpscout_2", "helpscout_4", "helpscout_5"} {
		conversation, err := env.conversationRepo.GetByExternalID("org1", id)
		require.NoError(t, err)
		assert.NotNil(t, conversation, id)
	}
	missing, err := env.conversationRepo.GetByExternalID("org1", "helpscout_3")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestImportMessageFailureIsBestEffort(t *testing.T) {
	remote := &fakeRemote{
		mailboxes:     []helpscout.Mailbox{{ID: 10, Name: "Support"}},
		conversations: map[int64][]helpscout.Conversation{10: {{ID: 1, Subject: "Noisy thread"}}},
		threads: map[int64][]helpscout.Thread{
			1: {
				{ID: 1, Type: "customer", Body: "first"},
				{ID: 2, Type: "message", Body: "second"},
				{ID: 3, Type: "note", Body: "third"},
			},
		},
	}
	env := setupEnv(t, remote)

	// Simulate a storage failure on the second message only
	_, err := env.db.Exec(`
		CREATE TRIGGER poison_message BEFORE INSERT ON messages
		WHEN NEW.external_id = 'helpscout_2'
		BEGIN SELECT RAISE(ABORT, 'disk I/O error'); END
	`)
	require.NoError(t, err)

	jobID, err := env.service.StartImport(ImportOptions{
		OrganizationID: "org1",
		Mapping:        models.MailboxMapping{"10": "create_new"},
	})
	require.NoError(t, err)

	job := waitForJob(t, env, jobID)

	// A dropped message is only logged; it costs neither the
	// conversation nor the run
	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Empty(t, job.Errors)
	assert.Equal(t, 1, job.ConversationsImported)
	assert.Equal(t, 2, job.MessagesImported)

	conversation, err := env.conversationRepo.GetByExternalID("org1", "helpscout_1")
	require.NoError(t, err)
	require.NotNil(t, conversation)

	messages, err := env.messageRepo.GetByConversationID(conversation.ID)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	for _, message := range messages {
		assert.NotEqual(t, "helpscout_2", message.ExternalID)
	}
}

func TestImportThreadFetchFailureKeepsConversation(t *testing.T) {
	remote := &fakeRemote{
		mailboxes: []helpscout.Mailbox{{ID: 10, Name: "Support"}},
		conversations: map[int64][]helpscout.Conversation{
			10: {
				{ID: 1, Subject: "Healthy"},
				{ID: 2, Subject: "Threads unavailable"},
			},
		},
		threads: map[int64][]helpscout.Thread{
			1: {{ID: 100, Type: "customer", Body: "hello"}},
		},
		threadStatus: map[int64]int{2: http.StatusInternalServerError},
	}
	env := setupEnv(t, remote)

	jobID, err := env.service.StartImport(ImportOptions{
		OrganizationID: "org1",
		Mapping:        models.MailboxMapping{"10": "create_new"},
	})
	require.NoError(t, err)

	job := waitForJob(t, env, jobID)

	// Failing to fetch threads is a per-conversation error, not a fatal
	// one, and the conversation row itself survives
	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Equal(t, 2, job.ConversationsImported)
	assert.Equal(t, 1, job.MessagesImported)
	require.Len(t, job.Errors, 1)
	assert.Contains(t, job.Errors[0].Message, "conversation 2")

	orphaned, err := env.conversationRepo.GetByExternalID("org1", "helpscout_2")
	require.NoError(t, err)
	require.NotNil(t, orphaned)

	messages, err := env.messageRepo.CountByConversationID(orphaned.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, messages)
}

func TestImportMappingFailClosed(t *testing.T) {
	remote := &fakeRemote{
		mailboxes: []helpscout.Mailbox{
			{ID: 10, Name: "Mapped"},
			{ID: 20, Name: "Unmapped"},
		},
		conversations: map[int64][]helpscout.Conversation{
			10: {{ID: 101, Subject: "Wanted"}},
			20: {{ID: 201, Subject: "Ignored"}},
		},
		threads: map[int64][]helpscout.Thread{},
	}
	env := setupEnv(t, remote)

	jobID, err := env.service.StartImport(ImportOptions{
		OrganizationID: "org1",
		Mapping:        models.MailboxMapping{"10": "create_new"},
	})
	require.NoError(t, err)

	job := waitForJob(t, env, jobID)
	require.Equal(t, models.ImportStatusCompleted, job.Status)

	// The unmapped mailbox contributes nothing, not even to the totals
	assert.Equal(t, 2, job.TotalMailboxes)
	assert.Equal(t, 1, job.TotalConversations)
	assert.Equal(t, 1, job.ConversationsImported)

	ignored, err := env.conversationRepo.GetByExternalID("org1", "helpscout_201")
	require.NoError(t, err)
	assert.Nil(t, ignored)
}

func TestImportExplicitSkip(t *testing.T) {
	remote := &fakeRemote{
		mailboxes:     []helpscout.Mailbox{{ID: 10, Name: "Skipped"}},
		conversations: map[int64][]helpscout.Conversation{10: {{ID: 101}}},
		threads:       map[int64][]helpscout.Thread{},
	}
	env := setupEnv(t, remote)

	jobID, err := env.service.StartImport(ImportOptions{
		OrganizationID: "org1",
		Mapping:        models.MailboxMapping{"10": "skip"},
	})
	require.NoError(t, err)

	job := waitForJob(t, env, jobID)
	assert.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Equal(t, 0, job.TotalConversations)

	inboxes, err := env.inboxRepo.CountByOrganizationID("org1")
	require.NoError(t, err)
	assert.Equal(t, 0, inboxes)
}

func TestImportMailboxIDRestriction(t *testing.T) {
	remote := &fakeRemote{
		mailboxes: []helpscout.Mailbox{
			{ID: 10, Name: "Wanted"},
			{ID: 20, Name: "Excluded"},
		},
		conversations: map[int64][]helpscout.Conversation{
			10: {{ID: 101}},
			20: {{ID: 201}},
		},
		threads: map[int64][]helpscout.Thread{},
	}
	env := setupEnv(t, remote)

	jobID, err := env.service.StartImport(ImportOptions{
		OrganizationID: "org1",
		MailboxIDs:     []int64{10},
		Mapping:        models.MailboxMapping{"10": "create_new", "20": "create_new"},
	})
	require.NoError(t, err)

	job := waitForJob(t, env, jobID)
	require.Equal(t, models.ImportStatusCompleted, job.Status)
	assert.Equal(t, 1, job.TotalMailboxes)
	assert.Equal(t, 1, job.ConversationsImported)
}

func TestImportAuthFailureIsFatal(t *testing.T) {
	remote := &fakeRemote{tokenStatus: http.StatusUnauthorized}
	env := setupEnv(t, remote)

	jobID, err := env.service.StartImport(ImportOptions{
		OrganizationID: "org1",
		Mapping:        models.MailboxMapping{"10": "create_new"},
	})
	require.NoError(t, err)

	job := waitForJob(t, env, jobID)
	assert.Equal(t, models.ImportStatusError, job.Status)
	require.Len(t, job.Errors, 1)

	// No side effects before authentication
	conversations, err := env.conversationRepo.CountByOrganizationID("org1")
	require.NoError(t, err)
	assert.Equal(t, 0, conversations)
}

func TestImportEnumerationFailureIsFatal(t *testing.T) {
	remote := &fakeRemote{
		mailboxes:  []helpscout.Mailbox{{ID: 10, Name: "Support"}},
		listStatus: http.StatusInternalServerError,
	}
	env := setupEnv(t, remote)

	jobID, err := env.service.StartImport(ImportOptions{
		OrganizationID: "org1",
		Mapping:        models.MailboxMapping{"10": "create_new"},
	})
	require.NoError(t, err)

	job := waitForJob(t, env, jobID)
	assert.Equal(t, models.ImportStatusError, job.Status)
	require.NotEmpty(t, job.Errors)
}

func TestImportUseExistingInbox(t *testing.T) {
	remote := &fakeRemote{
		mailboxes:     []helpscout.Mailbox{{ID: 10, Name: "Support"}},
		conversations: map[int64][]helpscout.Conversation{10: {{ID: 101, Subject: "Attach me"}}},
		threads:       map[int64][]helpscout.Thread{},
	}
	env := setupEnv(t, remote)

	inbox := models.NewInbox("org1", "Existing", "existing@example.com")
	require.NoError(t, env.inboxRepo.Create(inbox))

	jobID, err := env.service.StartImport(ImportOptions{
		OrganizationID: "org1",
		Mapping:        models.MailboxMapping{"10": inbox.ID},
	})
	require.NoError(t, err)

	job := waitForJob(t, env, jobID)
	require.Equal(t, models.ImportStatusCompleted, job.Status)

	conversations, err := env.conversationRepo.GetByInboxID(inbox.ID)
	require.NoError(t, err)
	require.Len(t, conversations, 1)
	assert.Equal(t, "Attach me", conversations[0].Subject)

	// No second inbox was created
	inboxes, err := env.inboxRepo.CountByOrganizationID("org1")
	require.NoError(t, err)
	assert.Equal(t, 1, inboxes)
}

func TestTestConnection(t *testing.T) {
	t.Run("Valid credentials", func(t *testing.T) {
		env := setupEnv(t, &fakeRemote{})
		assert.NoError(t, env.service.TestConnection(context.Background()))
	})

	t.Run("Invalid credentials", func(t *testing.T) {
		env := setupEnv(t, &fakeRemote{tokenStatus: http.StatusUnauthorized})
		err := env.service.TestConnection(context.Background())
		require.Error(t, err)
		var authErr *helpscout.AuthError
		assert.True(t, errors.As(err, &authErr))
	})
}

func TestPreviewMailboxes(t *testing.T) {
	remote := &fakeRemote{
		mailboxes: []helpscout.Mailbox{
			{ID: 10, Name: "Support", Email: "support@example.com"},
			{ID: 20, Name: "Sales", Email: "sales@example.com"},
		},
	}
	env := setupEnv(t, remote)

	mailboxes, err := env.service.PreviewMailboxes(context.Background())
	require.NoError(t, err)
	require.Len(t, mailboxes, 2)
	assert.Equal(t, "Support", mailboxes[0].Name)

	// Preview never touches local storage
	inboxes, err := env.inboxRepo.CountByOrganizationID("org1")
	require.NoError(t, err)
	assert.Equal(t, 0, inboxes)
}

func TestMapConversationStatus(t *testing.T) {
	assert.Equal(t, models.ConversationStatusOpen, mapConversationStatus("active"))
	assert.Equal(t, models.ConversationStatusOpen, mapConversationStatus("open"))
	assert.Equal(t, models.ConversationStatusClosed, mapConversationStatus("closed"))
	// Unrecognized remote states default to pending
	assert.Equal(t, models.ConversationStatusPending, mapConversationStatus("spam"))
	assert.Equal(t, models.ConversationStatusPending, mapConversationStatus(""))
}

func TestThreadMessageType(t *testing.T) {
	cases := map[string]struct {
		messageType models.MessageType
		importable  bool
	}{
		"customer": {models.MessageTypeCustomer, true},
		"message":  {models.MessageTypeAgent, true},
		"note":     {models.MessageTypeNote, true},
		"lineitem": {"", false},
		"chat":     {"", false},
	}

	for threadType, expected := range cases {
		messageType, ok := threadMessageType(threadType)
		assert.Equal(t, expected.importable, ok, threadType)
		assert.Equal(t, expected.messageType, messageType, threadType)
	}
}
