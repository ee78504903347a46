package repositories

import (
	"testing"

	"github.com/freedesk/freedesk/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationRepository_GetByExternalID(t *testing.T) {
	db := setupTestDB(t)
	inboxRepo := NewInboxRepository(db)
	repo := NewConversationRepository(db)

	inbox := models.NewInbox("org1", "Support", "support@example.com")
	require.NoError(t, inboxRepo.Create(inbox))

	conversation := models.NewConversation("org1", inbox.ID, "")
	conversation.Subject = "Hello"
	conversation.ExternalID = models.ExternalID(models.ImportSourceHelpScout, 123)
	require.NoError(t, repo.Create(conversation))

	t.Run("Found", func(t *testing.T) {
		found, err := repo.GetByExternalID("org1", "helpscout_123")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, conversation.ID, found.ID)
		assert.Equal(t, "Hello", found.Subject)
	})

	t.Run("Not found", func(t *testing.T) {
		found, err := repo.GetByExternalID("org1", "helpscout_999")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("Scoped to organization", func(t *testing.T) {
		found, err := repo.GetByExternalID("org2", "helpscout_123")
		require.NoError(t, err)
		assert.Nil(t, found)
	})
}

func TestConversationRepository_ExternalIDUniquePerOrganization(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConversationRepository(db)

	first := models.NewConversation("org1", "inbox1", "")
	first.ExternalID = "helpscout_1"
	require.NoError(t, repo.Create(first))

	duplicate := models.NewConversation("org1", "inbox1", "")
	duplicate.ExternalID = "helpscout_1"
	assert.Error(t, repo.Create(duplicate))

	// Same external id in a different organization is fine
	other := models.NewConversation("org2", "inbox2", "")
	other.ExternalID = "helpscout_1"
	assert.NoError(t, repo.Create(other))
}
