package models

import "strconv"

// MappingAction decides what happens to a remote mailbox during an import
type MappingAction string

const (
	MappingActionSkip        MappingAction = "skip"
	MappingActionCreateNew   MappingAction = "create_new"
	MappingActionUseExisting MappingAction = "use_existing"
)

// MailboxMapping maps remote mailbox ids to "skip", "create_new", or a
// local inbox id. Supplied by the operator; not persisted by the pipeline.
type MailboxMapping map[string]string

// Resolve returns the action for a remote mailbox and, for
// MappingActionUseExisting, the local inbox id to attach to.
// A mailbox absent from the mapping is skipped.
func (m MailboxMapping) Resolve(remoteID int64) (MappingAction, string) {
	value, ok := m[strconv.FormatInt(remoteID, 10)]
	if !ok {
		return MappingActionSkip, ""
	}

	switch value {
	case string(MappingActionSkip), "":
		return MappingActionSkip, ""
	case string(MappingActionCreateNew):
		return MappingActionCreateNew, ""
	default:
		return MappingActionUseExisting, value
	}
}
