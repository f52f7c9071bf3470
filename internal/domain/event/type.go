package event

// Type identifies the type of domain event
type Type string

const (
	TypeRecordCreated       Type = "record.created"
	TypeRecordUpdated       Type = "record.updated"
	TypeRecordCleared       Type = "record.cleared"
	TypeRecordPersisted     Type = "record.persisted"
	TypeStatusChanged       Type = "record.status_changed"
	TypeValidationCompleted Type = "validation.completed"
	TypeFindingBypassed     Type = "validation.bypassed"
	TypeDocumentUploaded    Type = "document.uploaded"
	TypeDocumentGenerated   Type = "document.generated"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeRecordCreated,
		TypeRecordUpdated,
		TypeRecordCleared,
		TypeRecordPersisted,
		TypeStatusChanged,
		TypeValidationCompleted,
		TypeFindingBypassed,
		TypeDocumentUploaded,
		TypeDocumentGenerated:
		return true
	default:
		return false
	}
}
