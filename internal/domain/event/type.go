package event

// Type identifies the type of domain event
type Type string

const (
	TypeScanRecorded Type = "scan.recorded"
	TypeScanRemoved  Type = "scan.removed"
)

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	switch t {
	case TypeScanRecorded, TypeScanRemoved:
		return true
	default:
		return false
	}
}
