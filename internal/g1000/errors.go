package g1000

import "fmt"

// FormatError is returned when a log does not carry the expected header signature.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unsupported flight log format: %s", e.Reason)
}

// SchemaError is returned when the unit and field header lines disagree.
type SchemaError struct {
	Units  int
	Fields int
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("flight log schema mismatch: %d units for %d fields", e.Units, e.Fields)
}
