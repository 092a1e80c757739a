package records

import "fmt"

// SchemaError reports a raw record that is missing a required field or
// carries a value that cannot be parsed. The whole load is rejected.
type SchemaError struct {
	Index  int
	ID     string
	Field  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("record %d: field %s: %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("record %d (%s): field %s: %s", e.Index, e.ID, e.Field, e.Reason)
}

// DuplicateIDError reports two raw records sharing an id.
type DuplicateIDError struct {
	ID     string
	First  int
	Second int
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate record id %q at positions %d and %d", e.ID, e.First, e.Second)
}
