package model

import "fmt"

// DataIntegrityError reports an unresolved cross-reference or a malformed
// per-generation/per-year array in the input. Fatal: raised before any
// variable is declared, never after.
type DataIntegrityError struct {
	Entity string
	ID     int
	Detail string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity: %s %d: %s", e.Entity, e.ID, e.Detail)
}

// IndexDomainError reports a variable access keyed outside its declared
// feasible set. Always a construction-time bug; never silently defaulted.
type IndexDomainError struct {
	Variable string
	Key      string
}

func (e *IndexDomainError) Error() string {
	return fmt.Sprintf("index domain: %s has no key %s", e.Variable, e.Key)
}
