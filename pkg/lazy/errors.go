package lazy

import (
	"fmt"
	"strings"
)

// ColumnNotFoundError is returned when a plan references a column its input
// does not have.
type ColumnNotFoundError struct {
	Name      string
	Available []string
}

func (e *ColumnNotFoundError) Error() string {
	return fmt.Sprintf("column %q not found; available columns: %s", e.Name, strings.Join(e.Available, ", "))
}

// DuplicateColumnError is returned when a plan step would produce two columns
// with the same name.
type DuplicateColumnError struct {
	Name string
}

func (e *DuplicateColumnError) Error() string {
	return fmt.Sprintf("duplicate output column %q", e.Name)
}
