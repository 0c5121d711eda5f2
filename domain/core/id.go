package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	RunID       ID
	ModelHandle ID
)

func (id RunID) String() string       { return ID(id).String() }
func (id ModelHandle) String() string { return ID(id).String() }

// NewRunID creates a time-ordered training run identifier
func NewRunID() RunID { return RunID(NewID()) }

// NewModelHandle creates a time-ordered model store handle
func NewModelHandle() ModelHandle { return ModelHandle(NewID()) }

// ParseRunID parses a string into RunID
func ParseRunID(s string) (RunID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("run ID cannot be empty")
	}
	return RunID(s), nil
}

// ParseModelHandle parses a string into ModelHandle. Handles are used as
// file names by the model store, so anything that is not a UUID is rejected
// and the result is always in canonical lower-case form.
func ParseModelHandle(s string) (ModelHandle, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", NewValidationError("handle", "model handle cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil || len(s) != 36 {
		return "", NewValidationError("handle", fmt.Sprintf("invalid model handle %q", s))
	}
	return ModelHandle(u.String()), nil
}
