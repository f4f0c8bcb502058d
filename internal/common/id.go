package common

import (
	"github.com/google/uuid"
)

// NewTestID generates a unique test run ID with the "test_" prefix
// Format: test_<uuid>
func NewTestID() string {
	return "test_" + uuid.New().String()
}
