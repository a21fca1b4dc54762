package core

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Collections
const (
	CollectionFaculty     = "faculty"
	CollectionStudents    = "students"
	CollectionSections    = "sections"
	CollectionExperiments = "experiments"
	CollectionQuestions   = "vivaQuestions"
	CollectionStatuses    = "studentExperimentStatus"
	CollectionSession     = "session"
)

type (
	// Store is a key-value store of named collections. Values are opaque encoded collections.
	Store interface {
		// Get returns (nil, nil) for a collection that was never written.
		Get(ctx context.Context, collection string) ([]byte, error)
		Set(ctx context.Context, collection string, data []byte) error
		Delete(ctx context.Context, collection string) error
	}

	// BatchStore is a Store that can write several collections atomically.
	BatchStore interface {
		Store
		SetMany(ctx context.Context, data map[string][]byte) error
	}
)

// NewID returns a fresh identifier of the form "<prefix>-<uuid>".
func NewID(prefix string) string {
	return prefix + "-" + uuid.New().String()
}

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}
