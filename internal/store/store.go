package store

import (
	"context"

	"github.com/sells-group/loan-desk/internal/model"
)

// DocumentName is the row key used by the SQL backends.
const DocumentName = "default"

// Store defines the persistence interface for the loan document. Stores do
// not lock; callers serialize load-modify-save cycles themselves.
type Store interface {
	// Load returns the current document, persisting an empty one first if
	// nothing has been stored yet.
	Load(ctx context.Context) (*model.Document, error)
	// Save replaces the stored document. Readers never observe a partial write.
	Save(ctx context.Context, doc *model.Document) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// decode parses and checks a stored body.
func decode(body []byte) (*model.Document, error) {
	doc, err := model.DecodeDocument(body)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}
