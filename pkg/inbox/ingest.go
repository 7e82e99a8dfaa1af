package inbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/verbatim/pkg/core"
)

// MetaSource records the inbox-relative path a document was ingested from.
const MetaSource = "source"

// Ingester stores documents. core.Service satisfies it.
type Ingester interface {
	Ingest(ctx context.Context, name, text string, meta core.Metadata) (core.Document, error)
	IngestPDF(ctx context.Context, name string, data []byte, meta core.Metadata) (core.Document, error)
}

// Enqueuer schedules a check. processor.Processor satisfies it.
type Enqueuer interface {
	Enqueue(ctx context.Context, documentID string) (core.Check, error)
}

// IngestHandler returns a Handler that stores each settled file as a
// document and, when queue is not nil, schedules a check for it.
// PDF files go through text extraction; anything else is read as UTF-8 text.
func IngestHandler(svc Ingester, queue Enqueuer) Handler {
	return func(ctx context.Context, path, rel string) error {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}

		name := filepath.Base(path)
		meta := core.Metadata{MetaSource: rel}

		var doc core.Document
		if strings.EqualFold(filepath.Ext(path), ".pdf") {
			doc, err = svc.IngestPDF(ctx, name, data, meta)
		} else {
			doc, err = svc.Ingest(ctx, strings.TrimSuffix(name, filepath.Ext(name)), string(data), meta)
		}
		if err != nil {
			return fmt.Errorf("ingest: %w", err)
		}

		if queue == nil {
			return nil
		}
		if _, err := queue.Enqueue(ctx, doc.ID); err != nil {
			return fmt.Errorf("enqueue check: %w", err)
		}
		return nil
	}
}
