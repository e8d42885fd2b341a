package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/quantumwager/wagerd/internal/domain"
)

// BlobWriter is the narrow upload surface the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Archiver moves old completed ledger entries out of the primary store into
// monthly JSONL archive files. An entry is only pruned after its archive
// upload succeeds, so a failed upload never loses data.
type Archiver struct {
	writer BlobWriter
	txs    domain.TransactionStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(writer BlobWriter, txs domain.TransactionStore, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer: writer,
		txs:    txs,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveTransactions uploads all completed ledger entries older than the
// cutoff to archive/transactions/YYYY-MM.jsonl and then prunes them from the
// store. It returns the number of archived entries.
func (a *Archiver) ArchiveTransactions(ctx context.Context, before time.Time) (int64, error) {
	txs, err := a.txs.ListCompletedBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive query: %w", err)
	}
	if len(txs) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(txs)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive marshal: %w", err)
	}

	path := archivePath("transactions", before)
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive upload: %w", err)
	}

	pruned, err := a.txs.DeleteBefore(ctx, before)
	if err != nil {
		// The archive landed but the prune failed; the next run re-archives
		// the same rows into the same key, which is harmless.
		return int64(len(txs)), fmt.Errorf("s3blob: archive prune: %w", err)
	}

	a.logger.InfoContext(ctx, "ledger archived",
		slog.String("path", path),
		slog.Int("archived", len(txs)),
		slog.Int64("pruned", pruned),
	)

	return int64(len(txs)), nil
}

// Run archives on a fixed interval until the context is cancelled. Entries
// older than retention are eligible.
func (a *Archiver) Run(ctx context.Context, interval, retention time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().Add(-retention)
			if _, err := a.ArchiveTransactions(ctx, cutoff); err != nil {
				a.logger.ErrorContext(ctx, "archive run failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// archivePath builds the S3 key for an archive file, partitioned by the
// year-month of the cutoff time.
func archivePath(kind string, before time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, before.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
