package ports

import (
	"context"

	"govariant/domain/variant"
)

// RecordReader loads raw variant rows from a tabular source. Rows are
// returned unparsed so malformed cells only reject their own record.
type RecordReader interface {
	ReadRecords(ctx context.Context) ([]variant.RawRecord, error)
}
