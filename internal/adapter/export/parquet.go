package export

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/parquet-go/parquet-go"

	"github.com/JvCastelo/masters-project/internal/domain"
)

// WriteFeatureParquet writes the merged feature table in Parquet form for
// columnar consumers. The completeness filter upstream means every column
// can be declared required: no optional wrapping, no nulls.
func WriteFeatureParquet(path string, table domain.FeatureTable) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}

	group := parquet.Group{"timestamp": parquet.Timestamp(parquet.Millisecond)}
	for _, col := range table.Columns {
		group[col] = parquet.Leaf(parquet.DoubleType)
	}
	schema := parquet.NewSchema("features", group)

	writer := parquet.NewGenericWriter[map[string]any](f, schema)

	rows := make([]map[string]any, len(table.Rows))
	for i, fr := range table.Rows {
		row := make(map[string]any, len(table.Columns)+1)
		row["timestamp"] = fr.Timestamp.UTC().UnixMilli()
		for j, col := range table.Columns {
			row[col] = fr.Values[j]
		}
		rows[i] = row
	}

	if len(rows) > 0 {
		_, err = writer.Write(rows)
	}
	if werr := writer.Close(); err == nil {
		err = werr
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
