package datastore

import (
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/rs/zerolog"

	"github.com/aleister1102/waymirror/internal/config"
	"github.com/aleister1102/waymirror/internal/errorwrapper"
	"github.com/aleister1102/waymirror/internal/wayback"
)

// InventoryFileName is the Parquet file name inside a snapshot directory.
const InventoryFileName = "inventory.parquet"

// ParquetInventoryRecord is the on-disk shape of one capture-index row.
type ParquetInventoryRecord struct {
	Timestamp string `parquet:"timestamp"`
	Original  string `parquet:"original"`
	MimeType  string `parquet:"mime_type"`
	Length    int64  `parquet:"length"`
	URLKey    string `parquet:"url_key"`
	FetchedAt int64  `parquet:"fetched_at"`
}

// InventoryStore persists capture-index inventories as Parquet, one file
// per host and snapshot, so later audits can diff against the index state
// an archive was built from.
type InventoryStore struct {
	config config.StorageConfig
	logger zerolog.Logger
}

// InventoryStoreBuilder provides a fluent interface for creating InventoryStore
type InventoryStoreBuilder struct {
	config config.StorageConfig
	logger zerolog.Logger
}

// NewInventoryStoreBuilder creates a new InventoryStoreBuilder
func NewInventoryStoreBuilder(logger zerolog.Logger) *InventoryStoreBuilder {
	return &InventoryStoreBuilder{
		config: config.NewDefaultStorageConfig(),
		logger: logger.With().Str("component", "InventoryStore").Logger(),
	}
}

// WithStorageConfig sets the storage configuration
func (b *InventoryStoreBuilder) WithStorageConfig(cfg config.StorageConfig) *InventoryStoreBuilder {
	b.config = cfg
	return b
}

// Build creates a new InventoryStore instance
func (b *InventoryStoreBuilder) Build() (*InventoryStore, error) {
	if b.config.ParquetBasePath == "" {
		return nil, errorwrapper.NewValidationError("parquet_base_path", b.config.ParquetBasePath, "base path cannot be empty")
	}
	return &InventoryStore{
		config: b.config,
		logger: b.logger,
	}, nil
}

// SaveInventory writes one snapshot inventory, replacing any previous file
// for the same host and snapshot. Returns the written file path.
func (is *InventoryStore) SaveInventory(hostSlug, snapshot string, rows []wayback.InventoryRow) (string, error) {
	dir := filepath.Join(is.config.ParquetBasePath, hostSlug+"_"+snapshot)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errorwrapper.WrapError(err, "creating inventory directory "+dir)
	}

	path := filepath.Join(dir, InventoryFileName)
	file, err := os.Create(path)
	if err != nil {
		return "", errorwrapper.WrapError(err, "creating inventory file "+path)
	}
	defer file.Close()

	writer := parquet.NewGenericWriter[ParquetInventoryRecord](file, is.compressionOption())

	fetchedAt := time.Now().Unix()
	records := make([]ParquetInventoryRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, ParquetInventoryRecord{
			Timestamp: row.Timestamp,
			Original:  row.Original,
			MimeType:  row.MimeType,
			Length:    row.Length,
			URLKey:    row.URLKey,
			FetchedAt: fetchedAt,
		})
	}

	if len(records) > 0 {
		if _, err := writer.Write(records); err != nil {
			_ = writer.Close()
			return "", errorwrapper.WrapError(err, "writing inventory records to "+path)
		}
	}
	if err := writer.Close(); err != nil {
		return "", errorwrapper.WrapError(err, "closing inventory writer for "+path)
	}

	is.logger.Info().
		Str("path", path).
		Int("records", len(records)).
		Msg("Inventory persisted")
	return path, nil
}

// LoadInventory reads a previously persisted snapshot inventory. A missing
// file reports ErrNotFound.
func (is *InventoryStore) LoadInventory(hostSlug, snapshot string) ([]wayback.InventoryRow, error) {
	path := filepath.Join(is.config.ParquetBasePath, hostSlug+"_"+snapshot, InventoryFileName)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errorwrapper.WrapError(errorwrapper.ErrNotFound, "no persisted inventory at "+path)
		}
		return nil, errorwrapper.WrapError(err, "opening inventory file "+path)
	}
	defer file.Close()

	reader := parquet.NewGenericReader[ParquetInventoryRecord](file)
	defer reader.Close()

	var rows []wayback.InventoryRow
	buffer := make([]ParquetInventoryRecord, 256)
	for {
		n, err := reader.Read(buffer)
		for _, record := range buffer[:n] {
			rows = append(rows, wayback.InventoryRow{
				Timestamp: record.Timestamp,
				Original:  record.Original,
				MimeType:  record.MimeType,
				Length:    record.Length,
				URLKey:    record.URLKey,
			})
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errorwrapper.WrapError(err, "reading inventory rows from "+path)
		}
	}
	return rows, nil
}

func (is *InventoryStore) compressionOption() parquet.WriterOption {
	switch is.config.CompressionCodec {
	case "gzip":
		return parquet.Compression(&parquet.Gzip)
	case "snappy":
		return parquet.Compression(&parquet.Snappy)
	case "none":
		return parquet.Compression(&parquet.Uncompressed)
	default:
		return parquet.Compression(&parquet.Zstd)
	}
}
