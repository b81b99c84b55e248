package snapshot

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wonny/stockboard/internal/contracts"
	"github.com/wonny/stockboard/pkg/logger"
)

// Format is the on-disk encoding of a dataset file
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// DatasetStore keeps one flat file per named dataset under dir.
// Files are replaced whole via rename, so readers never see a partial write.
type DatasetStore struct {
	dir    string
	format Format
	logger *logger.Logger
}

// NewDatasetStore creates the directory if needed
func NewDatasetStore(dir string, format Format, log *logger.Logger) (*DatasetStore, error) {
	if format != FormatCSV && format != FormatParquet {
		return nil, fmt.Errorf("unknown dataset format %q", format)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset dir: %w", err)
	}
	return &DatasetStore{
		dir:    dir,
		format: format,
		logger: log.WithComponent("datasets").WithField("format", string(format)),
	}, nil
}

// Path returns the file backing dataset name
func (d *DatasetStore) Path(name string) string {
	return filepath.Join(d.dir, name+"."+string(d.format))
}

// Exists reports whether a file for name is present
func (d *DatasetStore) Exists(name string) bool {
	info, err := os.Stat(d.Path(name))
	return err == nil && !info.IsDir() && info.Size() > 0
}

// Load reads the dataset file. Decode failures are returned as *CacheError.
func (d *DatasetStore) Load(name string) (contracts.UnifiedTable, error) {
	path := d.Path(name)

	var (
		table contracts.UnifiedTable
		err   error
	)
	switch d.format {
	case FormatParquet:
		table, err = readParquet(path)
	default:
		table, err = readCSVFile(path)
	}
	if err != nil {
		return contracts.UnifiedTable{}, &contracts.CacheError{Op: "load", Key: name, Err: err}
	}
	return table, nil
}

// Save writes table as the new content of dataset name
func (d *DatasetStore) Save(name string, table contracts.UnifiedTable) error {
	if table.Len() == 0 {
		return &contracts.CacheError{Op: "save", Key: name, Err: ErrEmptyPayload}
	}

	path := d.Path(name)
	tmp := path + ".tmp"

	var err error
	switch d.format {
	case FormatParquet:
		err = writeParquet(tmp, table)
	default:
		err = writeCSVFile(tmp, table)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return &contracts.CacheError{Op: "save", Key: name, Err: err}
	}

	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return &contracts.CacheError{Op: "save", Key: name, Err: err}
	}

	d.logger.WithFields(map[string]interface{}{
		"dataset": name,
		"rows":    table.Len(),
	}).Info("Dataset file written")
	return nil
}

// Remove deletes the dataset file if present
func (d *DatasetStore) Remove(name string) error {
	err := os.Remove(d.Path(name))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// List returns the dataset names present on disk
func (d *DatasetStore) List() ([]string, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, err
	}

	suffix := "." + string(d.format)
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), suffix))
	}
	sort.Strings(names)
	return names, nil
}
