package storage

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/IshaanNene/fetgoat/internal/types"
)

// --- JSON Storage ---

// JSONStorage buffers items and writes them as one JSON array on Close.
type JSONStorage struct {
	path   string
	items  []*types.Item
	mu     sync.Mutex
	logger *slog.Logger
}

// NewJSONStorage creates a JSON file sink at outputPath.
func NewJSONStorage(outputPath string, logger *slog.Logger) (*JSONStorage, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &JSONStorage{
		path:   outputPath,
		logger: logger.With("component", "json_storage"),
	}, nil
}

func (s *JSONStorage) Name() string { return "json" }

// Path returns the output file path.
func (s *JSONStorage) Path() string { return s.path }

func (s *JSONStorage) Store(ctx context.Context, items []*types.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, items...)
	s.logger.Debug("items buffered", "count", len(items), "total", len(s.items))
	return nil
}

func (s *JSONStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	output := make([]map[string]any, len(s.items))
	for i, item := range s.items {
		output[i] = record(item)
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(output); err != nil {
		return fmt.Errorf("encode JSON: %w", err)
	}

	s.logger.Info("JSON written", "path", s.path, "items", len(s.items))
	return nil
}

// --- JSONL Storage ---

// JSONLStorage streams items as newline-delimited JSON.
type JSONLStorage struct {
	path   string
	file   *os.File
	enc    *json.Encoder
	mu     sync.Mutex
	count  int
	logger *slog.Logger
}

// NewJSONLStorage creates a JSONL file sink at outputPath.
func NewJSONLStorage(outputPath string, logger *slog.Logger) (*JSONLStorage, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(outputPath)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return &JSONLStorage{
		path:   outputPath,
		file:   f,
		enc:    json.NewEncoder(f),
		logger: logger.With("component", "jsonl_storage"),
	}, nil
}

func (s *JSONLStorage) Name() string { return "jsonl" }

// Path returns the output file path.
func (s *JSONLStorage) Path() string { return s.path }

func (s *JSONLStorage) Store(ctx context.Context, items []*types.Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.enc.Encode(record(item)); err != nil {
			return fmt.Errorf("encode JSONL: %w", err)
		}
		s.count++
	}
	return nil
}

func (s *JSONLStorage) Close() error {
	s.logger.Info("JSONL written", "path", s.path, "items", s.count)
	return s.file.Close()
}

// --- CSV Storage ---

// CSVStorage buffers items and writes them as CSV on Close. Entity kinds
// carry different fields, so the header is the union of every column seen
// with the metadata columns first.
type CSVStorage struct {
	path   string
	rows   []map[string]string
	mu     sync.Mutex
	logger *slog.Logger
}

var metaColumns = []string{"_kind", "_id", "_url", "_timestamp"}

// NewCSVStorage creates a CSV file sink at outputPath.
func NewCSVStorage(outputPath string, logger *slog.Logger) (*CSVStorage, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &CSVStorage{
		path:   outputPath,
		logger: logger.With("component", "csv_storage"),
	}, nil
}

func (s *CSVStorage) Name() string { return "csv" }

// Path returns the output file path.
func (s *CSVStorage) Path() string { return s.path }

func (s *CSVStorage) Store(ctx context.Context, items []*types.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range items {
		s.rows = append(s.rows, item.ToFlatMap())
	}
	return nil
}

func (s *CSVStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}
	defer f.Close()

	headers := s.headers()
	w := csv.NewWriter(f)
	if err := w.Write(headers); err != nil {
		return fmt.Errorf("write CSV header: %w", err)
	}
	for _, flat := range s.rows {
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = flat[h]
		}
		if err := w.Write(row); err != nil {
			return fmt.Errorf("write CSV row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush CSV: %w", err)
	}

	s.logger.Info("CSV written", "path", s.path, "items", len(s.rows))
	return nil
}

func (s *CSVStorage) headers() []string {
	seen := make(map[string]bool)
	for _, c := range metaColumns {
		seen[c] = true
	}
	var rest []string
	for _, row := range s.rows {
		for k := range row {
			if !seen[k] {
				seen[k] = true
				rest = append(rest, k)
			}
		}
	}
	sort.Strings(rest)
	return append(append([]string{}, metaColumns...), rest...)
}

// NewFileStorage creates a file sink of storageType at outputDir/name.ext.
func NewFileStorage(storageType, outputDir, name string, logger *slog.Logger) (Storage, error) {
	base := filepath.Join(outputDir, FileName(name))
	switch storageType {
	case "json":
		return NewJSONStorage(base+".json", logger)
	case "jsonl":
		return NewJSONLStorage(base+".jsonl", logger)
	case "csv":
		return NewCSVStorage(base+".csv", logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
