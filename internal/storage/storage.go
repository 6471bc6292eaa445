package storage

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/IshaanNene/fetgoat/internal/config"
	"github.com/IshaanNene/fetgoat/internal/types"
)

// Storage is an export sink for flattened entities.
type Storage interface {
	Store(ctx context.Context, items []*types.Item) error
	Close() error
	Name() string
}

// New opens the sink named by cfg.Type. name labels the export: file
// sinks use it as the base file name.
func New(cfg config.StorageConfig, name string, logger *slog.Logger) (Storage, error) {
	switch cfg.Type {
	case "json", "jsonl", "csv", "":
		typ := cfg.Type
		if typ == "" {
			typ = "json"
		}
		return NewFileStorage(typ, cfg.OutputPath, name, logger)
	case "mongo":
		return NewMongoStorage(cfg.MongoURI, cfg.MongoDatabase, cfg.MongoCollection, logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName turns an export label into a safe base file name.
func FileName(name string) string {
	name = strings.Trim(unsafeName.ReplaceAllString(name, "_"), "._")
	if name == "" {
		return "results"
	}
	return name
}

// record is the document form of an item shared by the JSON sinks.
func record(item *types.Item) map[string]any {
	rec := make(map[string]any, len(item.Fields)+4)
	for k, v := range item.Fields {
		rec[k] = v
	}
	rec["_kind"] = item.Kind
	rec["_id"] = item.ID
	rec["_url"] = item.URL
	rec["_timestamp"] = item.Timestamp
	return rec
}
