package logging_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fabline/internal/config"
	"fabline/internal/logging"
)

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "binary"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestNewFromConfigWritesLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()
	cfg.Logging.Format = "json"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	logger.Info("order created", logging.Int64(logging.FieldOrderID, 42))

	data, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "fabline.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"order_id":42`) {
		t.Fatalf("log file missing order id: %s", data)
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := logging.WithStep(logging.WithOrderID(context.Background(), 7), "assembly")
	fields := logging.ContextFields(ctx)
	if len(fields) != 2 {
		t.Fatalf("expected 2 context fields, got %d", len(fields))
	}
	if fields[0].Key != logging.FieldOrderID || fields[1].Key != logging.FieldStep {
		t.Fatalf("unexpected field keys: %v", fields)
	}
}
