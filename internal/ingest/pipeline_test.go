package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hyperjump/schemalign/internal/canon"
	"github.com/hyperjump/schemalign/internal/embedding"
	"github.com/hyperjump/schemalign/internal/fileid"
	"github.com/hyperjump/schemalign/internal/models"
	"github.com/hyperjump/schemalign/internal/oracle"
	"github.com/hyperjump/schemalign/internal/storage"
	"github.com/hyperjump/schemalign/internal/table"
	"github.com/hyperjump/schemalign/internal/vector"
)

var testMeta = models.Metadata{Region: "North", School: "Hill Valley High", Activity: "Census"}

func testPipeline(t *testing.T, dir string) (*Pipeline, *storage.SQLiteStore, *vector.Catalog) {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "db.sqlite"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	vectors, err := vector.NewMemoryStore("")
	if err != nil {
		t.Fatal(err)
	}
	emb := embedding.NewHashEmbedder(64)
	catalog := vector.NewCatalog(vectors, emb.Dimensions())
	c := canon.New(emb, oracle.StaticOracle{}, canon.WithRecorder(store))
	clock := func() time.Time { return time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC) }
	return New(c, catalog, "features", store, WithClock(clock)), store, catalog
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func registryCount(t *testing.T, catalog *vector.Catalog, name string) int {
	t.Helper()
	ctx := context.Background()
	coll, err := catalog.Open(ctx, name)
	if err != nil {
		t.Fatal(err)
	}
	n, err := coll.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

func TestIngestFile_canonicalizesHeaders(t *testing.T) {
	dir := t.TempDir()
	p, store, catalog := testPipeline(t, dir)
	ctx := context.Background()

	first := filepath.Join(dir, "a.csv")
	writeFile(t, first, "age,student_name\n12,Ann\n")
	res, err := p.IngestFile(ctx, first, testMeta)
	if err != nil {
		t.Fatal(err)
	}
	if res.Report.Added() != 2 || len(res.Record.Renames) != 0 {
		t.Errorf("first file: added=%d renames=%v", res.Report.Added(), res.Record.Renames)
	}

	second := filepath.Join(dir, "b.csv")
	writeFile(t, second, "Age,Student Name\n13,Bob\n")
	res, err = p.IngestFile(ctx, second, testMeta)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(res.Record.Columns, ","); got != "age,student_name" {
		t.Errorf("columns = %q", got)
	}
	if res.Record.Renames["Age"] != "age" || res.Record.Renames["Student Name"] != "student_name" {
		t.Errorf("renames = %v", res.Record.Renames)
	}
	if n := registryCount(t, catalog, "features"); n != 2 {
		t.Errorf("registry count = %d, want 2", n)
	}

	stored, err := store.GetRecord(ctx, fileid.PathID(second))
	if err != nil {
		t.Fatal(err)
	}
	if stored.Filename != "b.csv" || stored.Registry != "features" {
		t.Errorf("stored record = %+v", stored)
	}
	if !stored.Metadata.IngestionTime.Equal(time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)) {
		t.Errorf("ingestion time = %v", stored.Metadata.IngestionTime)
	}
	if n, _ := store.CountDecisions(ctx); n != 4 {
		t.Errorf("decisions = %d, want 4", n)
	}
}

func TestIngestFile_skipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	p, store, _ := testPipeline(t, dir)
	ctx := context.Background()

	path := filepath.Join(dir, "a.csv")
	writeFile(t, path, "age\n12\n")
	if _, err := p.IngestFile(ctx, path, testMeta); err != nil {
		t.Fatal(err)
	}
	res, err := p.IngestFile(ctx, path, testMeta)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Skipped {
		t.Error("unchanged file should be skipped")
	}

	writeFile(t, path, "age,grade\n12,A\n13,B\n")
	res, err = p.IngestFile(ctx, path, testMeta)
	if err != nil {
		t.Fatal(err)
	}
	if res.Skipped {
		t.Error("changed file should be re-ingested")
	}
	if n, _ := store.CountRecords(ctx); n != 1 {
		t.Errorf("records = %d, want 1 (same path replaces)", n)
	}
	rec, err := store.GetRecord(ctx, fileid.PathID(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.Rows) != 2 {
		t.Errorf("rows = %v", rec.Rows)
	}
}

func TestIngestFile_errors(t *testing.T) {
	dir := t.TempDir()
	p, _, _ := testPipeline(t, dir)
	ctx := context.Background()

	txt := filepath.Join(dir, "notes.txt")
	writeFile(t, txt, "hello")
	if _, err := p.IngestFile(ctx, txt, testMeta); !errors.Is(err, table.ErrUnsupportedFormat) {
		t.Errorf("txt: expected ErrUnsupportedFormat, got %v", err)
	}

	csv := filepath.Join(dir, "a.csv")
	writeFile(t, csv, "age\n1\n")
	if _, err := p.IngestFile(ctx, csv, models.Metadata{Region: "North"}); !errors.Is(err, ErrInvalidMetadata) {
		t.Errorf("missing metadata: expected ErrInvalidMetadata, got %v", err)
	}
	if _, err := p.IngestFile(ctx, filepath.Join(dir, "missing.csv"), testMeta); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestIngestBytes(t *testing.T) {
	dir := t.TempDir()
	p, store, _ := testPipeline(t, dir)
	ctx := context.Background()

	content := []byte(`[{"age": 12, "school_name": "Hill"}]`)
	res, err := p.IngestBytes(ctx, "upload.json", content, testMeta)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(res.Record.ID, "upload:") {
		t.Errorf("id = %q", res.Record.ID)
	}
	got, err := store.GetRecord(ctx, res.Record.ID)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Join(got.Columns, ",") != "age,school_name" || got.Rows[0][0] != "12" {
		t.Errorf("record = %+v", got)
	}

	if _, err := p.IngestBytes(ctx, "upload.pdf", content, testMeta); !errors.Is(err, table.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestIngestDirectory(t *testing.T) {
	dir := t.TempDir()
	p, store, catalog := testPipeline(t, filepath.Join(dir, "db"))
	ctx := context.Background()

	inbox := filepath.Join(dir, "inbox")
	writeFile(t, filepath.Join(inbox, "a.csv"), "student_id,grade\n1,A\n")
	writeFile(t, filepath.Join(inbox, "b.csv"), "Student ID,Grade\n2,B\n")
	writeFile(t, filepath.Join(inbox, "nested", "c.csv"), "studentId,grade\n3,C\n")
	writeFile(t, filepath.Join(inbox, "readme.txt"), "ignored")

	n, err := p.IngestDirectory(ctx, inbox, testMeta, 2)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("ingested %d files, want 3", n)
	}
	if c, _ := store.CountRecords(ctx); c != 3 {
		t.Errorf("records = %d, want 3", c)
	}
	if c := registryCount(t, catalog, "features"); c != 2 {
		t.Errorf("registry count = %d, want 2 (student_id, grade)", c)
	}

	if _, err := p.IngestDirectory(ctx, filepath.Join(inbox, "a.csv"), testMeta, 1); err == nil {
		t.Error("expected error for non-directory")
	}
}

func TestForRegistry(t *testing.T) {
	dir := t.TempDir()
	p, _, catalog := testPipeline(t, dir)
	ctx := context.Background()

	other := p.ForRegistry("survey")
	if other.Registry() != "survey" || p.Registry() != "features" {
		t.Fatalf("registries = %q, %q", other.Registry(), p.Registry())
	}
	if p.ForRegistry("") != p {
		t.Error("empty name should keep the pipeline")
	}
	res, err := other.IngestBytes(ctx, "s.csv", []byte("q1\nyes\n"), testMeta)
	if err != nil {
		t.Fatal(err)
	}
	if res.Record.Registry != "survey" {
		t.Errorf("record registry = %q", res.Record.Registry)
	}
	if registryCount(t, catalog, "survey") != 1 || registryCount(t, catalog, "features") != 0 {
		t.Error("feature should be registered in the survey registry only")
	}
}
