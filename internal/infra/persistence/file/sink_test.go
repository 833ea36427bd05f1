package file

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "state")
	sink, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if sink.Driver() != DriverName || sink.Root() != dir {
		t.Fatalf("unexpected sink identity %s %s", sink.Driver(), sink.Root())
	}
	if err := sink.Save(ctx, "orders", []byte(`{"a":1}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := sink.Save(ctx, "orders", []byte(`{"a":2}`)); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	if err := sink.Save(ctx, "requisitions", []byte(`{}`)); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Leftover temp files from an interrupted save are ignored.
	if err := os.WriteFile(filepath.Join(dir, ".tmp-123"), []byte("junk"), 0o600); err != nil {
		t.Fatalf("seed tmp: %v", err)
	}

	reopened, err := New(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err := reopened.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got) != 2 || string(got["orders"]) != `{"a":2}` {
		t.Fatalf("unexpected load result %v", got)
	}

	if err := reopened.Delete(ctx, "orders"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := reopened.Delete(ctx, "orders"); err != nil {
		t.Fatalf("delete of missing key should be ignored: %v", err)
	}
	if err := reopened.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	got, _ = reopened.Load(ctx)
	if len(got) != 0 {
		t.Fatalf("expected empty after clear, got %v", got)
	}
}

func TestSinkRejectsUnsafeKeys(t *testing.T) {
	sink, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	for _, key := range []string{"", "../escape", "a/b", ".hidden"} {
		if err := sink.Save(context.Background(), key, nil); !errors.Is(err, ErrInvalidKey) {
			t.Fatalf("expected invalid key error for %q, got %v", key, err)
		}
	}
}

func TestNewRequiresDirectory(t *testing.T) {
	if _, err := New(""); err == nil {
		t.Fatalf("expected error for empty directory")
	}
}

func TestLoadMissingDirectoryIsEmpty(t *testing.T) {
	dir := t.TempDir()
	sink, _ := New(dir)
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove: %v", err)
	}
	got, err := sink.Load(context.Background())
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty load for missing dir, got %v %v", got, err)
	}
}

func TestSaveFailureWrapsSentinel(t *testing.T) {
	dir := t.TempDir()
	sink, _ := New(dir)
	if err := os.RemoveAll(dir); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := sink.Save(context.Background(), "orders", []byte("{}")); !errors.Is(err, ErrSaveFailed) {
		t.Fatalf("expected save failure, got %v", err)
	}
}
