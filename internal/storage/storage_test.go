package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) ListObjects(_ context.Context, prefix string) ([]ObjectInfo, error) {
	var out []ObjectInfo
	for k, v := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, ObjectInfo{Key: k, Size: int64(len(v))})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (m *memoryStore) DownloadObject(_ context.Context, key, destPath string) error {
	return os.WriteFile(destPath, m.objects[key], 0o644)
}

func (m *memoryStore) UploadObject(_ context.Context, key string, data []byte, _ string) error {
	m.objects[key] = data
	return nil
}

func TestFetchInputs(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{
		"inputs/2024-06/sales.csv":     []byte("item_id,location_id,week_ending,qty_sold\n"),
		"inputs/2024-06/items.CSV":     []byte("item_id\n"),
		"inputs/2024-06/readme.txt":    []byte("ignore me"),
		"inputs/2024-05/inventory.csv": []byte("old"),
	}}
	dir := t.TempDir()

	paths, err := FetchInputs(context.Background(), store, "inputs/2024-06/", dir)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(paths) != 2 {
		t.Fatalf("expected 2 csv files, got %v", paths)
	}
	data, err := os.ReadFile(filepath.Join(dir, "sales.csv"))
	if err != nil || !strings.HasPrefix(string(data), "item_id") {
		t.Fatalf("sales.csv not downloaded: %v", err)
	}

	if _, err := FetchInputs(context.Background(), store, "inputs/2023/", dir); !errors.Is(err, ErrNoObjects) {
		t.Fatalf("expected ErrNoObjects, got %v", err)
	}
}

func TestJoinKey(t *testing.T) {
	tests := []struct {
		parts []string
		want  string
	}{
		{[]string{"exports/", "/run-1", "alerts.csv"}, "exports/run-1/alerts.csv"},
		{[]string{"", "alerts.csv"}, "alerts.csv"},
		{[]string{"a", "", "b"}, "a/b"},
	}
	for _, tt := range tests {
		if got := JoinKey(tt.parts...); got != tt.want {
			t.Errorf("JoinKey(%q) = %q, want %q", tt.parts, got, tt.want)
		}
	}
}
