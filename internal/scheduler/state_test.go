package scheduler

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testStateStore(t *testing.T) *StateStore {
	t.Helper()
	s, err := NewStateStore(filepath.Join(t.TempDir(), "state.json"))
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	return s
}

func TestStateStoreCreatesEmptyDocument(t *testing.T) {
	s := testStateStore(t)

	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.LastUpdate != nil {
		t.Errorf("fresh state has last_update %v, want nil", st.LastUpdate)
	}
	if len(st.Contracts) != 0 || len(st.ProcessedFiles) != 0 {
		t.Errorf("fresh state not empty: %+v", st)
	}
}

func TestStateStoreRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewStateStore(path)
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}

	if err := s.MarkFileProcessed("/data/rb2401.lc1"); err != nil {
		t.Fatalf("MarkFileProcessed: %v", err)
	}
	if err := s.MarkContractUpdated("rb2401", "SHFE"); err != nil {
		t.Fatalf("MarkContractUpdated: %v", err)
	}
	ran := time.Date(2024, 1, 16, 15, 30, 0, 0, time.Local)
	if err := s.MarkRunFinished(ran); err != nil {
		t.Fatalf("MarkRunFinished: %v", err)
	}

	// Reopen from disk to prove persistence.
	s2, err := NewStateStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	st, err := s2.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if st.LastUpdate == nil || !st.LastUpdate.Equal(ran) {
		t.Errorf("last_update = %v, want %v", st.LastUpdate, ran)
	}
	cs, ok := st.Contracts["rb2401_SHFE"]
	if !ok || cs.LastUpdate == nil {
		t.Errorf("contract rb2401_SHFE missing or unstamped: %+v", st.Contracts)
	}
	if len(st.ProcessedFiles) != 1 || st.ProcessedFiles[0] != "/data/rb2401.lc1" {
		t.Errorf("processed_files = %v", st.ProcessedFiles)
	}
}

func TestStateStoreProcessedFilesMonotone(t *testing.T) {
	s := testStateStore(t)

	for i := 0; i < 3; i++ {
		if err := s.MarkFileProcessed("/data/rb2401.lc1"); err != nil {
			t.Fatalf("MarkFileProcessed: %v", err)
		}
	}
	if err := s.MarkFileProcessed("/data/cu2402.lc1"); err != nil {
		t.Fatalf("MarkFileProcessed: %v", err)
	}

	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(st.ProcessedFiles) != 2 {
		t.Errorf("expected deduplicated list of 2 files, got %v", st.ProcessedFiles)
	}
}

func TestStateStoreCorruptDocumentResets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	s := &StateStore{path: path}
	st, err := s.Load()
	if err != nil {
		t.Fatalf("Load on corrupt file: %v", err)
	}
	if len(st.Contracts) != 0 || len(st.ProcessedFiles) != 0 {
		t.Errorf("corrupt document should reset to empty, got %+v", st)
	}
}

func TestPendingFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"rb2401.lc1", "cu2402.lc1", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	s := testStateStore(t)

	pending, err := s.PendingFiles(dir)
	if err != nil {
		t.Fatalf("PendingFiles: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("pending = %v, want the two .lc1 files", pending)
	}

	// Mark one processed; it must drop out of the next scan.
	if err := s.MarkFileProcessed(pending[0]); err != nil {
		t.Fatalf("MarkFileProcessed: %v", err)
	}
	pending, err = s.PendingFiles(dir)
	if err != nil {
		t.Fatalf("PendingFiles: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending after marking = %v, want 1 file", pending)
	}
}

func TestPendingFilesMissingDir(t *testing.T) {
	s := testStateStore(t)
	pending, err := s.PendingFiles(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("PendingFiles on missing dir: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("pending = %v, want empty", pending)
	}
}

func TestStateDocumentShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := NewStateStore(path)
	if err != nil {
		t.Fatalf("NewStateStore: %v", err)
	}
	if err := s.MarkContractUpdated("rb2401", "SHFE"); err != nil {
		t.Fatalf("MarkContractUpdated: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("state file is not valid JSON: %v", err)
	}
	for _, key := range []string{"last_update", "contracts", "processed_files"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("state document missing %q key", key)
		}
	}
}
