package scheduler

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// RawFileSuffix is the extension of raw 1-minute source files tracked by
// the pipeline.
const RawFileSuffix = ".lc1"

// ContractState records per-contract bookkeeping inside the state document.
type ContractState struct {
	LastUpdate *time.Time `json:"last_update"`
}

// State is the persisted pipeline bookkeeping document. Contract keys use
// the SYMBOL_EXCHANGE form; processed_files grows monotonically and a file
// once recorded is never reprocessed on the default path.
type State struct {
	LastUpdate     *time.Time               `json:"last_update"`
	Contracts      map[string]ContractState `json:"contracts"`
	ProcessedFiles []string                 `json:"processed_files"`
}

// StateStore reads and writes the JSON state document. It is safe for
// concurrent readers (the status API polls it while a pipeline runs).
type StateStore struct {
	path string
	mu   sync.Mutex
}

// NewStateStore creates a store backed by the document at path. The
// document is created with empty contents on first use.
func NewStateStore(path string) (*StateStore, error) {
	s := &StateStore{path: path}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.save(&State{Contracts: map[string]ContractState{}, ProcessedFiles: []string{}}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Load returns the current state document. A missing or corrupt document
// is replaced with an empty one rather than failing the pipeline.
func (s *StateStore) Load() (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *StateStore) load() (*State, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{Contracts: map[string]ContractState{}, ProcessedFiles: []string{}}, nil
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return &State{Contracts: map[string]ContractState{}, ProcessedFiles: []string{}}, nil
	}
	if st.Contracts == nil {
		st.Contracts = map[string]ContractState{}
	}
	if st.ProcessedFiles == nil {
		st.ProcessedFiles = []string{}
	}
	return &st, nil
}

func (s *StateStore) save(st *State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}
	return nil
}

// MarkFileProcessed records a raw source file as ingested.
func (s *StateStore) MarkFileProcessed(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	for _, f := range st.ProcessedFiles {
		if f == path {
			return nil
		}
	}
	st.ProcessedFiles = append(st.ProcessedFiles, path)
	return s.save(st)
}

// MarkContractUpdated stamps a contract's last aggregation time with now.
func (s *StateStore) MarkContractUpdated(symbol, exchange string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	now := time.Now()
	st.Contracts[symbol+"_"+exchange] = ContractState{LastUpdate: &now}
	return s.save(st)
}

// MarkRunFinished stamps the last full pipeline run time.
func (s *StateStore) MarkRunFinished(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, err := s.load()
	if err != nil {
		return err
	}
	st.LastUpdate = &t
	return s.save(st)
}

// PendingFiles walks sourceDir and returns, sorted, every raw file not yet
// recorded as processed. A missing directory yields an empty list.
func (s *StateStore) PendingFiles(sourceDir string) ([]string, error) {
	st, err := s.Load()
	if err != nil {
		return nil, err
	}

	processed := make(map[string]struct{}, len(st.ProcessedFiles))
	for _, f := range st.ProcessedFiles {
		processed[f] = struct{}{}
	}

	var pending []string
	err = filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), RawFileSuffix) {
			return nil
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		if _, ok := processed[abs]; !ok {
			pending = append(pending, abs)
		}
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan source dir: %w", err)
	}

	sort.Strings(pending)
	return pending, nil
}
