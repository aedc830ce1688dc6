package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"flashArb/internal/model"
)

// JsonlStorage appends cycle reports to a JSONL file. It is safe for
// concurrent use within one process.
type JsonlStorage struct {
	path string
	mu   sync.Mutex
}

func NewJsonlStorage(path string) *JsonlStorage {
	return &JsonlStorage{path: path}
}

func (s *JsonlStorage) PutCycleReport(_ context.Context, report model.CycleReport) error {
	return s.PutCycleReports([]model.CycleReport{report})
}

// PutCycleReports appends one JSON object per line. The file and its
// directory are created on first write.
func (s *JsonlStorage) PutCycleReports(reports []model.CycleReport) error {
	if len(reports) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create report dir: %w", err)
	}
	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open report file: %w", err)
	}

	buf := bufio.NewWriter(file)
	enc := json.NewEncoder(buf)
	for _, report := range reports {
		if err := enc.Encode(report); err != nil {
			file.Close()
			return fmt.Errorf("encode cycle %s: %w", report.ID, err)
		}
	}
	if err := buf.Flush(); err != nil {
		file.Close()
		return fmt.Errorf("flush report file: %w", err)
	}
	return file.Close()
}
