// Package results batches per-attempt posting outcomes and writes them to one
// spreadsheet per post.
package results

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"log/slog"

	"github.com/xuri/excelize/v2"
)

const (
	sheetName     = "Sheet1"
	writeAttempts = 3
	writeRetryGap = time.Second
)

// Result is the outcome of one posting attempt.
type Result struct {
	PostID      string
	PostTitle   string
	AccountID   string
	AccountName string
	Succeeded   bool
	RemoteID    string
	Permalink   string
	Message     string
	Timestamp   time.Time
}

// Aggregator buffers results in memory and appends them to per-post xlsx
// files on Flush. Results survive in the buffer until a flush succeeds, so a
// locked file (the operator has it open in Excel) loses nothing.
type Aggregator struct {
	dir    string
	logger *slog.Logger

	mu        sync.Mutex
	batches   map[string][]Result
	filenames map[string]string
	retryGap  time.Duration
}

// NewAggregator creates an aggregator writing under dir.
func NewAggregator(dir string, logger *slog.Logger) (*Aggregator, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	return &Aggregator{
		dir:       dir,
		logger:    logger,
		batches:   make(map[string][]Result),
		filenames: make(map[string]string),
		retryGap:  writeRetryGap,
	}, nil
}

// Record buffers one result.
func (a *Aggregator) Record(r Result) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.batches[r.PostID] = append(a.batches[r.PostID], r)
}

// Pending reports how many results are waiting to be flushed.
func (a *Aggregator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := 0
	for _, batch := range a.batches {
		n += len(batch)
	}
	return n
}

// Flush appends every buffered batch to its post's spreadsheet. Each write is
// retried a few times to ride out transient file locks. Batches that land on
// disk are cleared; failed batches stay buffered and the first error is
// returned after all batches were attempted.
func (a *Aggregator) Flush() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	var firstErr error
	for postID, batch := range a.batches {
		if len(batch) == 0 {
			continue
		}
		path := a.pathFor(postID, batch[0].PostTitle)
		if err := a.writeWithRetry(path, batch); err != nil {
			a.logger.Error("failed to write results",
				"post", batch[0].PostTitle, "path", path, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		delete(a.batches, postID)
	}
	return firstErr
}

func (a *Aggregator) writeWithRetry(path string, batch []Result) error {
	var err error
	for attempt := 0; attempt < writeAttempts; attempt++ {
		if attempt > 0 {
			time.Sleep(a.retryGap)
		}
		if err = a.appendRows(path, batch); err == nil {
			return nil
		}
		a.logger.Warn("result write failed, retrying",
			"path", path, "attempt", attempt+1, "error", err)
	}
	return err
}

func (a *Aggregator) appendRows(path string, batch []Result) error {
	var f *excelize.File
	var startRow int

	if _, statErr := os.Stat(path); statErr == nil {
		existing, err := excelize.OpenFile(path)
		if err != nil {
			return fmt.Errorf("open workbook: %w", err)
		}
		rows, err := existing.GetRows(sheetName)
		if err != nil {
			_ = existing.Close()
			return fmt.Errorf("read workbook: %w", err)
		}
		f = existing
		startRow = len(rows) + 1
	} else {
		f = excelize.NewFile()
		header := []string{"Time", "Account", "Result", "Post URL", "Detail"}
		for col, title := range header {
			cell, _ := excelize.CoordinatesToCellName(col+1, 1)
			if err := f.SetCellValue(sheetName, cell, title); err != nil {
				_ = f.Close()
				return fmt.Errorf("write header: %w", err)
			}
		}
		startRow = 2
	}
	defer f.Close()

	for i, r := range batch {
		row := startRow + i
		outcome := "failed"
		if r.Succeeded {
			outcome = "success"
		}
		values := []any{
			r.Timestamp.Format("2006-01-02 15:04:05"),
			r.AccountName,
			outcome,
			r.Permalink,
			r.Message,
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(sheetName, cell, v); err != nil {
				return fmt.Errorf("write row %d: %w", row, err)
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("save workbook: %w", err)
	}
	return nil
}

// pathFor returns the stable spreadsheet path for a post. Titles are
// sanitized for the filesystem; two posts sanitizing to the same name get
// numeric suffixes.
func (a *Aggregator) pathFor(postID, title string) string {
	if path, ok := a.filenames[postID]; ok {
		return path
	}

	base := sanitizeTitle(title)
	name := base
	for n := 2; a.nameTaken(name); n++ {
		name = fmt.Sprintf("%s_%d", base, n)
	}

	path := filepath.Join(a.dir, name+".xlsx")
	a.filenames[postID] = path
	return path
}

func (a *Aggregator) nameTaken(name string) bool {
	candidate := filepath.Join(a.dir, name+".xlsx")
	for _, path := range a.filenames {
		if path == candidate {
			return true
		}
	}
	return false
}

func sanitizeTitle(title string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		}
		return r
	}, strings.TrimSpace(title))
	if cleaned == "" {
		cleaned = "untitled"
	}
	// Truncate on a rune boundary so multi-byte titles stay valid UTF-8.
	const maxLen = 80
	if len(cleaned) > maxLen {
		cut := maxLen
		for cut > 0 && !utf8.RuneStart(cleaned[cut]) {
			cut--
		}
		cleaned = cleaned[:cut]
	}
	return cleaned
}
