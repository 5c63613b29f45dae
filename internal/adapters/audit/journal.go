package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"world-state-engine/internal/core/domain"

	"github.com/klauspost/compress/zstd"
)

const hourLayout = "2006-01-02-15"

// Journal appends every event to an hourly zstd-compressed JSONL file.
// It is the source of truth for the audit trail; the sqlite index is derived from it.
type Journal struct {
	dir    string
	prefix string

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJournal(dir string) *Journal {
	return &Journal{dir: dir, prefix: "audit"}
}

func (j *Journal) Name() string { return "journal" }

func (j *Journal) Publish(ctx context.Context, event domain.Event) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	hour := event.OccurredAt.UTC().Format(hourLayout)
	if hour != j.curHour {
		if err := j.rotateLocked(hour); err != nil {
			return fmt.Errorf("rotate journal: %w", err)
		}
	}

	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	if err := j.w.Flush(); err != nil {
		return err
	}
	// push a complete block so readers of the current hour see the line
	return j.enc.Flush()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

func (j *Journal) rotateLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(j.pathForHour(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.f = f
	j.enc = enc
	j.w = bufio.NewWriterSize(enc, 64*1024)
	j.curHour = hour
	return nil
}

func (j *Journal) closeLocked() error {
	var err error
	if j.w != nil {
		_ = j.w.Flush()
	}
	if j.enc != nil {
		err = j.enc.Close()
		j.enc = nil
	}
	if j.f != nil {
		_ = j.f.Close()
		j.f = nil
	}
	j.w = nil
	j.curHour = ""
	return err
}

func (j *Journal) pathForHour(hour string) string {
	return filepath.Join(j.dir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, hour))
}

// Record is a journal line with the payload left undecoded.
type Record struct {
	AuditID     domain.ID        `json:"auditId"`
	Kind        domain.EventKind `json:"kind"`
	AggregateID string           `json:"aggregateId"`
	OccurredAt  json.RawMessage  `json:"occurredAt"`
	TraceID     string           `json:"traceId,omitempty"`
	Payload     json.RawMessage  `json:"payload"`
}

// Files lists journal files in dir in chronological order.
func Files(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "audit-*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadFile decodes one journal file. A truncated tail from a process that was
// still writing is tolerated and the lines read so far are returned.
func ReadFile(path string, fn func(Record) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("%s: decode line: %w", filepath.Base(path), err)
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}
