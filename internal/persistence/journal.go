package persistence

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/tokensim/internal/engine"
)

// Journal writes one JSON line per turn into hourly zstd-compressed files.
type Journal struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

// JournalEntry is one journal line.
type JournalEntry struct {
	Summary engine.TurnSummary `json:"summary"`
	Events  []engine.Event     `json:"events,omitempty"`
}

func NewJournal(baseDir string) *Journal {
	return &Journal{
		baseDir: baseDir,
		prefix:  "turns",
		now:     time.Now,
	}
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closeLocked()
}

// WriteTurn appends a turn and its events.
func (j *Journal) WriteTurn(s engine.TurnSummary, events []engine.Event) error {
	return j.write(JournalEntry{Summary: s, Events: events})
}

func (j *Journal) write(v any) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	hour := j.now().UTC().Format("2006-01-02-15")
	if hour != j.curHour {
		if err := j.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := j.w.Write(b); err != nil {
		return err
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return err
	}
	return j.w.Flush()
}

func (j *Journal) rotateLocked(hour string) error {
	if err := j.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(j.baseDir, 0o755); err != nil {
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
	return filepath.Join(j.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", j.prefix, hour))
}
