// Package audit keeps an append-only JSONL journal of kiosk outcomes and
// feeds it into the election activity log.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

const (
	fileMode = 0o644
	dirMode  = 0o755
)

type line struct {
	Seq   uint64 `json:"seq"`
	Event Event  `json:"event"`
}

// Journal stores one JSON event per line and tracks how far the activity
// log has caught up in a ".commit" sidecar.
type Journal struct {
	mu         sync.Mutex
	path       string
	commitPath string
	file       *os.File
	nextSeq    uint64
	committed  uint64
}

// Open creates or opens a journal at path. A partially written trailing
// line from an interrupted append is cut off.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("audit: journal path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), dirMode); err != nil {
		return nil, fmt.Errorf("audit: mkdir: %w", err)
	}

	commitPath := path + ".commit"
	committed, err := readCommitted(commitPath)
	if err != nil {
		return nil, err
	}

	maxSeq, err := repairTail(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, fileMode)
	if err != nil {
		return nil, fmt.Errorf("audit: open journal: %w", err)
	}

	return &Journal{
		path:       path,
		commitPath: commitPath,
		file:       f,
		nextSeq:    max(maxSeq, committed) + 1,
		committed:  committed,
	}, nil
}

// Path returns the journal file path.
func (j *Journal) Path() string { return j.path }

// Append persists one event and returns its sequence number.
func (j *Journal) Append(ev Event) (uint64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.file == nil {
		return 0, errors.New("audit: journal is closed")
	}

	seq := j.nextSeq
	data, err := json.Marshal(line{Seq: seq, Event: ev})
	if err != nil {
		return 0, fmt.Errorf("audit: marshal event: %w", err)
	}
	data = append(data, '\n')

	if _, err := j.file.Write(data); err != nil {
		return 0, fmt.Errorf("audit: write event: %w", err)
	}
	if err := j.file.Sync(); err != nil {
		return 0, fmt.Errorf("audit: sync event: %w", err)
	}
	j.nextSeq++
	return seq, nil
}

// Commit marks all events up to seq as applied to the activity log.
func (j *Journal) Commit(seq uint64) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if seq <= j.committed {
		return nil
	}
	if err := writeCommitted(j.commitPath, seq); err != nil {
		return err
	}
	j.committed = seq
	return nil
}

// Committed returns the highest committed sequence number.
func (j *Journal) Committed() uint64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.committed
}

// Walk calls fn for every event in sequence order.
func (j *Journal) Walk(fn func(seq uint64, ev Event, committed bool) error) error {
	j.mu.Lock()
	committed := j.committed
	j.mu.Unlock()

	return scan(j.path, func(l line) error {
		return fn(l.Seq, l.Event, l.Seq <= committed)
	})
}

// Replay calls fn for each uncommitted event in sequence order.
func (j *Journal) Replay(fn func(seq uint64, ev Event) error) error {
	if fn == nil {
		return errors.New("audit: replay callback is nil")
	}
	return j.Walk(func(seq uint64, ev Event, committed bool) error {
		if committed {
			return nil
		}
		return fn(seq, ev)
	})
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.file == nil {
		return nil
	}
	err := j.file.Close()
	j.file = nil
	return err
}

// scan reads complete, well-formed lines and stops at the first bad one.
func scan(path string, fn func(line) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("audit: open for read: %w", err)
	}
	defer f.Close()

	_, err = readLines(f, fn)
	return err
}

// readLines returns the byte offset just past the last good line.
func readLines(r io.Reader, fn func(line) error) (int64, error) {
	reader := bufio.NewReader(r)
	var good int64
	for {
		raw, err := reader.ReadBytes('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return good, fmt.Errorf("audit: read journal: %w", err)
		}
		if len(raw) == 0 || raw[len(raw)-1] != '\n' {
			return good, nil
		}
		var l line
		if json.Unmarshal(raw, &l) != nil {
			return good, nil
		}
		if ferr := fn(l); ferr != nil {
			return good, ferr
		}
		good += int64(len(raw))
	}
}

func repairTail(path string) (uint64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, fileMode)
	if err != nil {
		return 0, fmt.Errorf("audit: open for repair: %w", err)
	}
	defer f.Close()

	var maxSeq uint64
	good, err := readLines(f, func(l line) error {
		maxSeq = max(maxSeq, l.Seq)
		return nil
	})
	if err != nil {
		return 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("audit: stat journal: %w", err)
	}
	if info.Size() > good {
		if err := os.Truncate(path, good); err != nil {
			return 0, fmt.Errorf("audit: truncate partial tail: %w", err)
		}
	}
	return maxSeq, nil
}

func readCommitted(path string) (uint64, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("audit: read commit file: %w", err)
	}
	s := strings.TrimSpace(string(data))
	if s == "" {
		return 0, nil
	}
	seq, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("audit: parse commit seq: %w", err)
	}
	return seq, nil
}

// writeCommitted replaces the sidecar atomically via rename.
func writeCommitted(path string, seq uint64) error {
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode)
	if err != nil {
		return fmt.Errorf("audit: open commit tmp: %w", err)
	}
	if _, err := f.WriteString(strconv.FormatUint(seq, 10) + "\n"); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("audit: write commit tmp: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("audit: sync commit tmp: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("audit: close commit tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("audit: rename commit file: %w", err)
	}
	return nil
}
