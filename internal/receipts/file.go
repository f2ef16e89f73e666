package receipts

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

// FileLog is a JSON Lines receipt log. Each line is written with a single
// write followed by fsync; a failed write is truncated away. When that
// truncate fails too, the log refuses further appends until it is reopened,
// which truncates the torn line.
type FileLog struct {
	mu     sync.Mutex
	file   logFile
	path   string
	size   int64
	head   uint64
	broken error
	logger *slog.Logger
}

type logFile interface {
	io.ReaderAt
	io.Writer
	Sync() error
	Truncate(size int64) error
	Stat() (os.FileInfo, error)
	Close() error
}

// OpenFileLog opens or creates the log at path and recovers its head. A torn
// final line left by a crash is truncated. Out-of-sequence entries fail with ErrLogCorrupt.
func OpenFileLog(path string, logger *slog.Logger) (*FileLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open receipt log: %w", err)
	}

	l := &FileLog{
		file:   f,
		path:   path,
		logger: logger.With("system", "receipts", "log", path),
	}

	if err := l.recover(); err != nil {
		f.Close()
		return nil, err
	}

	l.logger.Info("receipt log opened", "head", l.head)
	return l, nil
}

func (l *FileLog) recover() error {
	info, err := l.file.Stat()
	if err != nil {
		return fmt.Errorf("stat receipt log: %w", err)
	}

	r := bufio.NewReader(io.NewSectionReader(l.file, 0, info.Size()))
	var offset int64

	for {
		line, err := r.ReadBytes('\n')
		if errors.Is(err, io.EOF) {
			if len(line) > 0 {
				l.logger.Warn("truncating torn receipt line", "offset", offset, "bytes", len(line))
				if err := l.file.Truncate(offset); err != nil {
					return fmt.Errorf("truncate torn line: %w", err)
				}
			}
			break
		}
		if err != nil {
			return fmt.Errorf("read receipt log: %w", err)
		}

		rec, err := ParseLine(line)
		if err != nil {
			return fmt.Errorf("%w: offset %d: %w", ErrLogCorrupt, offset, err)
		}
		if rec.Seq != l.head+1 {
			return fmt.Errorf("%w: seq %d follows %d", ErrLogCorrupt, rec.Seq, l.head)
		}

		l.head = rec.Seq
		offset += int64(len(line))
	}

	l.size = offset
	return nil
}

// Append writes e as the next line.
func (l *FileLog) Append(ctx context.Context, e Entry) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrAppend, err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.broken != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrAppend, l.broken)
	}

	rec := Receipt{
		Seq:      l.head + 1,
		Hash:     e.Hash,
		Decision: json.RawMessage(e.Canonical),
	}

	line, err := MarshalLine(rec)
	if err != nil {
		return Receipt{}, fmt.Errorf("%w: %w", ErrAppend, err)
	}

	if _, err := l.file.Write(line); err != nil {
		return Receipt{}, l.rollback(err)
	}
	if err := l.file.Sync(); err != nil {
		return Receipt{}, l.rollback(err)
	}

	l.size += int64(len(line))
	l.head = rec.Seq
	return rec, nil
}

func (l *FileLog) rollback(cause error) error {
	if err := l.file.Truncate(l.size); err != nil {
		l.logger.Error("receipt rollback failed, refusing further appends", "error", err, "size", l.size)
		l.broken = fmt.Errorf("%w: torn write past offset %d: %w", ErrLogCorrupt, l.size, err)
		return fmt.Errorf("%w: %w (rollback: %w)", ErrAppend, cause, err)
	}
	return fmt.Errorf("%w: %w", ErrAppend, cause)
}

// Head returns the last committed sequence number.
func (l *FileLog) Head(context.Context) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.head, nil
}

// Range reads committed entries up to upTo. Lines appended after the call
// starts are not visible.
func (l *FileLog) Range(ctx context.Context, upTo uint64) ([]Receipt, error) {
	l.mu.Lock()
	size := l.size
	l.mu.Unlock()

	scanner := bufio.NewScanner(io.NewSectionReader(l.file, 0, size))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	out := make([]Receipt, 0)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		rec, err := ParseLine(scanner.Bytes())
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLogCorrupt, err)
		}
		if rec.Seq > upTo {
			break
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read receipt log: %w", err)
	}

	return out, nil
}

// Close closes the underlying file.
func (l *FileLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.file.Close()
}

// Path returns the log file location.
func (l *FileLog) Path() string { return l.path }

const maxLineSize = 16 * 1024 * 1024

// MarshalLine renders a receipt as one newline-terminated JSON log line.
func MarshalLine(rec Receipt) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ParseLine decodes one log line written by MarshalLine.
func ParseLine(line []byte) (Receipt, error) {
	var rec Receipt
	if err := json.Unmarshal(bytes.TrimSpace(line), &rec); err != nil {
		return Receipt{}, err
	}
	return rec, nil
}
