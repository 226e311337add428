package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// RotatingFile is an io.WriteCloser that rolls the file over once it would
// grow past MaxSize bytes. Backups are kept as name.1 (newest) to name.N.
type RotatingFile struct {
	Filename   string
	MaxSize    int64
	MaxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

// OpenRotatingFile opens (or creates) filename for appending.
func OpenRotatingFile(filename string, maxSizeMB int64, maxBackups int) (*RotatingFile, error) {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create log dir: %w", err)
		}
	}
	r := &RotatingFile{
		Filename:   filename,
		MaxSize:    maxSizeMB * 1024 * 1024,
		MaxBackups: maxBackups,
	}
	if err := r.open(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *RotatingFile) open() error {
	f, err := os.OpenFile(r.Filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}
	r.file = f
	r.size = info.Size()
	return nil
}

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.open(); err != nil {
			return 0, err
		}
	}
	if r.MaxSize > 0 && r.size+int64(len(p)) > r.MaxSize && r.size > 0 {
		if err := r.rotate(); err != nil {
			// Keep writing to whatever is open rather than dropping the line.
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
			if r.file == nil {
				if err := r.open(); err != nil {
					return 0, err
				}
			}
		}
	}
	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

// rotate shifts name.i to name.i+1, moves the live file to name.1 and reopens.
func (r *RotatingFile) rotate() error {
	if err := r.file.Close(); err != nil {
		return err
	}
	r.file = nil

	for i := r.MaxBackups - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", r.Filename, i)
		if _, err := os.Stat(from); os.IsNotExist(err) {
			continue
		}
		if err := os.Rename(from, fmt.Sprintf("%s.%d", r.Filename, i+1)); err != nil {
			return err
		}
	}
	if r.MaxBackups > 0 {
		if err := os.Rename(r.Filename, r.Filename+".1"); err != nil && !os.IsNotExist(err) {
			return err
		}
	} else if err := os.Remove(r.Filename); err != nil && !os.IsNotExist(err) {
		return err
	}
	return r.open()
}

// Close closes the underlying file.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}
