package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// RotatingWriter is a file writer that rotates its file once it exceeds a
// size limit, and periodically verifies that its descriptor still points at
// the configured path (the file may have been moved or deleted externally).
type RotatingWriter struct {
	mu             sync.Mutex
	f              *os.File
	path           string
	dir            string
	base           string
	maxSize        int64
	approxSize     int64
	verifyInterval time.Duration
	stopCh         chan struct{}
	wg             sync.WaitGroup
}

// NewRotatingWriter opens path for appending, rotating immediately if the
// existing file already exceeds maxSize.
func NewRotatingWriter(path string, maxSize int64, verifyInterval time.Duration) (*RotatingWriter, error) {
	w := &RotatingWriter{
		path:           path,
		dir:            filepath.Dir(path),
		base:           filepath.Base(path),
		maxSize:        maxSize,
		verifyInterval: verifyInterval,
		stopCh:         make(chan struct{}),
	}

	if err := w.openLocked(); err != nil {
		return nil, err
	}

	if w.approxSize >= w.maxSize {
		if err := w.rotateLocked(); err != nil {
			return nil, err
		}
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.verifyInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				w.mu.Lock()
				_ = w.verifyLocked()
				w.mu.Unlock()
			case <-w.stopCh:
				return
			}
		}
	}()

	return w, nil
}

// Write implements io.Writer
func (w *RotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.approxSize+int64(len(p)) >= w.maxSize {
		if err := w.rotateLocked(); err != nil {
			return 0, err
		}
	}

	n, err := w.f.Write(p)
	w.approxSize += int64(n)
	return n, err
}

// Close stops the background verifier and closes the file
func (w *RotatingWriter) Close() error {
	close(w.stopCh)
	w.wg.Wait()
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.f != nil {
		return w.f.Close()
	}
	return nil
}

func (w *RotatingWriter) openLocked() error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return fmt.Errorf("creating log directory: %w", err)
	}

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}

	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	w.f = f
	w.approxSize = fi.Size()
	return nil
}

// rotateLocked archives the current file as old/<basename>.YYYYMMDD-HHMMSS
// and starts a fresh one.
func (w *RotatingWriter) rotateLocked() error {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}

	oldDir := filepath.Join(w.dir, "old")
	if err := os.MkdirAll(oldDir, 0755); err != nil {
		return fmt.Errorf("creating old/ directory: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405")
	archivePath := filepath.Join(oldDir, fmt.Sprintf("%s.%s", w.base, timestamp))

	// Best effort, the file might not exist anymore
	_ = os.Rename(w.path, archivePath)

	f, err := os.OpenFile(w.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("creating new log file: %w", err)
	}

	w.f = f
	w.approxSize = 0
	return nil
}

// verifyLocked reopens the file if the descriptor no longer points at the
// configured path, and corrects size drift from external writes.
func (w *RotatingWriter) verifyLocked() error {
	if w.f == nil {
		return w.openLocked()
	}

	fiPath, err := os.Lstat(w.path)
	if err != nil {
		return w.reopenLocked()
	}
	fiOpen, err := w.f.Stat()
	if err != nil {
		return w.reopenLocked()
	}
	if !os.SameFile(fiOpen, fiPath) {
		return w.reopenLocked()
	}

	if drift := fiOpen.Size() - w.approxSize; drift > 8*1024 || drift < -8*1024 {
		w.approxSize = fiOpen.Size()
	}
	return nil
}

func (w *RotatingWriter) reopenLocked() error {
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	return w.openLocked()
}
