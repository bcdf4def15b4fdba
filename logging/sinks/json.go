package sinks

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"walnut-woods/server/logging"
)

// JSONSink appends newline-delimited JSON events to a file, flushing in
// batches to amortize I/O.
type JSONSink struct {
	mu      sync.Mutex
	file    *os.File
	writer  *bufio.Writer
	pending int
	cfg     logging.JSONConfig
	timer   *time.Timer
	closed  bool
}

func NewJSONSink(cfg logging.JSONConfig) (*JSONSink, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("json sink: file path required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, fmt.Errorf("json sink: create directory: %w", err)
	}
	file, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("json sink: open %s: %w", cfg.FilePath, err)
	}
	if cfg.MaxBatch <= 0 {
		cfg.MaxBatch = logging.DefaultConfig().JSON.MaxBatch
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = logging.DefaultConfig().JSON.FlushInterval
	}
	s := &JSONSink{
		file:   file,
		writer: bufio.NewWriter(file),
		cfg:    cfg,
	}
	return s, nil
}

func (s *JSONSink) Write(event logging.Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("json sink: marshal event: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("json sink: write event: %w", err)
	}
	s.pending++
	if s.pending >= s.cfg.MaxBatch {
		return s.flushLocked()
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.cfg.FlushInterval, s.flushTimer)
	}
	return nil
}

func (s *JSONSink) flushTimer() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	_ = s.flushLocked()
}

func (s *JSONSink) flushLocked() error {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.pending = 0
	if err := s.writer.Flush(); err != nil {
		return fmt.Errorf("json sink: flush: %w", err)
	}
	return nil
}

func (s *JSONSink) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if err := s.writer.Flush(); err != nil {
		s.file.Close()
		return fmt.Errorf("json sink: final flush: %w", err)
	}
	return s.file.Close()
}
