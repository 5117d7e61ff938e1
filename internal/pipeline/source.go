package pipeline

import (
	"context"
	"fmt"
	"io"
	"os"
)

// FileSource replays image files as frames, one per Next call.
type FileSource struct {
	paths []string
	pos   int
}

func NewFileSource(paths ...string) *FileSource {
	return &FileSource{paths: paths}
}

func (s *FileSource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.paths) {
		return nil, io.EOF
	}
	path := s.paths[s.pos]
	s.pos++

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read frame %s: %w", path, err)
	}
	return data, nil
}

func (s *FileSource) Close() error { return nil }

// MemorySource replays in-memory frames. Used by the HTTP API and tests.
type MemorySource struct {
	frames [][]byte
	pos    int
}

func NewMemorySource(frames ...[]byte) *MemorySource {
	return &MemorySource{frames: frames}
}

func (s *MemorySource) Next(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.frames) {
		return nil, io.EOF
	}
	frame := s.frames[s.pos]
	s.pos++
	return frame, nil
}

func (s *MemorySource) Close() error { return nil }
