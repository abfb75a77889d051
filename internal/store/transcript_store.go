package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// MaxTranscriptSize caps a single agent transcript on disk.
	MaxTranscriptSize = 4 * 1024 * 1024
)

var (
	ErrTranscriptNotFound      = errors.New("transcript not found")
	ErrTranscriptTooLarge      = errors.New("transcript exceeds maximum size")
	ErrInvalidTranscriptPath   = errors.New("invalid transcript path")
	ErrTranscriptPathTraversal = errors.New("path traversal not allowed")
)

// TranscriptRef locates a stored agent transcript.
type TranscriptRef struct {
	Path      string    `json:"path"`
	SHA256    string    `json:"sha256"`
	Size      int       `json:"size"`
	WrittenAt time.Time `json:"written_at"`
}

// TranscriptStore persists debug transcripts of agent runs.
type TranscriptStore interface {
	Write(ctx context.Context, projectID uuid.UUID, runID int64, content []byte) (TranscriptRef, error)
	Read(ctx context.Context, ref TranscriptRef) ([]byte, error)
}

// LocalTranscriptStore keeps transcripts under rootDir/project_<id>/run_<id>.json.
type LocalTranscriptStore struct {
	rootDir string
}

func NewLocalTranscriptStore(rootDir string) (*LocalTranscriptStore, error) {
	if rootDir == "" {
		return nil, fmt.Errorf("transcript root directory is required")
	}
	if err := os.MkdirAll(rootDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating transcript root directory: %w", err)
	}
	return &LocalTranscriptStore{rootDir: rootDir}, nil
}

func (s *LocalTranscriptStore) Write(ctx context.Context, projectID uuid.UUID, runID int64, content []byte) (TranscriptRef, error) {
	if len(content) == 0 {
		return TranscriptRef{}, fmt.Errorf("transcript content cannot be empty")
	}
	if len(content) > MaxTranscriptSize {
		return TranscriptRef{}, ErrTranscriptTooLarge
	}

	dirName := "project_" + projectID.String()
	relPath := filepath.Join(dirName, fmt.Sprintf("run_%d.json", runID))

	if err := os.MkdirAll(filepath.Join(s.rootDir, dirName), 0o755); err != nil {
		return TranscriptRef{}, fmt.Errorf("creating transcript directory: %w", err)
	}

	// write-then-rename so readers never see a partial file
	fullPath := filepath.Join(s.rootDir, relPath)
	tmpPath := fullPath + ".tmp"
	if err := os.WriteFile(tmpPath, content, 0o644); err != nil {
		return TranscriptRef{}, fmt.Errorf("writing temp transcript: %w", err)
	}
	if err := os.Rename(tmpPath, fullPath); err != nil {
		_ = os.Remove(tmpPath)
		return TranscriptRef{}, fmt.Errorf("renaming transcript: %w", err)
	}

	return TranscriptRef{
		Path:      relPath,
		SHA256:    sha256Hex(content),
		Size:      len(content),
		WrittenAt: time.Now().UTC(),
	}, nil
}

func (s *LocalTranscriptStore) Read(ctx context.Context, ref TranscriptRef) ([]byte, error) {
	if err := validateRelPath(ref.Path); err != nil {
		return nil, err
	}

	content, err := os.ReadFile(filepath.Join(s.rootDir, ref.Path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTranscriptNotFound
		}
		return nil, fmt.Errorf("reading transcript: %w", err)
	}

	if ref.SHA256 != "" {
		if actual := sha256Hex(content); actual != ref.SHA256 {
			return nil, fmt.Errorf("transcript hash mismatch: expected %s, got %s", ref.SHA256, actual)
		}
	}
	return content, nil
}

func validateRelPath(path string) error {
	if path == "" {
		return ErrInvalidTranscriptPath
	}
	if strings.Contains(path, "..") || filepath.IsAbs(path) {
		return ErrTranscriptPathTraversal
	}
	return nil
}

func sha256Hex(content []byte) string {
	h := sha256.Sum256(content)
	return hex.EncodeToString(h[:])
}
