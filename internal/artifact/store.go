// Package artifact stores uploaded clips and generated reaction audio on local disk.
package artifact

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrNotFound    = errors.New("artifact not found")
	ErrInvalidName = errors.New("invalid artifact name")
)

var validName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// Store owns the upload and reaction directories. Files are never deleted.
type Store struct {
	uploadDir    string
	reactionsDir string
}

// NewStore creates both directories if needed.
func NewStore(uploadDir, reactionsDir string) (*Store, error) {
	for _, dir := range []string{uploadDir, reactionsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return &Store{uploadDir: uploadDir, reactionsDir: reactionsDir}, nil
}

// ReactionName is the artifact file name for a job.
func ReactionName(jobID uuid.UUID) string {
	return fmt.Sprintf("audience_reaction_%s.mp3", jobID)
}

// ReactionURL is the relative download URL for an artifact name.
func ReactionURL(name string) string {
	return "/reactions/" + name
}

// SaveUpload writes an uploaded clip as <jobID>_<base name> and returns its path.
func (s *Store) SaveUpload(jobID uuid.UUID, filename string, r io.Reader) (string, error) {
	base := sanitize(filepath.Base(filename))
	path := filepath.Join(s.uploadDir, fmt.Sprintf("%s_%s", jobID, base))
	if err := writeAtomic(path, r); err != nil {
		return "", fmt.Errorf("save upload: %w", err)
	}
	return path, nil
}

// SaveReaction writes the synthesized audio for jobID and returns the artifact name.
// On error no file is left behind.
func (s *Store) SaveReaction(jobID uuid.UUID, r io.Reader) (string, error) {
	name := ReactionName(jobID)
	if err := writeAtomic(filepath.Join(s.reactionsDir, name), r); err != nil {
		return "", fmt.Errorf("save reaction: %w", err)
	}
	return name, nil
}

// OpenReaction opens a stored artifact by name for reading.
func (s *Store) OpenReaction(name string) (*os.File, error) {
	if !validName.MatchString(name) || strings.Contains(name, "..") {
		return nil, ErrInvalidName
	}
	f, err := os.Open(filepath.Join(s.reactionsDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("open reaction: %w", err)
	}
	return f, nil
}

// writeAtomic copies r to a temp file next to path and renames it into place.
func writeAtomic(path string, r io.Reader) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".partial-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

func sanitize(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
