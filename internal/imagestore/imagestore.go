package imagestore

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Store writes capture and enrollment images to the local filesystem.
// Auto-captures land in the temporary directory that the retention janitor
// sweeps; enrollment sources go to the permanent directory and are never
// swept. Records reference images by path only, so deleting an image never
// invalidates its record.
type Store struct {
	TempDir   string
	EnrollDir string
}

// New creates the store and its directories.
func New(tempDir, enrollDir string) (*Store, error) {
	for _, dir := range []string{tempDir, enrollDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create image dir %s: %w", dir, err)
		}
	}
	return &Store{TempDir: tempDir, EnrollDir: enrollDir}, nil
}

// StoreCapture saves an attendance capture image into the temporary area.
// purpose tags the filename (auto_time_in, manual_time_out, ...).
func (s *Store) StoreCapture(data []byte, personID int64, purpose string) (string, error) {
	name := fmt.Sprintf("%d_%s_%s.jpg", personID, purpose, uuid.NewString())
	path := filepath.Join(s.TempDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write capture image: %w", err)
	}
	return path, nil
}

// StoreEnrollment saves an accepted enrollment source image permanently.
func (s *Store) StoreEnrollment(data []byte, personID int64) (string, error) {
	dir := filepath.Join(s.EnrollDir, fmt.Sprintf("%d", personID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create enrollment dir: %w", err)
	}
	path := filepath.Join(dir, uuid.NewString()+".jpg")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write enrollment image: %w", err)
	}
	return path, nil
}

// ListCaptures returns the path of every image currently in the temporary
// capture area. A missing directory reads as empty.
func (s *Store) ListCaptures() ([]string, error) {
	entries, err := os.ReadDir(s.TempDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		paths = append(paths, filepath.Join(s.TempDir, entry.Name()))
	}
	return paths, nil
}

// Delete removes a stored image.
func (s *Store) Delete(path string) error {
	return os.Remove(path)
}

// Age returns how long ago the image at path was written.
func (s *Store) Age(path string) (time.Duration, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return time.Since(info.ModTime()), nil
}
