package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// errorScreenshotTimeout bounds the diagnostic screenshot after a failure.
	errorScreenshotTimeout = 10 * time.Second

	// devServerLogTail is how many bytes of the dev server log are kept.
	devServerLogTail = 4 << 10

	// artifactDirPerm and artifactFilePerm are used for written screenshots.
	artifactDirPerm  = 0o755
	artifactFilePerm = 0o644
)

// resolvePath joins relative paths onto dir.
func resolvePath(dir, path string) string {
	if dir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(dir, path)
}

// writeArtifact writes data to path below dir, creating parent directories
// and overwriting an existing file. It returns the path written.
func writeArtifact(dir, path string, data []byte) (string, error) {
	full := resolvePath(dir, path)
	if parent := filepath.Dir(full); parent != "." {
		if err := os.MkdirAll(parent, artifactDirPerm); err != nil {
			return full, fmt.Errorf("create directory %s: %w", parent, err)
		}
	}
	if err := os.WriteFile(full, data, artifactFilePerm); err != nil {
		return full, fmt.Errorf("write %s: %w", full, err)
	}
	return full, nil
}

// readTail returns up to n trailing bytes of the file at path, starting at a
// line boundary when the file was truncated.
func readTail(path string, n int64) (string, error) {
	f, err := os.Open(path) //nolint:gosec // path comes from the scenario configuration
	if err != nil {
		return "", err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", err
	}

	offset := int64(0)
	if info.Size() > n {
		offset = info.Size() - n
	}
	if _, err := f.Seek(offset, io.SeekStart); err != nil {
		return "", err
	}

	data, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}

	tail := string(data)
	if offset > 0 {
		if i := strings.IndexByte(tail, '\n'); i >= 0 {
			tail = tail[i+1:]
		}
	}
	return strings.TrimRight(tail, "\n"), nil
}
