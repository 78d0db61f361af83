package relfs

import (
	"io"
	"os"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	log "github.com/sirupsen/logrus"
)

// LocalFileSystem serves files from the local disk.
type LocalFileSystem struct{}

func walkDir(dir string, match func(path string) bool) []FileInfo {
	files := make([]FileInfo, 0)
	filepath.Walk(dir, func(path string, f os.FileInfo, err error) error {
		if err != nil {
			log.Error(err)
			return err
		}
		if f.IsDir() || !match(path) {
			return nil
		}
		files = append(files, FileInfo{
			Name: path,
			Size: f.Size(),
		})
		return nil
	})

	return files
}

// ListFiles returns files matching pathGlob. Patterns support doublestar
// globs, so "corpus/**/*.txt" matches recursively. A path naming a
// directory lists every file below it.
func (l *LocalFileSystem) ListFiles(pathGlob string) ([]FileInfo, error) {
	if !hasGlobMeta(pathGlob) {
		fInfo, err := os.Stat(pathGlob)
		if err != nil {
			return nil, err
		}
		if fInfo.IsDir() {
			return walkDir(pathGlob, func(string) bool { return true }), nil
		}
		return []FileInfo{{Name: pathGlob, Size: fInfo.Size()}}, nil
	}

	baseDir := globPrefix(pathGlob, string(os.PathSeparator))
	if baseDir == "" {
		baseDir = "."
	}

	files := walkDir(baseDir, func(path string) bool {
		matched, err := doublestar.PathMatch(pathGlob, path)
		if err != nil {
			log.Errorf("Invalid glob pattern %q: %s", pathGlob, err)
			return false
		}
		return matched
	})
	return files, nil
}

// OpenReader opens filePath for reading, positioned startAt bytes in.
func (l *LocalFileSystem) OpenReader(filePath string, startAt int64) (io.ReadCloser, error) {
	file, err := os.OpenFile(filePath, os.O_RDONLY, 0600)
	if err != nil {
		return nil, err
	}
	_, err = file.Seek(startAt, io.SeekStart)
	return file, err
}

// OpenWriter opens filePath for writing, creating intermediate
// directories as needed.
func (l *LocalFileSystem) OpenWriter(filePath string) (io.WriteCloser, error) {
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(filePath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
}

// Stat returns the name and size of filePath.
func (l *LocalFileSystem) Stat(filePath string) (FileInfo, error) {
	fInfo, err := os.Stat(filePath)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{
		Name: filePath,
		Size: fInfo.Size(),
	}, nil
}

// Delete removes filePath.
func (l *LocalFileSystem) Delete(filePath string) error {
	return os.Remove(filePath)
}

// Join joins path elements with the platform separator.
func (l *LocalFileSystem) Join(elem ...string) string {
	return filepath.Join(elem...)
}

// Init is a no-op for the local filesystem.
func (l *LocalFileSystem) Init() error {
	return nil
}
