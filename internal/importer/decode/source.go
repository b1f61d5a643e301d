package decode

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
)

// Source is an uploaded file: a name carrying the extension, a declared size
// and a way to read its content. Open is not called for files that fail the
// extension or size checks.
type Source interface {
	Name() string
	Size() int64
	Open() (io.ReadCloser, error)
}

// FileSource reads from a path on disk.
type FileSource struct {
	Path string
	size int64
}

// NewFileSource stats path and returns a Source for it.
func NewFileSource(path string) (*FileSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{Path: path, size: info.Size()}, nil
}

func (s *FileSource) Name() string { return filepath.Base(s.Path) }
func (s *FileSource) Size() int64  { return s.size }
func (s *FileSource) Open() (io.ReadCloser, error) {
	return os.Open(s.Path)
}

// BytesSource serves in-memory content.
type BytesSource struct {
	FileName string
	Data     []byte
}

func (s BytesSource) Name() string { return s.FileName }
func (s BytesSource) Size() int64  { return int64(len(s.Data)) }
func (s BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(s.Data)), nil
}

// MultipartSource adapts an HTTP form upload.
type MultipartSource struct {
	Header *multipart.FileHeader
}

func (s MultipartSource) Name() string { return s.Header.Filename }
func (s MultipartSource) Size() int64  { return s.Header.Size }
func (s MultipartSource) Open() (io.ReadCloser, error) {
	return s.Header.Open()
}
