package filesvc

import (
	"bytes"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/nbkrcse/labtrack/core"
)

// URLPrefix is the path under which the API serves stored files.
const URLPrefix = "/v1/files/"

var (
	// errors
	ErrNotPDF      = errors.New("only PDF files are accepted")
	ErrTooLarge    = errors.New("file is too large")
	ErrEmptyFile   = errors.New("file is empty")
	ErrInvalidName = errors.New("invalid file name")
)

// DiskStore keeps submitted PDFs in a single directory.
type DiskStore struct {
	dir     string
	maxSize int64
}

func NewDiskStore(conf *core.Config) (*DiskStore, error) {
	if err := os.MkdirAll(conf.Lab.UploadDir, 0o750); err != nil {
		return nil, errors.Wrap(err, "creating upload dir")
	}
	return &DiskStore{dir: conf.Lab.UploadDir, maxSize: conf.Lab.MaxUploadSize}, nil
}

// SavePDF stores the content of r under a generated name and returns that name and its URL.
func (s *DiskStore) SavePDF(r io.Reader) (name, url string, err error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(r, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", "", errors.Wrap(err, "reading upload")
	}
	head = head[:n]
	if n == 0 {
		return "", "", fileError(ErrEmptyFile)
	}
	if http.DetectContentType(head) != "application/pdf" {
		return "", "", fileError(ErrNotPDF)
	}

	name = uuid.New().String() + ".pdf"
	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return "", "", errors.Wrap(err, "creating temp file")
	}
	defer func() {
		_ = tmp.Close()
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	// one byte over the limit is enough to tell the upload is too large
	src := io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxSize+1)
	written, err := io.Copy(tmp, src)
	if err != nil {
		return "", "", errors.Wrap(err, "writing upload")
	}
	if written > s.maxSize {
		return "", "", fileError(ErrTooLarge)
	}
	if err = tmp.Close(); err != nil {
		return "", "", errors.Wrap(err, "closing upload")
	}
	if err = os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return "", "", errors.Wrap(err, "storing upload")
	}
	return name, URLPrefix + name, nil
}

// Open returns the stored file called name. Names that could escape the upload directory are rejected.
func (s *DiskStore) Open(name string) (*os.File, error) {
	if !validName(name) {
		return nil, fileError(ErrInvalidName)
	}
	f, err := os.Open(filepath.Join(s.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, core.NewNotFoundError("file", name)
		}
		return nil, errors.Wrap(err, "opening file")
	}
	return f, nil
}

// Remove deletes the stored file called name. Removing a missing file is not an error.
func (s *DiskStore) Remove(name string) error {
	if !validName(name) {
		return fileError(ErrInvalidName)
	}
	if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing file")
	}
	return nil
}

// NameFromURL returns the stored file name referenced by url, or "" if url is not a stored file URL.
func NameFromURL(url string) string {
	name := strings.TrimPrefix(url, URLPrefix)
	if name == url || !validName(name) {
		return ""
	}
	return name
}

func validName(name string) bool {
	return name != "" &&
		name == filepath.Base(name) &&
		!strings.HasPrefix(name, ".") &&
		!strings.ContainsAny(name, `/\`)
}

func fileError(err error) error {
	return core.NewValidationError(err, core.FieldError{Field: "file", Error: err.Error()})
}
