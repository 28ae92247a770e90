package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	logMsgSaved     = "blobstore: image saved"
	logMsgRejected  = "blobstore: image rejected"
	logAttrRef      = "ref"
	logAttrSize     = "size"
	logAttrLimit    = "limit"
	logAttrFilename = "filename"
	tempPattern     = ".upload-*"
	defaultDirPerm  = 0o755
	sniffLen        = 512
)

var (
	ErrInvalidRef      = errors.New("invalid image ref")
	ErrBlobNotFound    = errors.New("image not found")
	ErrUnsupportedType = errors.New("unsupported image type")
	ErrTooLarge        = errors.New("image too large")
	ErrWritingFailed   = errors.New("writing image failed")
	ErrDeletingFailed  = errors.New("deleting image failed")
)

// AllowedExtensions are the accepted image file extensions.
var AllowedExtensions = []string{"png", "jpg", "jpeg", "gif"}

// sniffedTypes maps each allowed extension to the content type its bytes must sniff as.
var sniffedTypes = map[string]string{
	"png":  "image/png",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"gif":  "image/gif",
}

// FileStore stores images as files in one directory.
type FileStore struct {
	dir    string
	logger lending.Logger
}

// FileStoreOption configures a FileStore.
type FileStoreOption func(*FileStore)

// WithFileStoreLogger sets the logger.
func WithFileStoreLogger(logger lending.Logger) FileStoreOption {
	return func(s *FileStore) {
		s.logger = logger
	}
}

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, opts ...FileStoreOption) (*FileStore, error) {
	if err := os.MkdirAll(dir, defaultDirPerm); err != nil {
		return nil, errors.Join(ErrWritingFailed, err)
	}

	s := &FileStore{dir: dir}
	for _, opt := range opts {
		opt(s)
	}

	return s, nil
}

// ExtensionOf returns the lower-cased extension of filename if it is an allowed image type.
func ExtensionOf(filename string) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))

	for _, allowed := range AllowedExtensions {
		if ext == allowed {
			return ext, nil
		}
	}

	return "", ErrUnsupportedType
}

// Save writes at most maxBytes from r under a newly generated ref that keeps the extension of filename.
// The content must sniff as the image type the extension names. Nothing is left behind when it fails.
func (s *FileStore) Save(ctx context.Context, r io.Reader, filename string, maxBytes int64) (string, error) {
	ext, err := ExtensionOf(filename)
	if err != nil {
		s.logRejected(filename, 0, maxBytes)
		return "", err
	}

	head := make([]byte, sniffLen)

	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", errors.Join(ErrWritingFailed, err)
	}

	head = head[:n]

	tmp, err := os.CreateTemp(s.dir, tempPattern)
	if err != nil {
		return "", errors.Join(ErrWritingFailed, err)
	}

	tmpName := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
	}

	written, err := io.Copy(tmp, io.LimitReader(io.MultiReader(bytes.NewReader(head), r), maxBytes+1))
	if err != nil {
		cleanup()
		return "", errors.Join(ErrWritingFailed, err)
	}

	if written > maxBytes {
		cleanup()
		s.logRejected(filename, written, maxBytes)

		return "", ErrTooLarge
	}

	if http.DetectContentType(head) != sniffedTypes[ext] {
		cleanup()
		s.logRejected(filename, written, maxBytes)

		return "", ErrUnsupportedType
	}

	if err = ctx.Err(); err != nil {
		cleanup()
		return "", err
	}

	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.Join(ErrWritingFailed, err)
	}

	ref := uuid.NewString() + "." + ext

	if err = os.Rename(tmpName, s.path(ref)); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.Join(ErrWritingFailed, err)
	}

	if s.logger != nil {
		s.logger.Debug(logMsgSaved, logAttrRef, ref, logAttrSize, humanize.Bytes(uint64(written))) //nolint:gosec
	}

	return ref, nil
}

// Open opens the image for reading.
func (s *FileStore) Open(ref string) (*os.File, error) {
	if err := ValidateRef(ref); err != nil {
		return nil, err
	}

	f, err := os.Open(s.path(ref))
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrBlobNotFound
	}

	return f, err
}

// Delete removes the image.
func (s *FileStore) Delete(ref string) error {
	if err := ValidateRef(ref); err != nil {
		return err
	}

	err := os.Remove(s.path(ref))

	switch {
	case errors.Is(err, os.ErrNotExist):
		return ErrBlobNotFound
	case err != nil:
		return errors.Join(ErrDeletingFailed, err)
	}

	return nil
}

// ValidateRef accepts only refs generated by Save, which keeps lookups inside the store directory.
func ValidateRef(ref string) error {
	base, ext, found := strings.Cut(ref, ".")
	if !found {
		return ErrInvalidRef
	}

	if _, err := uuid.Parse(base); err != nil || len(base) != 36 {
		return ErrInvalidRef
	}

	if _, err := ExtensionOf(ref); err != nil || ext != strings.ToLower(ext) {
		return ErrInvalidRef
	}

	return nil
}

// ContentType returns the MIME type for a ref.
func ContentType(ref string) string {
	if ct := mime.TypeByExtension(filepath.Ext(ref)); ct != "" {
		return ct
	}

	return "application/octet-stream"
}

func (s *FileStore) path(ref string) string {
	return filepath.Join(s.dir, ref)
}

func (s *FileStore) logRejected(filename string, size int64, limit int64) {
	if s.logger == nil {
		return
	}

	s.logger.Info(logMsgRejected,
		logAttrFilename, filename,
		logAttrSize, humanize.Bytes(uint64(size)),  //nolint:gosec
		logAttrLimit, humanize.Bytes(uint64(limit)), //nolint:gosec
	)
}
