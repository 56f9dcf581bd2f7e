// Package storage keeps uploaded resumes on the local filesystem.
package storage

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/sysu-ecnc-dev/campushb/backend/internal/utils"
)

var (
	ErrUnsupportedType = errors.New("only PDF, DOC and DOCX resumes are accepted")
	ErrFileTooLarge    = errors.New("resume file is too large")
	ErrForeignURL      = errors.New("url does not point into this storage")
)

// accepted maps an extension to the content types it may carry.
var accepted = map[string][]string{
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword", "application/x-ole-storage"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "application/zip"},
}

const sniffLength = 3072

type LocalStorage struct {
	basePath string
	baseURL  string
	maxSize  int64
}

func NewLocalStorage(basePath, baseURL string, maxSize int64) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", basePath, err)
	}

	return &LocalStorage{
		basePath: basePath,
		baseURL:  strings.TrimRight(baseURL, "/"),
		maxSize:  maxSize,
	}, nil
}

func (s *LocalStorage) checkType(ext string, header []byte) error {
	types, ok := accepted[ext]
	if !ok {
		return ErrUnsupportedType
	}

	detected := mimetype.Detect(header)
	for _, t := range types {
		if detected.Is(t) {
			return nil
		}
	}
	return ErrUnsupportedType
}

// SaveResume writes src under folder with a generated unique name and returns
// the URL it is served from.
func (s *LocalStorage) SaveResume(folder, filename string, src io.Reader) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))

	br := bufio.NewReaderSize(src, sniffLength)
	header, err := br.Peek(sniffLength)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read uploaded file: %w", err)
	}
	if err := s.checkType(ext, header); err != nil {
		return "", err
	}

	dir := filepath.Join(s.basePath, folder)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create subdirectory: %w", err)
	}

	stem := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name := uuid.New().String() + "-" + utils.Slugify(stem) + ext
	dstPath := filepath.Join(dir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, io.LimitReader(br, s.maxSize+1))
	if err == nil && n > s.maxSize {
		err = ErrFileTooLarge
	}
	if err != nil {
		_ = os.Remove(dstPath)
		return "", err
	}

	url := s.baseURL + "/" + folder + "/" + name
	slog.Info("resume saved", "filename", filename, "saved_as", dstPath, "size", n)
	return url, nil
}

// RemoveResume deletes a file previously returned by SaveResume.
func (s *LocalStorage) RemoveResume(url string) error {
	rel, ok := strings.CutPrefix(url, s.baseURL+"/")
	if !ok {
		return ErrForeignURL
	}

	path := filepath.Join(s.basePath, filepath.FromSlash(rel))
	if !strings.HasPrefix(path, filepath.Clean(s.basePath)+string(filepath.Separator)) {
		return ErrForeignURL
	}

	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}

	slog.Info("resume removed", "path", path)
	return nil
}
