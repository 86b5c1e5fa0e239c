// Package upload validates incoming files and drives the upload progress
// indicator.
package upload

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DefaultMaxBytes is the upload ceiling when none is configured
const DefaultMaxBytes int64 = 10 << 20

// sniffLen is how much of the file content type detection looks at
const sniffLen = 3072

var (
	ErrEmptyFile      = errors.New("file is empty")
	ErrMissingName    = errors.New("file name is required")
	ErrFileTooLarge   = errors.New("file exceeds the upload size limit")
	ErrDisallowedType = errors.New("only CSV files are accepted")
)

var csvTypes = []string{"text/csv", "text/plain", "text/tab-separated-values"}

// Policy decides which files may be uploaded
type Policy struct {
	MaxBytes int64
	CSVOnly  bool
}

// DefaultPolicy accepts CSV files up to DefaultMaxBytes
func DefaultPolicy() Policy {
	return Policy{MaxBytes: DefaultMaxBytes, CSVOnly: true}
}

// Check validates name, size and the leading bytes of the content
func (p Policy) Check(name string, size int64, head []byte) error {
	if strings.TrimSpace(name) == "" {
		return ErrMissingName
	}
	if size <= 0 {
		return ErrEmptyFile
	}
	if p.MaxBytes > 0 && size > p.MaxBytes {
		return fmt.Errorf("%w: %d bytes (limit %d)", ErrFileTooLarge, size, p.MaxBytes)
	}
	if !p.CSVOnly {
		return nil
	}
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return fmt.Errorf("%w: %s", ErrDisallowedType, name)
	}
	detected := mimetype.Detect(head)
	for _, t := range csvTypes {
		if detected.Is(t) {
			return nil
		}
	}
	return fmt.Errorf("%w: detected %s", ErrDisallowedType, detected.String())
}

// Sniff reads the leading bytes used for content type detection
func Sniff(r io.Reader) ([]byte, error) {
	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	return head[:n], nil
}
