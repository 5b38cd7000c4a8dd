package services

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"
)

const xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// sniffLen is how much of an upload is inspected to tell text from binary
const sniffLen = 512

// uploadFormat is one accepted statement file format
type uploadFormat struct {
	kind      string
	ext       string
	mimeTypes []string
	sniff     func(head []byte) bool
}

// Formats are tried in order; CSV has no signature so it goes last.
var uploadFormats = []uploadFormat{
	{
		kind:      "XLSX",
		ext:       ".xlsx",
		mimeTypes: []string{xlsxMimeType},
		sniff:     func(head []byte) bool { return bytes.HasPrefix(head, []byte{0x50, 0x4B, 0x03, 0x04}) },
	},
	{
		kind: "CSV",
		ext:  ".csv",
		// Some browsers label CSV files as vnd.ms-excel
		mimeTypes: []string{"text/csv", "application/vnd.ms-excel"},
		sniff:     looksLikeText,
	},
}

// Upload is a statement file accepted by FileValidator
type Upload struct {
	Kind        string // "CSV" or "XLSX"
	ContentType string
	Data        []byte
}

// Size is the number of bytes read
func (u *Upload) Size() int64 { return int64(len(u.Data)) }

// RejectedUploadError lists every reason an upload was refused
type RejectedUploadError struct {
	Problems []string
}

func (e *RejectedUploadError) Error() string {
	return "file validation failed: " + strings.Join(e.Problems, "; ")
}

// FileValidator screens uploaded statements before they are decoded
type FileValidator struct {
	maxSizeBytes int64
}

// NewFileValidator creates a validator refusing files above maxSizeBytes
func NewFileValidator(maxSizeBytes int64) *FileValidator {
	return &FileValidator{maxSizeBytes: maxSizeBytes}
}

// Accept reads an upload and checks its name, declared content type, size
// and content signature. Refusals are returned as *RejectedUploadError
// carrying all problems found; other errors come from reading r.
func (v *FileValidator) Accept(r io.Reader, filename, contentType string) (*Upload, error) {
	// One byte past the limit is enough to tell an oversized file
	data, err := io.ReadAll(io.LimitReader(r, v.maxSizeBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var problems []string
	reject := func(err error) {
		if err != nil {
			problems = append(problems, err.Error())
		}
	}

	reject(checkFilename(filename))
	reject(checkContentType(contentType))
	reject(v.checkSize(int64(len(data))))

	format, err := sniffFormat(data)
	if err == nil {
		if contentType != "" && !format.accepts(contentType) {
			problems = append(problems, "MIME type does not match file content")
		}
		if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && ext != format.ext {
			problems = append(problems, "file extension does not match file content")
		}
	} else if len(data) > 0 {
		reject(err)
	}

	if len(problems) > 0 {
		return nil, &RejectedUploadError{Problems: problems}
	}
	return &Upload{Kind: format.kind, ContentType: contentType, Data: data}, nil
}

func (f uploadFormat) accepts(contentType string) bool {
	for _, m := range f.mimeTypes {
		if m == contentType {
			return true
		}
	}
	return false
}

func checkFilename(filename string) error {
	switch {
	case filename == "":
		return errors.New("filename cannot be empty")
	case strings.Contains(filename, ".."):
		return errors.New("filename contains path traversal")
	case strings.ContainsRune(filename, 0):
		return errors.New("filename contains null bytes")
	case strings.HasPrefix(filename, "/") || strings.HasPrefix(filename, "\\"):
		return errors.New("filename cannot be absolute path")
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return errors.New("filename must have an extension")
	}
	for _, f := range uploadFormats {
		if f.ext == ext {
			return nil
		}
	}
	return fmt.Errorf("unsupported file extension: %s", ext)
}

func checkContentType(contentType string) error {
	if contentType == "" {
		return errors.New("MIME type cannot be empty")
	}
	for _, f := range uploadFormats {
		if f.accepts(contentType) {
			return nil
		}
	}
	return fmt.Errorf("unsupported MIME type: %s", contentType)
}

func (v *FileValidator) checkSize(size int64) error {
	if size == 0 {
		return errors.New("empty file")
	}
	if size > v.maxSizeBytes {
		return fmt.Errorf("file size exceeds maximum allowed size (%d bytes)", v.maxSizeBytes)
	}
	return nil
}

// sniffFormat detects the upload format from its leading bytes
func sniffFormat(data []byte) (uploadFormat, error) {
	if len(data) == 0 {
		return uploadFormat{}, errors.New("empty file")
	}
	head := data
	if len(head) > sniffLen {
		head = head[:sniffLen]
	}
	for _, f := range uploadFormats {
		if f.sniff(head) {
			return f, nil
		}
	}
	return uploadFormat{}, errors.New("unsupported file type based on content")
}

// looksLikeText reports whether head is UTF-8 text made of printable
// characters and line whitespace.
func looksLikeText(head []byte) bool {
	// A multibyte rune may be cut at the sniff boundary
	for i := 0; i < utf8.UTFMax && len(head) > 0 && !utf8.Valid(head); i++ {
		head = head[:len(head)-1]
	}
	if len(head) == 0 || !utf8.Valid(head) {
		return false
	}

	total, printable := 0, 0
	for _, r := range string(head) {
		total++
		if r == 0 {
			return false
		}
		if unicode.IsPrint(r) || r == '\t' || r == '\n' || r == '\r' {
			printable++
		}
	}
	return float64(printable)/float64(total) > 0.95
}
