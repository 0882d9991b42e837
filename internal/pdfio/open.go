// Package pdfio reads and writes PDF documents at the file boundary.
// Reading pulls a document's existing annotations into the engine's model;
// writing produces an annotated copy whose page content streams are
// untouched, so plain viewers still show the original pages.
package pdfio

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/mgmeyers/unipdf/v3/model"
)

// OpenErrorKind classifies why a document could not be opened.
type OpenErrorKind int

const (
	NotFound OpenErrorKind = iota
	NotAPDF
	Encrypted
	Corrupt
)

func (k OpenErrorKind) String() string {
	switch k {
	case NotFound:
		return "not found"
	case NotAPDF:
		return "not a PDF"
	case Encrypted:
		return "encrypted"
	default:
		return "corrupt"
	}
}

// OpenError reports a failed open with its classification.
type OpenError struct {
	Kind OpenErrorKind
	Path string
	Err  error
}

func (e *OpenError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("open %s: %s: %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("open %s: %s", e.Path, e.Kind)
}

func (e *OpenError) Unwrap() error { return e.Err }

// Document is an open PDF.
type Document struct {
	Path   string
	Hash   string
	Pages  int
	reader *model.PdfReader
	file   *os.File
}

var pdfHeader = []byte("%PDF-")

// headerWindow bounds the search for the header marker; the format allows
// junk bytes before %PDF- as long as it appears in the first kilobyte.
const headerWindow = 1024

func hasPDFHeader(prefix []byte) bool {
	return bytes.Contains(prefix, pdfHeader)
}

// Open opens and validates a PDF. Encrypted documents are tried with the
// empty user password before being rejected.
func Open(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &OpenError{Kind: NotFound, Path: path, Err: err}
		}
		return nil, &OpenError{Kind: Corrupt, Path: path, Err: err}
	}

	prefix := make([]byte, headerWindow)
	n, _ := io.ReadFull(f, prefix)
	if !hasPDFHeader(prefix[:n]) {
		f.Close()
		return nil, &OpenError{Kind: NotAPDF, Path: path}
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, &OpenError{Kind: Corrupt, Path: path, Err: err}
	}

	reader, err := model.NewPdfReader(io.ReadSeeker(f))
	if err != nil {
		f.Close()
		return nil, &OpenError{Kind: Corrupt, Path: path, Err: err}
	}

	encrypted, err := reader.IsEncrypted()
	if err != nil {
		f.Close()
		return nil, &OpenError{Kind: Corrupt, Path: path, Err: err}
	}
	if encrypted {
		ok, err := reader.Decrypt([]byte(""))
		if err != nil || !ok {
			f.Close()
			return nil, &OpenError{Kind: Encrypted, Path: path, Err: err}
		}
	}

	pages, err := reader.GetNumPages()
	if err != nil {
		f.Close()
		return nil, &OpenError{Kind: Corrupt, Path: path, Err: err}
	}

	hash, err := FileHash(path)
	if err != nil {
		f.Close()
		return nil, &OpenError{Kind: Corrupt, Path: path, Err: err}
	}

	return &Document{
		Path:   path,
		Hash:   hash,
		Pages:  pages,
		reader: reader,
		file:   f,
	}, nil
}

// Close releases the underlying file.
func (d *Document) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// PageSize returns the media box size of a page in PDF points, corrected
// for the page's own /Rotate entry.
func (d *Document) PageSize(pageIndex int) (w, h float64, err error) {
	page, err := d.reader.GetPage(pageIndex + 1)
	if err != nil {
		return 0, 0, fmt.Errorf("page %d: %w", pageIndex, err)
	}

	w = page.MediaBox.Width()
	h = page.MediaBox.Height()
	if page.Rotate != nil && (*page.Rotate == 90 || *page.Rotate == 270) {
		w, h = h, w
	}
	return w, h, nil
}

// FileHash returns the sha256 of the file contents, used as the document's
// stable identity in the library.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
