// Package loader reads the source material of the document and image
// operators from disk.
package loader

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/errors/oserror"
	"github.com/ledongthuc/pdf"
)

// ErrUnsupported marks documents whose extension no loader handles.
var ErrUnsupported = errors.New("unsupported document type")

// LoadDocument extracts the text of a .txt, .md, .html or .pdf file.
func LoadDocument(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if oserror.IsNotExist(err) {
			return "", errors.Wrapf(err, "document not found: %s", path)
		}
		return "", errors.Wrapf(err, "stat %s", path)
	}
	if info.IsDir() {
		return "", errors.Newf("%s is a directory", path)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md":
		b, err := os.ReadFile(path)
		if err != nil {
			return "", errors.Wrapf(err, "reading %s", path)
		}
		return string(b), nil
	case ".html", ".htm":
		f, err := os.Open(path)
		if err != nil {
			return "", errors.Wrapf(err, "opening %s", path)
		}
		defer f.Close()
		return HTMLText(f)
	case ".pdf":
		return loadPDF(path)
	default:
		return "", errors.Mark(errors.Newf("%s: %q", path, ext), ErrUnsupported)
	}
}

func loadPDF(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening pdf %s", path)
	}
	defer f.Close()

	text, err := r.GetPlainText()
	if err != nil {
		return "", errors.Wrapf(err, "extracting text from %s", path)
	}
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(text); err != nil {
		return "", errors.Wrapf(err, "reading text of %s", path)
	}
	return buf.String(), nil
}
