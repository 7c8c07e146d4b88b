package pdfcheck

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// Inspector opens a PDF locally and reports its page count, so that files
// the backend would reject are caught before upload.
type Inspector struct{}

func New() *Inspector {
	return &Inspector{}
}

func (i *Inspector) PageCount(path string) (pages int, err error) {
	// The parser panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			pages = 0
			err = fmt.Errorf("parse pdf %s: %v", path, r)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	return reader.NumPage(), nil
}
