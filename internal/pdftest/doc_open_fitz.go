package pdftest

import (
	"fmt"

	fitz "github.com/gen2brain/go-fitz"
)

// fitzOpener reads finished reports with MuPDF through go-fitz.
type fitzOpener struct{}

func (fitzOpener) Open(path string) (Doc, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, err
	}
	return fitzDoc{doc}, nil
}

func init() {
	setDefaultOpener(fitzOpener{})
}

type fitzDoc struct{ *fitz.Document }

// Page extracts the whole text of page i eagerly; MuPDF has no page handle
// worth keeping open.
func (d fitzDoc) Page(i int) (Page, error) {
	text, err := d.Document.Text(i)
	if err != nil {
		return nil, fmt.Errorf("page %d text: %w", i+1, err)
	}
	return extracted(text), nil
}

type extracted string

func (p extracted) Text() (string, error) { return string(p), nil }
func (extracted) Close()                  {}
