package docx

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/beevik/etree"
)

const (
	documentPart = "word/document.xml"
	wordNS       = "http://schemas.openxmlformats.org/wordprocessingml/2006/main"
)

// ErrNotDocx is returned when the package has no main document part.
var ErrNotDocx = errors.New("not a docx package: word/document.xml missing")

// Document is an opened .docx package with its main part parsed into a DOM.
// All other parts are carried through unchanged on save.
type Document struct {
	files []*zip.File
	xml   *etree.Document
	body  *etree.Element
}

// Open reads and parses the .docx at path.
func Open(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}
	return Parse(data)
}

// Parse parses an in-memory .docx package.
func Parse(data []byte) (*Document, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx zip: %w", err)
	}

	var main *zip.File
	for _, f := range zr.File {
		if f.Name == documentPart {
			main = f
			break
		}
	}
	if main == nil {
		return nil, ErrNotDocx
	}

	rc, err := main.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", documentPart, err)
	}
	raw, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", documentPart, err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", documentPart, err)
	}
	body := doc.FindElement("//w:body")
	if body == nil {
		return nil, fmt.Errorf("%s has no w:body", documentPart)
	}

	return &Document{files: zr.File, xml: doc, body: body}, nil
}

// Body returns the w:body element.
func (d *Document) Body() *etree.Element { return d.body }

// Write writes the package to w, re-serializing the main part.
func (d *Document) Write(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, f := range d.files {
		if f.Name != documentPart {
			if err := zw.Copy(f); err != nil {
				return fmt.Errorf("copy %s: %w", f.Name, err)
			}
			continue
		}
		out, err := zw.CreateHeader(&zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: f.Modified,
		})
		if err != nil {
			return fmt.Errorf("create %s: %w", f.Name, err)
		}
		if _, err := d.xml.WriteTo(out); err != nil {
			return fmt.Errorf("write %s: %w", f.Name, err)
		}
	}
	return zw.Close()
}

// Save writes the package to path.
func (d *Document) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create docx dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create docx: %w", err)
	}
	if err := d.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
