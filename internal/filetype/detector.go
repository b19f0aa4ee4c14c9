package filetype

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// MIME types the compiler cares about.
const (
	MIMEPDF  = "application/pdf"
	MIMEDocx = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// Info contains detected file type information
type Info struct {
	MIMEType  string
	Extension string
}

// IsPDF reports whether the detected type is a PDF.
func (i *Info) IsPDF() bool { return i.MIMEType == MIMEPDF }

// IsDocx reports whether the detected type is a Word document.
func (i *Info) IsDocx() bool { return i.MIMEType == MIMEDocx }

// IsImage reports whether the detected type is a raster image.
func (i *Info) IsImage() bool { return strings.HasPrefix(i.MIMEType, "image/") }

// Detect detects the actual file type using magic bytes, not filename
func Detect(filePath string) (*Info, error) {
	mtype, err := mimetype.DetectFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to detect file type: %w", err)
	}

	info := &Info{MIMEType: mtype.String(), Extension: mtype.Extension()}
	if i := strings.Index(info.MIMEType, ";"); i >= 0 {
		info.MIMEType = strings.TrimSpace(info.MIMEType[:i])
	}

	// Word documents written by some tools sniff as plain zip
	if info.MIMEType == "application/zip" || strings.Contains(info.MIMEType, "application/x-zip") {
		if strings.EqualFold(filepath.Ext(filePath), ".docx") {
			log.Debug().Str("original", info.MIMEType).Str("file", filePath).Msg("zip with .docx extension treated as docx")
			info.MIMEType = MIMEDocx
			info.Extension = ".docx"
		}
	}

	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Str("file", filePath).Msg("detected file type")
	return info, nil
}

// RequirePDF returns an error unless filePath sniffs as a PDF.
func RequirePDF(filePath string) error {
	info, err := Detect(filePath)
	if err != nil {
		return err
	}
	if !info.IsPDF() {
		return fmt.Errorf("%s is %s, not a PDF", filepath.Base(filePath), info.MIMEType)
	}
	return nil
}

// RequireDocx returns an error unless filePath sniffs as a Word document.
func RequireDocx(filePath string) error {
	info, err := Detect(filePath)
	if err != nil {
		return err
	}
	if !info.IsDocx() {
		return fmt.Errorf("%s is %s, not a DOCX document", filepath.Base(filePath), info.MIMEType)
	}
	return nil
}
