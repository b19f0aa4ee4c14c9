package compiler

import (
	"context"
	"path/filepath"

	"github.com/local/reportcompiler/internal/docx"
	"github.com/local/reportcompiler/internal/placeholder"
	"github.com/local/reportcompiler/internal/reporterr"
	"github.com/local/reportcompiler/internal/tempdir"
)

// Inspect scans and validates the placeholders of input without rendering
// it. Nested reports are still compiled, their page count is only known
// once rendered.
func (c *Compiler) Inspect(ctx context.Context, input string) ([]placeholder.Resolved, error) {
	input, err := filepath.Abs(input)
	if err != nil {
		return nil, err
	}
	if err := checkInput(input); err != nil {
		return nil, err
	}
	doc, err := docx.Open(input)
	if err != nil {
		return nil, reporterr.Wrap(reporterr.KindMissingSourceFile, err, "open %s", filepath.Base(input))
	}
	scope, err := tempdir.New(c.opts.TempParent, c.opts.KeepTemp)
	if err != nil {
		return nil, err
	}
	defer scope.Close()
	return c.resolve(ctx, doc, input, scope, nil)
}
