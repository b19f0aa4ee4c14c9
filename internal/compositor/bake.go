package compositor

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/rs/zerolog/log"
)

// Annotation flags, PDF 32000 12.5.3.
const (
	annotHidden = 1 << 1
	annotNoView = 1 << 5
)

// bakeAnnotations draws the normal appearance of every visible annotation of
// page into buf, registering the appearances in res.
func bakeAnnotations(ctx *model.Context, page types.Dict, res types.Dict, buf *bytes.Buffer) error {
	o, ok := page.Find("Annots")
	if !ok {
		return nil
	}
	annots, err := ctx.DereferenceArray(o)
	if err != nil {
		return err
	}
	if len(annots) == 0 {
		return nil
	}

	xobjs := types.NewDict()
	if o, ok := res.Find("XObject"); ok {
		existing, err := ctx.DereferenceDict(o)
		if err != nil {
			return err
		}
		xobjs = copyDict(existing)
	}

	baked, dropped := 0, 0
	for _, a := range annots {
		d, err := ctx.DereferenceDict(a)
		if err != nil || d == nil {
			continue
		}
		subtype := ""
		if s := d.NameEntry("Subtype"); s != nil {
			subtype = *s
		}
		if subtype == "Popup" || subtype == "Link" {
			continue
		}
		if f := d.IntEntry("F"); f != nil && *f&(annotHidden|annotNoView) != 0 {
			continue
		}

		ref := appearance(ctx, d)
		if ref == nil {
			dropped++
			log.Warn().Str("annotation", subtype).Msg("annotation has no appearance stream, dropped")
			continue
		}
		sd, _, err := ctx.DereferenceStreamDict(*ref)
		if err != nil || sd == nil {
			dropped++
			continue
		}
		rectObj, _ := d.Find("Rect")
		rect, ok := rectangle(ctx, rectObj)
		if !ok {
			dropped++
			continue
		}
		bboxObj, _ := sd.Find("BBox")
		bbox, ok := rectangle(ctx, bboxObj)
		if !ok {
			dropped++
			continue
		}
		mObj, _ := sd.Find("Matrix")
		shown := transformRect(bbox, matrix(ctx, mObj))
		if shown.Width() <= 0 || shown.Height() <= 0 || rect.Width() <= 0 || rect.Height() <= 0 {
			continue
		}

		name := fmt.Sprintf("RcAnn%d", baked)
		for _, taken := xobjs[name]; taken; _, taken = xobjs[name] {
			name += "x"
		}
		xobjs.Insert(name, *ref)
		buf.WriteString(drawForm(name, fitMatrix(shown, rect)))
		baked++
	}

	if baked > 0 {
		res["XObject"] = xobjs
	}
	log.Debug().Int("baked", baked).Int("dropped", dropped).Msg("annotations flattened")
	return nil
}

// appearance returns the normal appearance stream of an annotation, picking
// the state named by /AS when the appearance has several.
func appearance(ctx *model.Context, annot types.Dict) *types.IndirectRef {
	o, ok := annot.Find("AP")
	if !ok {
		return nil
	}
	ap, err := ctx.DereferenceDict(o)
	if err != nil || ap == nil {
		return nil
	}
	n, ok := ap.Find("N")
	if !ok {
		return nil
	}
	if ref := indRef(n); ref != nil {
		obj, err := ctx.Dereference(*ref)
		if err != nil {
			return nil
		}
		if _, isStream := obj.(types.StreamDict); isStream {
			return ref
		}
		n = obj
	}
	states, ok := n.(types.Dict)
	if !ok {
		return nil
	}
	as := annot.NameEntry("AS")
	if as == nil {
		return nil
	}
	s, ok := states.Find(*as)
	if !ok {
		return nil
	}
	return indRef(s)
}

func indRef(o types.Object) *types.IndirectRef {
	switch v := o.(type) {
	case types.IndirectRef:
		return &v
	case *types.IndirectRef:
		return v
	}
	return nil
}
