package compiler

import (
	"context"
	"errors"

	"github.com/local/reportcompiler/internal/compositor"
	"github.com/local/reportcompiler/internal/geometry"
	"github.com/local/reportcompiler/internal/locator"
	"github.com/local/reportcompiler/internal/mutator"
	"github.com/local/reportcompiler/internal/placeholder"
	"github.com/local/reportcompiler/internal/reporterr"
)

type placer interface {
	Resolve(ctx context.Context, in geometry.Input) (geometry.Placement, error)
}

// attachReservation names the source and directive of the placeholder a
// locate error points at.
func attachReservation(err error, rs []mutator.Reservation) error {
	var re *reporterr.Error
	if !errors.As(err, &re) || re.Index < 0 {
		return err
	}
	for _, r := range rs {
		if r.Index == re.Index {
			return reporterr.Attach(err, r.Index, r.Source, r.Directive)
		}
	}
	return err
}

// plan turns located reservations into compositor tasks. Overlay pages pair
// Markers[i] with Pages[i]; a merge starts on the page of its marker.
func plan(ctx context.Context, p placer, rs []mutator.Reservation, hits map[string]locator.Hit, basePDF string) ([]compositor.OverlayTask, []compositor.MergeTask, error) {
	var (
		overlays []compositor.OverlayTask
		merges   []compositor.MergeTask
	)
	for _, r := range rs {
		switch r.Kind {
		case placeholder.KindOverlay:
			for i, page := range r.Pages {
				if i >= len(r.Markers) {
					break
				}
				text := r.Markers[i].String()
				hit, ok := hits[text]
				if !ok {
					return nil, nil, reporterr.New(reporterr.KindMarkerNotFound, "%s was not located", text).
						For(r.Index, r.Source, r.Directive)
				}
				pl, err := p.Resolve(ctx, geometry.Input{Metrics: r.Metrics, Hit: hit, PDF: basePDF})
				if err != nil {
					return nil, nil, reporterr.Attach(err, r.Index, r.Source, r.Directive)
				}
				overlays = append(overlays, compositor.OverlayTask{
					Source:     r.PDF,
					SourcePage: page,
					TargetPage: pl.Page,
					Rect:       pl.Rect,
					Crop:       r.Crop,
					Marker:     text,
					Index:      r.Index,
					Directive:  r.Directive,
				})
			}
		case placeholder.KindMerge:
			text := r.Markers[0].String()
			hit, ok := hits[text]
			if !ok {
				return nil, nil, reporterr.New(reporterr.KindMarkerNotFound, "%s was not located", text).
					For(r.Index, r.Source, r.Directive)
			}
			merges = append(merges, compositor.MergeTask{
				Source:    r.PDF,
				Pages:     r.Pages,
				StartPage: hit.Page,
				Reserved:  len(r.Pages),
				Index:     r.Index,
				Directive: r.Directive,
			})
		}
	}
	return overlays, merges, nil
}
