// Package resolver fills an entity's canonical fields by walking a fixed
// priority list of sources. Sources are injected: adding, removing, or
// reordering them never changes the control flow here.
package resolver

import (
	"context"

	"github.com/robinjoseph08/golib/logger"
	"github.com/shishobooks/seiri/pkg/book"
	"github.com/shishobooks/seiri/pkg/mediafile"
	"github.com/shishobooks/seiri/pkg/source"
)

type Resolver struct {
	threshold float64
	sources   []source.Source
}

// New builds a resolver over the given sources in strict priority order;
// fields already resolved at or above threshold, or filled from embedded
// tags, are never re-queried.
func New(threshold float64, sources ...source.Source) *Resolver {
	return &Resolver{threshold: threshold, sources: sources}
}

// Resolve runs the cascade for one entity. Per field, the first source to
// return a nonempty value wins; a later source is never consulted for a
// field an earlier one filled, even though it may be queried anyway for
// fields still missing. Exhausted fields stay unresolved, which is an
// incomplete entity, not an error.
func (r *Resolver) Resolve(ctx context.Context, e *book.Entity) error {
	log := logger.FromContext(ctx).Data(logger.Data{"entity_id": e.Candidate.ID, "key": e.Candidate.Key})

	missing := map[string]bool{}
	for _, field := range mediafile.CanonicalFields {
		cur := e.Field(field)
		if cur.Resolved() && cur.Source == mediafile.SourceMetadata {
			// Embedded tags sit at the top of the priority order;
			// no adapter can outrank them, so re-querying is
			// pointless whatever their confidence.
			continue
		}
		if !cur.Resolved() || cur.Confidence < r.threshold {
			missing[field] = true
		}
	}
	if len(missing) == 0 {
		return nil
	}

	hints := source.HintsFor(&e.Candidate)

	for _, src := range r.sources {
		if len(missing) == 0 {
			break
		}

		cands, err := src.Propose(ctx, e.KnownFields(), hints)
		if err != nil {
			// Unavailable sources read as "no candidates"; never
			// fatal to the entity or the batch.
			log.Warn("source unavailable", logger.Data{"source": src.Name(), "err": err.Error()})
			continue
		}
		if len(cands) == 0 {
			continue
		}

		r.merge(e, src.Name(), cands, missing)
	}

	for _, field := range mediafile.CanonicalFields {
		if missing[field] {
			log.Info("field exhausted all sources", logger.Data{"field": field})
		}
	}

	return nil
}

// merge applies one source's proposal batch. When a batch carries several
// values for one field the highest-confidence one wins (stable on ties) and
// the losers are kept for audit rather than treated as an error.
func (r *Resolver) merge(e *book.Entity, provenance string, cands []source.Candidate, missing map[string]bool) {
	best := map[string]source.Candidate{}
	for _, c := range cands {
		if c.Value == "" {
			continue
		}
		if cur, ok := best[c.Field]; !ok || c.Confidence > cur.Confidence {
			if ok {
				e.Discarded = append(e.Discarded, discard(cur, provenance))
			}
			best[c.Field] = c
		} else {
			e.Discarded = append(e.Discarded, discard(c, provenance))
		}
	}

	for _, field := range mediafile.CanonicalFields {
		c, ok := best[field]
		if !ok {
			continue
		}
		if !missing[field] {
			// An earlier source already filled this one.
			e.Discarded = append(e.Discarded, discard(c, provenance))
			continue
		}
		cur := e.Field(field)
		if cur.Resolved() && cur.Confidence >= c.Confidence {
			// A sub-threshold value we already hold still beats a
			// weaker proposal; keep it, note the alternative, and
			// close the field. The cascade stops at the first
			// source that answered, either way.
			e.Discarded = append(e.Discarded, discard(c, provenance))
		} else {
			e.SetField(field, mediafile.FieldValue{Value: c.Value, Source: provenance, Confidence: c.Confidence})
		}
		delete(missing, field)
	}
}

func discard(c source.Candidate, provenance string) book.DiscardedValue {
	return book.DiscardedValue{Field: c.Field, Value: c.Value, Source: provenance, Confidence: c.Confidence}
}
