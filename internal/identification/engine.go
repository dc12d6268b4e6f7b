package identification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"romident/internal/catalog"
	"romident/internal/logging"
	"romident/internal/media"
)

// Phase names the matching phase that produced a result.
type Phase string

const (
	PhaseExact Phase = "exact"
	PhaseFuzzy Phase = "fuzzy"
)

// MatchCache remembers exact matches by image CRC32. Entries are hints: a
// result is reported as cached only when the ordered scan reaches the hinted
// record.
type MatchCache interface {
	LookupMatch(crc uint32) (catalogName, record string, ok bool)
	StoreMatch(crc uint32, catalogName, record, description string, size int64) error
}

// Options configures an Engine.
type Options struct {
	// PreferSHA1 compares single-segment SHA1s when both sides have one,
	// instead of CRC32.
	PreferSHA1 bool
	// Fuzzy permits the name phase when a name is supplied.
	Fuzzy  bool
	Cache  MatchCache
	Logger *slog.Logger
}

// Result is the outcome of one identification call. Matched is false for
// no match; Record and Catalog are then empty.
type Result struct {
	Matched bool
	Record  *catalog.SoftwareRecord
	Catalog string
	Phase   Phase
	// Cached is set when the match came from a verified cache hint.
	Cached bool
	// Reason is a short machine-friendly explanation of the decision.
	Reason        string
	Query         MatchQuery
	CorrelationID string
}

// Engine matches images against catalogs. It holds no per-call state and is
// safe for concurrent use when the supplied databases are not modified.
type Engine struct {
	opts   Options
	logger *slog.Logger
}

// NewEngine constructs an Engine.
func NewEngine(opts Options) *Engine {
	return &Engine{opts: opts, logger: logging.NewComponentLogger(opts.Logger, "identification")}
}

// Identify matches img against dbs, consulted in order. name enables the
// fuzzy phase when the engine permits it. A returned error means the image
// itself could not be read; no match is reported through Result.
func Identify(ctx context.Context, img media.Image, dbs []*catalog.Database) (Result, error) {
	return NewEngine(Options{PreferSHA1: true}).Identify(ctx, img, dbs, "")
}

// Identify builds a MatchQuery from img and runs Match.
func (e *Engine) Identify(ctx context.Context, img media.Image, dbs []*catalog.Database, name string) (Result, error) {
	ctx = ensureCorrelationID(ctx)
	ctx = logging.WithImagePath(ctx, img.Path())
	logger := logging.WithContext(ctx, e.logger)

	started := time.Now()
	q, err := NewQuery(img, name)
	if err != nil {
		logging.ErrorWithContext(logger, "image could not be read", "identification_read_failed",
			logging.String(logging.FieldMediaKind, string(img.Kind())),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "verify the image is complete and its format is supported"),
		)
		id, _ := logging.CorrelationIDFromContext(ctx)
		return Result{Query: q, CorrelationID: id}, err
	}
	logger.Debug("built match query",
		logging.String(logging.FieldMediaKind, string(q.Kind)),
		logging.String("crc32", formatCRC(q)),
		logging.String("sha1", q.SHA1),
		logging.Int64("size", q.Size),
		logging.Duration("elapsed", time.Since(started)),
	)
	return e.Match(ctx, q, dbs)
}

// Match runs the exact phase and, when permitted, the fuzzy phase for q.
func (e *Engine) Match(ctx context.Context, q MatchQuery, dbs []*catalog.Database) (Result, error) {
	ctx = ensureCorrelationID(ctx)
	logger := logging.WithContext(ctx, e.logger)
	id, _ := logging.CorrelationIDFromContext(ctx)
	result := Result{Query: q, CorrelationID: id}

	if q.HasEvidence() {
		hint, hinted := e.cacheHint(q)
		for _, db := range dbs {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			for _, rec := range db.Records() {
				ok, err := matchRecord(rec, q, e.opts.PreferSHA1)
				if err != nil {
					return result, fmt.Errorf("match %q in %s: %w", rec.Name, db.Name, err)
				}
				if !ok {
					continue
				}
				if hinted && hint.catalog == db.Name && hint.record == rec.Name {
					return e.matched(logger, result, rec, db, PhaseExact, "cache", true), nil
				}
				e.remember(logger, q, rec, db)
				return e.matched(logger, result, rec, db, PhaseExact, "checksum", false), nil
			}
		}
	}

	if !e.opts.Fuzzy || q.Name == "" {
		return e.noMatch(logger, result, "no_checksum_match"), nil
	}
	query := parseName(q.Name)
	reason := "no_candidates"
	for _, db := range dbs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome := fuzzyMatch(query, db)
		if outcome.record != nil {
			return e.matched(logger, result, outcome.record, db, PhaseFuzzy, outcome.reason, false), nil
		}
		if outcome.candidates > 1 {
			logger.Debug("fuzzy candidates ambiguous",
				logging.String(logging.FieldCatalog, db.Name),
				logging.Int("candidates", outcome.candidates),
				logging.String("query_name", q.Name),
			)
		}
		if outcome.reason != "no_candidates" {
			reason = outcome.reason
		}
	}
	return e.noMatch(logger, result, reason), nil
}

type cacheHint struct {
	catalog string
	record  string
}

// cacheHint returns the cache's previous answer for q. A hint only marks the
// result as cached when the ordered scan lands on the same record; it never
// lets a later catalog win over an earlier one.
func (e *Engine) cacheHint(q MatchQuery) (cacheHint, bool) {
	if e.opts.Cache == nil || !q.HasCRC {
		return cacheHint{}, false
	}
	catalogName, recordName, ok := e.opts.Cache.LookupMatch(q.CRC32)
	if !ok {
		return cacheHint{}, false
	}
	return cacheHint{catalog: catalogName, record: recordName}, true
}

func (e *Engine) remember(logger *slog.Logger, q MatchQuery, rec *catalog.SoftwareRecord, db *catalog.Database) {
	if e.opts.Cache == nil || !q.HasCRC {
		return
	}
	if err := e.opts.Cache.StoreMatch(q.CRC32, db.Name, rec.Name, rec.Title(), q.Size); err != nil {
		logging.WarnWithContext(logger, "failed to cache match", "match_cache_store_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the match is missing from the cache listing"),
			logging.String(logging.FieldErrorHint, "check match_cache.path permissions"),
		)
	}
}

func (e *Engine) matched(logger *slog.Logger, result Result, rec *catalog.SoftwareRecord, db *catalog.Database, phase Phase, reason string, cached bool) Result {
	result.Matched = true
	result.Record = rec
	result.Catalog = db.Name
	result.Phase = phase
	result.Cached = cached
	result.Reason = reason
	attrs := append(logging.DecisionAttrs("identification", "matched", reason),
		logging.String(logging.FieldCatalog, db.Name),
		logging.String("match_phase", string(phase)),
		logging.String("record", rec.Title()),
		logging.String("crc32", formatCRC(result.Query)),
		logging.Int64("size", result.Query.Size),
	)
	logger.Info("identified image", logging.Args(attrs...)...)
	return result
}

func (e *Engine) noMatch(logger *slog.Logger, result Result, reason string) Result {
	result.Reason = reason
	attrs := append(logging.DecisionAttrs("identification", "no_match", reason),
		logging.String("crc32", formatCRC(result.Query)),
		logging.String("query_name", result.Query.Name),
	)
	logger.Info("image not identified", logging.Args(attrs...)...)
	return result
}

func ensureCorrelationID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := logging.CorrelationIDFromContext(ctx); ok {
		return ctx
	}
	return logging.WithCorrelationID(ctx, uuid.NewString())
}

func formatCRC(q MatchQuery) string {
	if !q.HasCRC {
		return ""
	}
	return fmt.Sprintf("%08x", q.CRC32)
}
