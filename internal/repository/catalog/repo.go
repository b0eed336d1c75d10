package catalog

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/appscout/appscout/internal/db"
	"github.com/appscout/appscout/internal/domain"
)

// Key layout. Items and keyword weights are written by the ingestion
// pipeline; this repository only reads them.
const (
	itemKeyPrefix = domain.KeyPrefix + "app:"
	kwKeyPrefix   = domain.KeyPrefix + "kw:"

	// IndexName is the FT index over item hashes.
	IndexName = domain.KeyPrefix + "apps:idx"
)

// store is the consumer interface for catalog operations.
type store interface {
	HGetAllMulti(ctx context.Context, keys []string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	SearchText(ctx context.Context, q *db.TextQuery) (*db.SearchResult, error)
}

// Repo reads the app catalog.
type Repo struct {
	store store
}

// New creates a catalog repository.
func New(s store) *Repo {
	return &Repo{store: s}
}

// IndexDefinition returns the FT index schema for the item hashes.
// The vector field is HNSW/COSINE so nearest-neighbor queries run inside
// the store instead of scanning the catalog in application code.
func IndexDefinition(dim, hnswM, hnswEFConstruct int) *db.IndexDefinition {
	return &db.IndexDefinition{
		Name:     IndexName,
		Prefixes: []string{itemKeyPrefix},
		Fields: []db.IndexField{
			{Name: "search_text", Type: db.IndexFieldText},
			{Name: "category", Type: db.IndexFieldTag, TagSeparator: ","},
			{Name: "rating", Type: db.IndexFieldNumeric},
			{
				Name:              "vector",
				Type:              db.IndexFieldVector,
				VectorAlgo:        db.VectorHNSW,
				VectorDim:         dim,
				VectorDistance:    db.DistanceCosine,
				VectorM:           hnswM,
				VectorEFConstruct: hnswEFConstruct,
			},
		},
	}
}

// NearestNeighbors returns the items closest to the query vector by cosine
// similarity, most similar first.
func (r *Repo) NearestNeighbors(ctx context.Context, vector []float32, limit int) ([]domain.Neighbor, error) {
	q := &db.KNNQuery{
		IndexName:    IndexName,
		Vector:       vector,
		K:            limit,
		ReturnFields: []string{"title", "category", "tags", "rating", "description", "icon", "vector", "__vector_score"},
	}

	sr, err := r.store.SearchKNN(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("knn search: %w: %w", domain.ErrCatalogUnavailable, err)
	}

	neighbors := make([]domain.Neighbor, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, itemKeyPrefix)
		neighbors = append(neighbors, domain.Neighbor{
			Item:       parseItem(id, entry.Fields),
			Similarity: entry.Score,
			Vector:     bytesToVector(entry.Fields["vector"]),
		})
	}
	return neighbors, nil
}

// ItemsByKeywordMatch returns items whose indexed text matches any of the
// terms, optionally pre-filtered by category.
func (r *Repo) ItemsByKeywordMatch(
	ctx context.Context, terms, categories []string, limit int,
) ([]domain.Item, error) {
	q := &db.TextQuery{
		IndexName:    IndexName,
		Terms:        terms,
		Categories:   categories,
		TopK:         limit,
		ReturnFields: []string{"title", "category", "tags", "rating", "description", "icon"},
	}

	sr, err := r.store.SearchText(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("keyword match: %w: %w", domain.ErrCatalogUnavailable, err)
	}

	items := make([]domain.Item, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, itemKeyPrefix)
		items = append(items, parseItem(id, entry.Fields))
	}
	return items, nil
}

// GetItems fetches items by id in one round-trip. Missing ids are skipped.
func (r *Repo) GetItems(ctx context.Context, ids []string) ([]domain.Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = itemKeyPrefix + id
	}

	fields, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get items: %w: %w", domain.ErrCatalogUnavailable, err)
	}

	items := make([]domain.Item, 0, len(ids))
	for i, f := range fields {
		if len(f) == 0 {
			continue
		}
		items = append(items, parseItem(ids[i], f))
	}
	return items, nil
}

// GetKeywordWeights fetches the sparse keyword-weight maps for the given
// item ids. Items without weights map to an empty (not nil) map.
func (r *Repo) GetKeywordWeights(
	ctx context.Context, ids []string,
) (map[string]domain.KeywordWeights, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = kwKeyPrefix + id
	}

	fields, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("get keyword weights: %w: %w", domain.ErrCatalogUnavailable, err)
	}

	weights := make(map[string]domain.KeywordWeights, len(ids))
	for i, f := range fields {
		w := make(domain.KeywordWeights, len(f))
		for keyword, raw := range f {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil || v < 0 {
				continue
			}
			w[strings.ToLower(keyword)] = v
		}
		weights[ids[i]] = w
	}
	return weights, nil
}

// ScanItems loads up to limit items via a key scan. This is the degraded
// path for when the FT index is unusable; normal retrieval never scans.
func (r *Repo) ScanItems(ctx context.Context, limit int) ([]domain.Item, error) {
	keys, err := r.store.Scan(ctx, itemKeyPrefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan items: %w: %w", domain.ErrCatalogUnavailable, err)
	}
	if len(keys) > limit {
		keys = keys[:limit]
	}

	fields, err := r.store.HGetAllMulti(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("scan items: %w: %w", domain.ErrCatalogUnavailable, err)
	}

	items := make([]domain.Item, 0, len(keys))
	for i, f := range fields {
		if len(f) == 0 {
			continue
		}
		id := strings.TrimPrefix(keys[i], itemKeyPrefix)
		items = append(items, parseItem(id, f))
	}
	return items, nil
}

// parseItem converts flat hash fields into a domain item.
func parseItem(id string, fields map[string]string) domain.Item {
	item := domain.Item{
		ID:          id,
		Title:       fields["title"],
		Category:    fields["category"],
		Description: fields["description"],
		IconRef:     fields["icon"],
	}
	if raw := fields["tags"]; raw != "" {
		item.Tags = strings.Split(raw, ",")
	}
	if raw := fields["rating"]; raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil && v >= 0 && v <= 5 {
			item.Rating = v
		}
	}
	return item
}

// bytesToVector deserializes a binary string to []float32.
func bytesToVector(s string) []float32 {
	b := []byte(s)
	if len(b) == 0 || len(b)%4 != 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}
