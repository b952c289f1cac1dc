package search

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
)

// memoryIndex is an in-memory stand-in for the recipe index. It evaluates
// the subset of the query DSL that BuildSearchQuery and
// BuildAutocompleteQuery emit.
type memoryIndex struct {
	mu   sync.Mutex
	docs map[string]Document

	searchErr error
	aggErr    error
	upsertErr error
	deleteErr error
	bulkErr   error

	searchCalls int
	aggCalls    int
	upserts     int
	bulkBatches [][]Document
	lastQuery   map[string]interface{}
}

func newMemoryIndex() *memoryIndex {
	return &memoryIndex{docs: map[string]Document{}}
}

func (m *memoryIndex) Upsert(_ context.Context, doc Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.upsertErr != nil {
		return m.upsertErr
	}
	m.upserts++
	m.docs[doc.ID] = roundTrip(doc)
	return nil
}

func (m *memoryIndex) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	delete(m.docs, id)
	return nil
}

func (m *memoryIndex) BulkUpsert(_ context.Context, docs []Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(docs) == 0 {
		return nil
	}
	if m.bulkErr != nil {
		return m.bulkErr
	}
	m.bulkBatches = append(m.bulkBatches, docs)
	for _, d := range docs {
		m.docs[d.ID] = roundTrip(d)
	}
	return nil
}

func (m *memoryIndex) get(id string) (Document, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.docs[id]
	return d, ok
}

func (m *memoryIndex) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.docs)
}

func (m *memoryIndex) Count(context.Context) (int64, error) {
	return int64(m.count()), nil
}

func (m *memoryIndex) ScanIDs(_ context.Context, batchSize int, fn func([]string) error) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.docs))
	for id := range m.docs {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)

	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		if err := fn(ids[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func roundTrip(doc Document) Document {
	data, _ := json.Marshal(doc)
	var out Document
	_ = json.Unmarshal(data, &out)
	return out
}

func generic(body map[string]interface{}) map[string]interface{} {
	data, _ := json.Marshal(body)
	var out map[string]interface{}
	_ = json.Unmarshal(data, &out)
	return out
}

func asMap(v interface{}) map[string]interface{} {
	m, _ := v.(map[string]interface{})
	return m
}

func asList(v interface{}) []interface{} {
	l, _ := v.([]interface{})
	return l
}

type scored struct {
	doc   Document
	score float64
}

func (m *memoryIndex) Search(_ context.Context, body map[string]interface{}) (*RawSearchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.searchCalls++
	if m.searchErr != nil {
		return nil, m.searchErr
	}

	q := generic(body)
	m.lastQuery = q
	boolQ := asMap(asMap(q["query"])["bool"])

	var text string
	for _, clause := range asList(boolQ["should"]) {
		if mm := asMap(asMap(clause)["multi_match"]); mm != nil {
			text, _ = mm["query"].(string)
		}
	}

	matches := make([]scored, 0)
	for _, doc := range m.docs {
		score := 1.0
		if text != "" {
			score = textScore(doc, text)
			if score == 0 {
				continue
			}
		}
		if !passesFilters(doc, asList(boolQ["filter"])) {
			continue
		}
		matches = append(matches, scored{doc: doc, score: score})
	}

	sortKey := "_score"
	if sorts := asList(q["sort"]); len(sorts) > 0 {
		for k := range asMap(sorts[0]) {
			sortKey = k
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		switch sortKey {
		case "avg_rating":
			if a.doc.AvgRating != b.doc.AvgRating {
				return a.doc.AvgRating > b.doc.AvgRating
			}
		case "created_at":
			if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
				return a.doc.CreatedAt.After(b.doc.CreatedAt)
			}
		default:
			if a.score != b.score {
				return a.score > b.score
			}
			if !a.doc.CreatedAt.Equal(b.doc.CreatedAt) {
				return a.doc.CreatedAt.After(b.doc.CreatedAt)
			}
		}
		return a.doc.ID < b.doc.ID
	})

	from := int(q["from"].(float64))
	size := int(q["size"].(float64))

	result := &RawSearchResult{Total: len(matches), Hits: []RawHit{}}
	for i := from; i < len(matches) && i < from+size; i++ {
		src, _ := json.Marshal(matches[i].doc)
		result.Hits = append(result.Hits, RawHit{ID: matches[i].doc.ID, Score: matches[i].score, Source: src})
	}
	return result, nil
}

func textScore(doc Document, query string) float64 {
	var names []string
	for _, ing := range doc.Ingredients {
		names = append(names, ing.NameText)
	}
	body := strings.ToLower(strings.Join([]string{doc.Description, doc.Instructions, strings.Join(names, " ")}, " "))
	title := strings.ToLower(doc.Title)

	score := 0.0
	for _, token := range strings.Fields(strings.ToLower(query)) {
		if strings.Contains(title, token) {
			score += 3
		}
		if strings.Contains(body, token) {
			score++
		}
	}
	return score
}

func passesFilters(doc Document, filters []interface{}) bool {
	for _, f := range filters {
		filter := asMap(f)
		switch {
		case filter["nested"] != nil:
			term := asMap(asMap(asMap(filter["nested"])["query"])["term"])
			want, _ := term["ingredients.name"].(string)
			found := false
			for _, ing := range doc.Ingredients {
				if ing.Name == want {
					found = true
				}
			}
			if !found {
				return false
			}
		case filter["term"] != nil:
			for field, v := range asMap(filter["term"]) {
				var got *string
				switch field {
				case "cuisine":
					got = doc.Cuisine
				case "difficulty":
					got = doc.Difficulty
				}
				if got == nil || *got != v.(string) {
					return false
				}
			}
		case filter["range"] != nil:
			bounds := asMap(asMap(filter["range"])["cooking_time_minutes"])
			if doc.CookingTimeMinutes == nil {
				return false
			}
			t := float64(*doc.CookingTimeMinutes)
			if gte, ok := bounds["gte"].(float64); ok && t < gte {
				return false
			}
			if lte, ok := bounds["lte"].(float64); ok && t > lte {
				return false
			}
		}
	}
	return true
}

func (m *memoryIndex) Aggregate(_ context.Context, body map[string]interface{}, path ...string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.aggCalls++
	if m.aggErr != nil {
		return nil, m.aggErr
	}

	q := generic(body)
	node := asMap(q["aggs"])
	for i, name := range path {
		agg := asMap(node[name])
		if i < len(path)-1 {
			node = asMap(agg["aggs"])
			continue
		}
		node = asMap(agg["terms"])
	}

	include, _ := node["include"].(string)
	prefix := strings.ReplaceAll(strings.TrimSuffix(include, ".*"), `\`, "")
	size := int(node["size"].(float64))

	counts := map[string]int{}
	for _, doc := range m.docs {
		for _, ing := range doc.Ingredients {
			if strings.HasPrefix(ing.Name, prefix) {
				counts[ing.Name]++
			}
		}
	}

	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > size {
		keys = keys[:size]
	}
	return keys, nil
}
