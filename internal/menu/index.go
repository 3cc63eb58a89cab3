package menu

import (
	"cafe_bot/internal/models"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// DefaultThreshold is the minimum similarity for a fuzzy match.
const DefaultThreshold = 0.6

type Loader interface {
	GetAvailable(ctx context.Context) ([]models.MenuItem, error)
}

// Index is an in-memory lookup over the available menu. Safe for concurrent use;
// Load swaps the whole snapshot at once.
type Index struct {
	loader    Loader
	threshold float64

	mu    sync.RWMutex
	items map[string]models.MenuItem // by id
	names map[string]string          // normalized name -> id
	keys  []string                   // sorted names, for deterministic scans
}

func NewIndex(loader Loader) *Index {
	return &Index{
		loader:    loader,
		threshold: DefaultThreshold,
		items:     make(map[string]models.MenuItem),
		names:     make(map[string]string),
	}
}

// Load replaces the cached menu with the loader's current contents.
func (i *Index) Load(ctx context.Context) (int, error) {
	if i.loader == nil {
		return 0, fmt.Errorf("menu index has no loader")
	}
	items, err := i.loader.GetAvailable(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load menu: %w", err)
	}
	i.Replace(items)
	return len(items), nil
}

func (i *Index) Replace(items []models.MenuItem) {
	byID := make(map[string]models.MenuItem, len(items))
	names := make(map[string]string, len(items))
	for _, item := range items {
		id := item.ID
		if id == "" {
			id = normalize(item.Name)
			item.ID = id
		}
		byID[id] = item
		if key := normalize(item.Name); key != "" {
			names[key] = id
		}
	}
	keys := make([]string, 0, len(names))
	for key := range names {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	i.mu.Lock()
	i.items, i.names, i.keys = byID, names, keys
	i.mu.Unlock()
}

// Find resolves a free-text product name: exact name, then id, then containment
// in either direction, then the closest fuzzy match above the threshold.
func (i *Index) Find(name string) (models.MenuItem, bool) {
	query := normalize(name)
	if query == "" {
		return models.MenuItem{}, false
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if id, ok := i.names[query]; ok {
		return i.items[id], true
	}
	if item, ok := i.items[query]; ok {
		return item, true
	}
	if item, ok := i.items[strings.TrimSpace(name)]; ok {
		return item, true
	}

	// Containment: prefer the candidate closest to the query.
	best, bestScore := "", -1.0
	for _, key := range i.keys {
		if strings.Contains(key, query) || strings.Contains(query, key) {
			if score := similarity(query, key); score > bestScore {
				best, bestScore = key, score
			}
		}
	}
	if best != "" {
		return i.items[i.names[best]], true
	}

	best, bestScore = "", 0
	for _, key := range i.keys {
		score := similarity(query, key)
		if score > bestScore && score >= i.threshold {
			best, bestScore = key, score
		}
	}
	if best != "" {
		return i.items[i.names[best]], true
	}
	return models.MenuItem{}, false
}

func (i *Index) Get(id string) (models.MenuItem, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	item, ok := i.items[id]
	return item, ok
}

// All returns the cached items sorted by name.
func (i *Index) All() []models.MenuItem {
	i.mu.RLock()
	defer i.mu.RUnlock()
	items := make([]models.MenuItem, 0, len(i.keys))
	for _, key := range i.keys {
		items = append(items, i.items[i.names[key]])
	}
	return items
}

func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.items)
}

// PromptText lists the menu for the classifier's system prompt.
func (i *Index) PromptText() string {
	items := i.All()
	lines := make([]string, 0, len(items))
	for _, item := range items {
		lines = append(lines, fmt.Sprintf("- %s: $%.2f (Prep: %dmin) [%s]", item.Name, item.Price, item.PrepMinutes, item.Category))
	}
	return strings.Join(lines, "\n")
}
