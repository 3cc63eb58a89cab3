package menu

import (
	"cafe_bot/internal/models"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLoader struct {
	items []models.MenuItem
	err   error
}

func (s *stubLoader) GetAvailable(ctx context.Context) ([]models.MenuItem, error) {
	return s.items, s.err
}

func testMenu() []models.MenuItem {
	return []models.MenuItem{
		{ID: "latte", Name: "Latte", Price: 45, PrepMinutes: 4, Category: models.CategoryDrink},
		{ID: "croissant", Name: "Croissant", Price: 40, PrepMinutes: 2, Category: models.CategoryFood},
		{ID: "americano", Name: "Café Americano", Price: 35, PrepMinutes: 3, Category: models.CategoryDrink},
		{ID: "elote", Name: "Pan de Elote", Price: 38, PrepMinutes: 2, Category: models.CategoryDessert},
	}
}

func loadedIndex(t *testing.T) *Index {
	t.Helper()
	idx := NewIndex(&stubLoader{items: testMenu()})
	n, err := idx.Load(context.Background())
	require.NoError(t, err)
	require.Equal(t, 4, n)
	return idx
}

func TestFind(t *testing.T) {
	idx := loadedIndex(t)

	tests := []struct {
		query string
		want  string
	}{
		{"Latte", "latte"},
		{"  LATTE ", "latte"},
		{"cafe americano", "americano"},
		{"CAFÉ AMERICANO", "americano"},
		{"americano", "americano"},
		{"croissant", "croissant"},
		{"croisant", "croissant"},
		{"quiero un latte", "latte"},
		{"pan de elote", "elote"},
		{"elote", "elote"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			item, ok := idx.Find(tt.query)
			require.True(t, ok)
			assert.Equal(t, tt.want, item.ID)
		})
	}
}

func TestFind_NotFound(t *testing.T) {
	idx := loadedIndex(t)

	for _, query := range []string{"", "   ", "pizza hawaiana", "xyz"} {
		_, ok := idx.Find(query)
		assert.False(t, ok, query)
	}
}

func TestLoad_Error(t *testing.T) {
	idx := NewIndex(&stubLoader{err: errors.New("db down")})
	_, err := idx.Load(context.Background())
	assert.Error(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestReplace_SwapsSnapshot(t *testing.T) {
	idx := loadedIndex(t)
	idx.Replace([]models.MenuItem{{Name: "Chai", Price: 42, PrepMinutes: 3}})

	_, ok := idx.Find("latte")
	assert.False(t, ok)

	item, ok := idx.Find("chai")
	require.True(t, ok)
	assert.Equal(t, "chai", item.ID)
	assert.Equal(t, 1, idx.Len())
}

func TestPromptText(t *testing.T) {
	idx := loadedIndex(t)
	text := idx.PromptText()
	assert.Contains(t, text, "- Latte: $45.00 (Prep: 4min) [bebida]")
	assert.Contains(t, text, "- Croissant: $40.00 (Prep: 2min) [alimento]")
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "cafe con leche", normalize("  Café   con LECHE "))
	assert.Equal(t, "nino", normalize("Niño"))
}
