package migrations

import (
	"cafe_bot/internal/models"
	"cafe_bot/internal/repository"
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

//go:embed default_menu.yaml
var defaultMenu []byte

type menuFile struct {
	Items []models.MenuItem `yaml:"items"`
}

// ParseMenu decodes a YAML menu. Items default to available with a 5 minute prep.
func ParseMenu(data []byte) ([]models.MenuItem, error) {
	var file menuFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse menu: %w", err)
	}

	items := make([]models.MenuItem, 0, len(file.Items))
	seen := make(map[string]bool)
	for i, item := range file.Items {
		item.Name = strings.TrimSpace(item.Name)
		if item.Name == "" {
			return nil, fmt.Errorf("menu item %d has no name", i)
		}
		if item.ID == "" {
			item.ID = strings.ReplaceAll(strings.ToLower(item.Name), " ", "_")
		}
		if seen[item.ID] {
			return nil, fmt.Errorf("duplicate menu item id %q", item.ID)
		}
		seen[item.ID] = true
		if item.Price < 0 {
			return nil, fmt.Errorf("menu item %q has a negative price", item.ID)
		}
		if item.PrepMinutes <= 0 {
			item.PrepMinutes = 5
		}
		if item.Category == "" {
			item.Category = models.CategoryDrink
		}
		if item.Modifiers == nil {
			item.Modifiers = []string{}
		}
		items = append(items, item)
	}
	return items, nil
}

func LoadMenuFile(path string) ([]models.MenuItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read menu file: %w", err)
	}
	return ParseMenu(data)
}

func DefaultMenu() ([]models.MenuItem, error) {
	return ParseMenu(defaultMenu)
}

// SeedMenu upserts every item.
func SeedMenu(ctx context.Context, repo repository.MenuRepository, items []models.MenuItem) (int, error) {
	for i := range items {
		if err := repo.Upsert(ctx, &items[i]); err != nil {
			return i, fmt.Errorf("failed to upsert menu item %q: %w", items[i].ID, err)
		}
	}
	return len(items), nil
}

// SeedDefaultMenu loads the built-in menu when no item is available yet.
func SeedDefaultMenu(ctx context.Context, repo repository.MenuRepository) (int, error) {
	existing, err := repo.GetAvailable(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to check menu: %w", err)
	}
	if len(existing) > 0 {
		return 0, nil
	}

	items, err := DefaultMenu()
	if err != nil {
		return 0, err
	}
	n, err := SeedMenu(ctx, repo, items)
	if err != nil {
		return n, err
	}
	logrus.WithField("items", n).Info("Default menu created")
	return n, nil
}
