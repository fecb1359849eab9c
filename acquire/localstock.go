package acquire

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// videoExts marks which stock files are clips rather than stills
var videoExts = map[string]bool{
	".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true,
}

// StockStore serves pre-approved local assets from a themed directory tree:
// one subdirectory per theme, with "general" as the mandatory catch-all.
type StockStore struct {
	root string
}

// NewStockStore opens the stock asset tree
func NewStockStore(root string) *StockStore {
	return &StockStore{root: root}
}

// Pick selects a stock file whose theme best matches the query keywords,
// falling back to the general theme. Selection is deterministic: themes are
// scored by keyword overlap and files chosen in sorted order.
func (s *StockStore) Pick(query string) (string, error) {
	themes, err := s.listThemes()
	if err != nil {
		return "", err
	}
	if len(themes) == 0 {
		return "", fmt.Errorf("no stock themes under %s", s.root)
	}

	words := strings.Fields(strings.ToLower(query))
	best := ""
	bestScore := 0
	for _, theme := range themes {
		sc := themeScore(theme, words)
		if sc > bestScore {
			best, bestScore = theme, sc
		}
	}
	if best == "" {
		best = "general"
	}

	file, err := s.firstFile(best)
	if err != nil && best != "general" {
		// Matched theme is empty; the catch-all must still serve
		file, err = s.firstFile("general")
	}
	if err != nil {
		return "", err
	}
	return file, nil
}

func themeScore(theme string, queryWords []string) int {
	theme = strings.ToLower(theme)
	score := 0
	for _, w := range queryWords {
		if w == theme {
			score += 2
		} else if strings.Contains(theme, w) || strings.Contains(w, theme) {
			score++
		}
	}
	return score
}

func (s *StockStore) listThemes() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("read stock root: %w", err)
	}
	var themes []string
	for _, e := range entries {
		if e.IsDir() {
			themes = append(themes, e.Name())
		}
	}
	sort.Strings(themes)
	return themes, nil
}

func (s *StockStore) firstFile(theme string) (string, error) {
	dir := filepath.Join(s.root, theme)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read stock theme %s: %w", theme, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return "", fmt.Errorf("stock theme %s is empty", theme)
	}
	sort.Strings(names)
	return filepath.Join(dir, names[0]), nil
}

// IsVideoFile reports whether a stock file is a clip, by extension
func IsVideoFile(path string) bool {
	return videoExts[strings.ToLower(filepath.Ext(path))]
}
