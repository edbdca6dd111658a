// Package rulescache persists fetched rule screens, one JSON file per rule,
// so an in-app message survives a process restart until it is shown.
package rulescache

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/apphud/apphud-go/internal/domain/entity"
	"github.com/apphud/apphud-go/internal/infrastructure/logging"
)

const fileExt = ".json"

// screenDocument is the on-disk shape. HTML is base64-encoded so the
// document stays a flat JSON object regardless of screen content.
type screenDocument struct {
	CreatedAt  int64       `json:"created_at"`
	Rule       entity.Rule `json:"rule"`
	HTMLScreen string      `json:"html_screen"`
}

// Cache is a directory of rule screen files behind one coarse mutex.
// Screen fetching is rare and files are small; finer locking buys nothing.
type Cache struct {
	mu     sync.Mutex
	dir    string
	logger *zap.Logger
}

func New(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create rule screen cache dir: %w", err)
	}
	return &Cache{
		dir:    dir,
		logger: logging.WithComponent("rulescache"),
	}, nil
}

// Save writes the screen for its rule, replacing any previous one.
func (c *Cache) Save(screen entity.RuleScreen) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	doc := screenDocument{
		CreatedAt:  screen.CreatedAt,
		Rule:       screen.Rule,
		HTMLScreen: base64.StdEncoding.EncodeToString([]byte(screen.HTMLScreen)),
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal rule screen: %w", err)
	}

	// Temp file + rename so a crash mid-write never leaves a truncated
	// screen behind. The .tmp suffix keeps listings from picking it up.
	path := c.path(screen.Rule.ID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("failed to write rule screen: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace rule screen: %w", err)
	}
	return nil
}

// Get returns the screen for a rule id, reporting absence without error.
func (c *Cache) Get(ruleID string) (entity.RuleScreen, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.read(c.path(ruleID))
}

// All returns every cached screen. Unreadable files are skipped with a
// warning rather than failing the whole listing.
func (c *Cache) All() ([]entity.RuleScreen, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list rule screen cache: %w", err)
	}

	var screens []entity.RuleScreen
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		screen, ok, err := c.read(filepath.Join(c.dir, e.Name()))
		if err != nil || !ok {
			c.logger.Warn("skipping unreadable rule screen", zap.String("file", e.Name()), zap.Error(err))
			continue
		}
		screens = append(screens, screen)
	}
	return screens, nil
}

// MostActual returns the newest cached screen by creation time.
func (c *Cache) MostActual() (entity.RuleScreen, bool, error) {
	screens, err := c.All()
	if err != nil {
		return entity.RuleScreen{}, false, err
	}
	if len(screens) == 0 {
		return entity.RuleScreen{}, false, nil
	}

	newest := screens[0]
	for _, s := range screens[1:] {
		if s.CreatedAt > newest.CreatedAt {
			newest = s
		}
	}
	return newest, true, nil
}

// Delete removes the screen for a rule id. Removing an absent screen is
// not an error.
func (c *Cache) Delete(ruleID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := os.Remove(c.path(ruleID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete rule screen: %w", err)
	}
	return nil
}

// Clear wipes every cached screen.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entries, err := os.ReadDir(c.dir)
	if err != nil {
		return fmt.Errorf("failed to list rule screen cache: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		if err := os.Remove(filepath.Join(c.dir, e.Name())); err != nil {
			return fmt.Errorf("failed to clear rule screen cache: %w", err)
		}
	}
	return nil
}

func (c *Cache) path(ruleID string) string {
	return filepath.Join(c.dir, ruleID+fileExt)
}

func (c *Cache) read(path string) (entity.RuleScreen, bool, error) {
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return entity.RuleScreen{}, false, nil
	}
	if err != nil {
		return entity.RuleScreen{}, false, fmt.Errorf("failed to read rule screen: %w", err)
	}

	var doc screenDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return entity.RuleScreen{}, false, fmt.Errorf("failed to parse rule screen: %w", err)
	}
	html, err := base64.StdEncoding.DecodeString(doc.HTMLScreen)
	if err != nil {
		return entity.RuleScreen{}, false, fmt.Errorf("failed to decode rule screen html: %w", err)
	}

	return entity.RuleScreen{
		CreatedAt:  doc.CreatedAt,
		Rule:       doc.Rule,
		HTMLScreen: string(html),
	}, true, nil
}
