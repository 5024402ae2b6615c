package workflow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

// CardCatalog stores validated cards by name and version. Registration
// validates the card's task graph, so a card that resolves from the catalog
// is always runnable.
type CardCatalog struct {
	mu    sync.RWMutex
	cards map[string]map[int]domain.Card
}

// NewCardCatalog creates an empty catalog.
func NewCardCatalog() *CardCatalog {
	return &CardCatalog{cards: make(map[string]map[int]domain.Card)}
}

// Register validates and stores a card. Registering the same name and
// version again replaces the stored card. Version defaults to 1.
func (c *CardCatalog) Register(card domain.Card) error {
	if card.Version <= 0 {
		card.Version = 1
	}
	if err := Validate(card); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	versions, ok := c.cards[card.Name]
	if !ok {
		versions = make(map[int]domain.Card)
		c.cards[card.Name] = versions
	}
	versions[card.Version] = *card.Clone()
	return nil
}

// Resolve looks up a card by "name" (latest version) or "name@version".
func (c *CardCatalog) Resolve(ref string) (domain.Card, error) {
	name := ref
	version := 0
	if at := strings.LastIndex(ref, "@"); at >= 0 {
		name = ref[:at]
		v, err := strconv.Atoi(ref[at+1:])
		if err != nil || v <= 0 {
			return domain.Card{}, fmt.Errorf("card reference %q: invalid version: %w", ref, domain.ErrCardNotFound)
		}
		version = v
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	versions, ok := c.cards[name]
	if !ok || len(versions) == 0 {
		return domain.Card{}, fmt.Errorf("card %q: %w", name, domain.ErrCardNotFound)
	}

	if version == 0 {
		for v := range versions {
			if v > version {
				version = v
			}
		}
	}
	card, ok := versions[version]
	if !ok {
		return domain.Card{}, fmt.Errorf("card %q version %d: %w", name, version, domain.ErrCardNotFound)
	}
	return *card.Clone(), nil
}

// Names returns the registered card names sorted alphabetically.
func (c *CardCatalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.cards))
	for name := range c.cards {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Versions returns a card's registered versions in ascending order.
func (c *CardCatalog) Versions(name string) []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	versions := make([]int, 0, len(c.cards[name]))
	for v := range c.cards[name] {
		versions = append(versions, v)
	}
	sort.Ints(versions)
	return versions
}
