package workflow

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/concordia-ai/concord-oss/pkg/domain"
)

type cardFile struct {
	Name                 string             `yaml:"name"`
	Version              int                `yaml:"version"`
	RequiredInputs       []string           `yaml:"required_inputs"`
	Tasks                []taskFile         `yaml:"tasks"`
	Dossier              map[string]string  `yaml:"dossier"`
	AcceptanceThresholds map[string]float64 `yaml:"acceptance_thresholds"`
}

type taskFile struct {
	ID         string         `yaml:"id"`
	Tool       string         `yaml:"tool"`
	Parameters map[string]any `yaml:"parameters"`
	DependsOn  []string       `yaml:"depends_on"`
	OutputKey  string         `yaml:"output_key"`
	Gate       bool           `yaml:"gate"`
	GatePolicy string         `yaml:"gate_policy"`
}

// ParseCard decodes one YAML card document.
func ParseCard(data []byte) (domain.Card, error) {
	var cf cardFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return domain.Card{}, fmt.Errorf("parse card: %w", err)
	}

	card := domain.Card{
		Name:                 cf.Name,
		Version:              cf.Version,
		RequiredInputs:       cf.RequiredInputs,
		DossierSpec:          cf.Dossier,
		AcceptanceThresholds: cf.AcceptanceThresholds,
	}
	for _, tf := range cf.Tasks {
		card.Tasks = append(card.Tasks, domain.Task{
			ID:         tf.ID,
			ToolRef:    tf.Tool,
			Parameters: tf.Parameters,
			DependsOn:  tf.DependsOn,
			OutputKey:  tf.OutputKey,
			Gate:       tf.Gate,
			GatePolicy: tf.GatePolicy,
		})
	}
	return card, nil
}

// LoadCardFile reads and decodes a card from disk.
func LoadCardFile(path string) (domain.Card, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return domain.Card{}, fmt.Errorf("read card %s: %w", path, err)
	}
	card, err := ParseCard(data)
	if err != nil {
		return domain.Card{}, fmt.Errorf("card %s: %w", path, err)
	}
	return card, nil
}

// LoadDir loads every .yaml/.yml card in dir into the catalog, in sorted
// file order. The first bad card aborts the load.
func LoadDir(catalog *CardCatalog, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("read card dir %s: %w", dir, err)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		paths = append(paths, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(paths)

	for _, path := range paths {
		card, err := LoadCardFile(path)
		if err != nil {
			return 0, err
		}
		if err := catalog.Register(card); err != nil {
			return 0, fmt.Errorf("card %s: %w", path, err)
		}
	}
	return len(paths), nil
}
