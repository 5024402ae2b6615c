package workflow

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleCardYAML = `name: qbr
version: 1
required_inputs:
  - account
tasks:
  - id: ground
    tool: knowledge.ground
    parameters:
      query: "quarterly results for ${account}"
      space: accounts
  - id: summarize
    tool: triangulate
    parameters:
      task: "summarize: ${ground.answer}"
      models:
        - m1
        - m2
    depends_on:
      - ground
    gate: true
    gate_policy: no_pii
dossier:
  summary: "${summarize.output}"
acceptance_thresholds:
  ground.coverage: 0.5
`

func TestParseCard(t *testing.T) {
	card, err := ParseCard([]byte(sampleCardYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if card.Name != "qbr" || card.Version != 1 {
		t.Fatalf("card header: %+v", card)
	}
	if len(card.RequiredInputs) != 1 || card.RequiredInputs[0] != "account" {
		t.Fatalf("required inputs: %v", card.RequiredInputs)
	}
	if len(card.Tasks) != 2 {
		t.Fatalf("tasks: %+v", card.Tasks)
	}

	summarize := card.Tasks[1]
	if summarize.ToolRef != "triangulate" || !summarize.Gate || summarize.GatePolicy != "no_pii" {
		t.Fatalf("summarize task: %+v", summarize)
	}
	if len(summarize.DependsOn) != 1 || summarize.DependsOn[0] != "ground" {
		t.Fatalf("dependencies: %v", summarize.DependsOn)
	}
	models, ok := summarize.Parameters["models"].([]any)
	if !ok || len(models) != 2 {
		t.Fatalf("models parameter: %v", summarize.Parameters["models"])
	}
	if card.DossierSpec["summary"] != "${summarize.output}" {
		t.Fatalf("dossier spec: %v", card.DossierSpec)
	}
	if card.AcceptanceThresholds["ground.coverage"] != 0.5 {
		t.Fatalf("thresholds: %v", card.AcceptanceThresholds)
	}
}

func TestParseCardRejectsBadYAML(t *testing.T) {
	if _, err := ParseCard([]byte("tasks: [")); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeCard(t, dir, "qbr.yaml", sampleCardYAML)
	writeCard(t, dir, "notes.txt", "not a card")

	catalog := NewCardCatalog()
	count, err := LoadDir(catalog, dir)
	if err != nil {
		t.Fatalf("load dir: %v", err)
	}
	if count != 1 {
		t.Fatalf("loaded %d cards, want 1", count)
	}
	if _, err := catalog.Resolve("qbr"); err != nil {
		t.Fatalf("resolve loaded card: %v", err)
	}
}

func TestLoadDirRejectsInvalidCard(t *testing.T) {
	dir := t.TempDir()
	writeCard(t, dir, "bad.yaml", "name: bad\ntasks:\n  - id: a\n    tool: t\n    depends_on: [a]\n")

	catalog := NewCardCatalog()
	if _, err := LoadDir(catalog, dir); err == nil {
		t.Fatalf("expected error for self-dependent card")
	}
}

func writeCard(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestCardWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	writeCard(t, dir, "qbr.yaml", sampleCardYAML)

	catalog := NewCardCatalog()
	if _, err := LoadDir(catalog, dir); err != nil {
		t.Fatalf("initial load: %v", err)
	}

	watcher, err := NewCardWatcher(dir, catalog, nil)
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	watcher.debounceTime = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := watcher.Start(ctx); err != nil {
		t.Fatalf("start watcher: %v", err)
	}
	defer func() {
		if err := watcher.Stop(); err != nil {
			t.Errorf("stop watcher: %v", err)
		}
	}()
	if !watcher.IsRunning() {
		t.Fatalf("watcher should be running")
	}

	writeCard(t, dir, "extra.yaml", "name: extra\ntasks:\n  - id: a\n    tool: t\n")

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := catalog.Resolve("extra"); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("new card was not loaded")
		}
		time.Sleep(20 * time.Millisecond)
	}
}
