package reconciler

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/example/dashlink/pkg/linkboard"
)

// Engine binds the reconciler to the linkboard's event channels. It is the
// renderer daemon's event loop: each notification is a level trigger, so the
// engine re-reads the slot it names and drives the state machine with
// whatever is current, processing one trigger to completion before the next.
type Engine struct {
	client       *linkboard.Client
	instanceName string
	outputDir    string
	leader       func() bool
	rec          *Reconciler
	dirty        bool
}

// NewEngine creates a renderer engine. outputDir, when non-empty, is where
// rendered dashboards are exported as JSON files whenever the dashboard set
// changes. leader gates all mutations; a non-leader engine observes events
// but acts on none of them.
func NewEngine(client *linkboard.Client, instanceName, outputDir string, leader func() bool) *Engine {
	e := &Engine{
		client:       client,
		instanceName: instanceName,
		outputDir:    outputDir,
		leader:       leader,
	}
	e.rec = NewReconciler(client, e.markDirty)
	return e
}

// Reconciler exposes the underlying state machine, mainly for inspection.
func (e *Engine) Reconciler() *Reconciler {
	return e.rec
}

// Run restores persisted state, then blocks processing linkboard events
// until the context is cancelled. Event-level failures are logged and the
// loop continues; the worst outcome of any one event is a single link left
// invalid until conditions change.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.rec.Resume(ctx); err != nil {
		return fmt.Errorf("failed to resume reconciler state: %w", err)
	}
	e.exportDashboards()

	recordSub, err := e.client.SubscribeRecordEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to record events: %w", err)
	}
	defer recordSub.Close()

	sourceSub, err := e.client.SubscribeSourceEvents(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to source events: %w", err)
	}
	defer sourceSub.Close()

	log.Printf("[Renderer] Started for instance '%s'", e.instanceName)

	for {
		select {
		case <-ctx.Done():
			log.Printf("[Renderer] Shutting down...")
			return nil

		case linkID, ok := <-recordSub.Events():
			if !ok {
				log.Printf("[Renderer] Record subscription closed")
				return nil
			}
			if !e.leader() {
				continue
			}
			e.handleRecordEvent(ctx, linkID)

		case _, ok := <-sourceSub.Events():
			if !ok {
				log.Printf("[Renderer] Source subscription closed")
				return nil
			}
			if !e.leader() {
				continue
			}
			e.handleSourceEvent(ctx)
		}
	}
}

// handleRecordEvent re-reads a link's record slot. An empty slot means the
// link was torn down; anything else is reconciled as the link's current
// record.
func (e *Engine) handleRecordEvent(ctx context.Context, linkID string) {
	record, err := e.client.GetRecord(ctx, linkID)
	switch {
	case linkboard.IsNotFound(err):
		e.logEvent("link_broken", map[string]interface{}{"link_id": linkID})
		if err := e.rec.LinkBroken(ctx, linkID); err != nil {
			log.Printf("[Renderer] Error dropping link %s: %v", linkID, err)
		}

	case err != nil:
		log.Printf("[Renderer] Error reading record for link %s: %v", linkID, err)

	default:
		e.logEvent("record_received", map[string]interface{}{
			"link_id": linkID,
			"removed": record.Removed,
		})
		if err := e.rec.Reconcile(ctx, record); err != nil {
			log.Printf("[Renderer] Error reconciling link %s: %v", linkID, err)
		}

		// A voluntary retraction drops state without a change signal, but
		// the exported file for the retracted dashboard still has to go.
		if record.Removed {
			e.markDirty()
		}
	}

	e.flushDashboards()
}

// handleSourceEvent re-reads the resource set and sweeps all tracked links.
func (e *Engine) handleSourceEvent(ctx context.Context) {
	sources, err := e.client.GetSources(ctx)
	if err != nil {
		log.Printf("[Renderer] Error reading sources: %v", err)
		return
	}

	e.logEvent("sources_renewed", map[string]interface{}{"count": len(sources)})

	if err := e.rec.RenewResources(ctx, sources); err != nil {
		log.Printf("[Renderer] Error renewing resources: %v", err)
	}

	e.flushDashboards()
}

func (e *Engine) markDirty() {
	e.dirty = true
}

// flushDashboards re-exports the dashboard set if any trigger since the
// last flush changed it. A renewal sweep can change several links; they are
// exported once.
func (e *Engine) flushDashboards() {
	if !e.dirty {
		return
	}
	e.dirty = false
	e.exportDashboards()
}

// exportDashboards materializes the active dashboards as JSON files in the
// output directory, one per link, and removes files for links that no
// longer render. With no output directory configured it only logs the count.
func (e *Engine) exportDashboards() {
	artifacts := e.rec.Dashboards()

	e.logEvent("dashboards_changed", map[string]interface{}{"count": len(artifacts)})

	if e.outputDir == "" {
		return
	}

	if err := os.MkdirAll(e.outputDir, 0o755); err != nil {
		log.Printf("[Renderer] Error creating output directory: %v", err)
		return
	}

	current := make(map[string]bool, len(artifacts))
	for _, artifact := range artifacts {
		name := dashboardFileName(artifact.Source.LinkID)
		current[name] = true

		body, err := linkboard.DecodeTemplate(artifact.Dashboard)
		if err != nil {
			log.Printf("[Renderer] Error decoding dashboard for link %s: %v", artifact.Source.LinkID, err)
			continue
		}

		path := filepath.Join(e.outputDir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			log.Printf("[Renderer] Error writing dashboard %s: %v", path, err)
		}
	}

	// Drop files for dashboards that no longer exist
	entries, err := os.ReadDir(e.outputDir)
	if err != nil {
		log.Printf("[Renderer] Error listing output directory: %v", err)
		return
	}
	for _, entry := range entries {
		name := entry.Name()
		if !strings.HasSuffix(name, ".json") || current[name] {
			continue
		}
		if err := os.Remove(filepath.Join(e.outputDir, name)); err != nil {
			log.Printf("[Renderer] Error removing stale dashboard %s: %v", name, err)
		}
	}
}

func dashboardFileName(linkID string) string {
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, linkID)
	return safe + ".json"
}

// logEvent logs a structured event in JSON format.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "renderer"
	data["event_type"] = eventType
	data["instance"] = e.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Renderer] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
