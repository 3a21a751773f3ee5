package agent

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/sandevgo/vexd/pkg/log"
)

// Status of an agent as seen by the management surface.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusRunning Status = "running"
	StatusError   Status = "error"
)

const definitionFile = "agent.yaml"

// Params are the tunables a triage agent reads from its definition.
type Params struct {
	MinChars          int      `yaml:"min_chars"`
	MinNovelty        float64  `yaml:"min_novelty"`
	TargetCollections []string `yaml:"target_collections"`
	SaveAssistant     bool     `yaml:"save_assistant"`
	TagKeywords       []string `yaml:"tag_keywords"`
}

func (p Params) withDefaults() Params {
	if p.MinChars <= 0 {
		p.MinChars = 80
	}
	if p.MinNovelty <= 0 {
		p.MinNovelty = 0.85
	}
	if len(p.TargetCollections) == 0 {
		p.TargetCollections = []string{"general"}
	}
	return p
}

type definition struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"`
	Enabled  bool     `yaml:"enabled"`
	Triggers []string `yaml:"triggers"`
	Params   Params   `yaml:"params"`
}

// Record is a point-in-time copy of one registered agent. Tasks hold the
// copy they were dispatched with, so a rescan mid-run cannot change what
// a running task sees.
type Record struct {
	ID        string
	Name      string
	Type      string
	Enabled   bool
	Triggers  []string
	Params    Params
	Status    Status
	LastError string
}

// Registry discovers agents under a directory, one subdirectory per agent
// with an agent.yaml inside. Log buffers survive rescans.
type Registry struct {
	dir string

	mu     sync.Mutex
	agents map[string]*Record
	logs   map[string]*LogBuffer
}

func NewRegistry(dir string) *Registry {
	return &Registry{
		dir:    dir,
		agents: make(map[string]*Record),
		logs:   make(map[string]*LogBuffer),
	}
}

// Scan rebuilds the agent set from disk. Directories without a readable
// agent.yaml are logged and skipped; a missing agents directory yields an
// empty registry.
func (r *Registry) Scan(ctx context.Context) error {
	logger := log.FromCtx(ctx)

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			r.mu.Lock()
			r.agents = make(map[string]*Record)
			r.mu.Unlock()

			return nil
		}

		return fmt.Errorf("read agents dir: %w", err)
	}

	next := make(map[string]*Record)

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		id := entry.Name()

		def, err := r.loadDefinition(id)
		if err != nil {
			logger.Warn().Err(err).Str("agent", id).Msg("skipping agent")

			continue
		}

		rec := &Record{
			ID:       id,
			Name:     def.Name,
			Type:     def.Type,
			Enabled:  def.Enabled,
			Triggers: def.Triggers,
			Params:   def.Params.withDefaults(),
			Status:   StatusIdle,
		}
		if rec.Name == "" {
			rec.Name = id
		}

		next[id] = rec
	}

	r.mu.Lock()
	for id, prev := range r.agents {
		if rec, ok := next[id]; ok {
			rec.Status = prev.Status
			rec.LastError = prev.LastError
		}
	}
	r.agents = next
	r.mu.Unlock()

	logger.Info().Int("count", len(next)).Msg("agents scanned")

	return nil
}

func (r *Registry) loadDefinition(id string) (definition, error) {
	var def definition

	data, err := os.ReadFile(filepath.Join(r.dir, id, definitionFile))
	if err != nil {
		return def, err
	}

	if err := yaml.Unmarshal(data, &def); err != nil {
		return def, fmt.Errorf("parse %s: %w", definitionFile, err)
	}

	return def, nil
}

// List returns copies of all agents ordered by id.
func (r *Registry) List() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]Record, 0, len(r.agents))
	for _, rec := range r.agents {
		out = append(out, *rec)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

func (r *Registry) Get(id string) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.agents[id]
	if !ok {
		return Record{}, false
	}

	return *rec, true
}

// SetEnabled flips the flag in memory and persists it back into the
// agent's yaml file, touching only the enabled key.
func (r *Registry) SetEnabled(ctx context.Context, id string, enabled bool) error {
	r.mu.Lock()
	rec, ok := r.agents[id]
	if ok {
		rec.Enabled = enabled
	}
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("unknown agent: %s", id)
	}

	path := filepath.Join(r.dir, id, definitionFile)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read agent config: %w", err)
	}

	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse agent config: %w", err)
	}

	doc["enabled"] = enabled

	out, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode agent config: %w", err)
	}

	if err := os.WriteFile(path, out, 0o644); err != nil {
		return fmt.Errorf("write agent config: %w", err)
	}

	log.FromCtx(ctx).Info().Str("agent", id).Bool("enabled", enabled).Msg("agent toggled")

	return nil
}

// setStatus is a no-op when the agent vanished in a rescan.
func (r *Registry) setStatus(id string, status Status, lastError string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.agents[id]; ok {
		rec.Status = status
		rec.LastError = lastError
	}
}

func (r *Registry) logBuffer(id string) *LogBuffer {
	r.mu.Lock()
	defer r.mu.Unlock()

	buf, ok := r.logs[id]
	if !ok {
		buf = &LogBuffer{}
		r.logs[id] = buf
	}

	return buf
}

// AppendLog adds one line to the agent's rolling log.
func (r *Registry) AppendLog(id, line string) {
	r.logBuffer(id).Append(line)
}

// Logs returns the agent's rolling log, oldest first.
func (r *Registry) Logs(id string) []string {
	return r.logBuffer(id).Lines()
}

// ConfigText returns the raw yaml of the agent definition for editing.
func (r *Registry) ConfigText(id string) (string, error) {
	if _, ok := r.Get(id); !ok {
		return "", fmt.Errorf("unknown agent: %s", id)
	}

	data, err := os.ReadFile(filepath.Join(r.dir, id, definitionFile))
	if err != nil {
		return "", fmt.Errorf("read agent config: %w", err)
	}

	return string(data), nil
}

// SaveConfigText validates, writes and rescans so the new definition takes
// effect for subsequent dispatches.
func (r *Registry) SaveConfigText(ctx context.Context, id, text string) error {
	if _, ok := r.Get(id); !ok {
		return fmt.Errorf("unknown agent: %s", id)
	}

	var def definition
	if err := yaml.Unmarshal([]byte(text), &def); err != nil {
		return fmt.Errorf("parse agent config: %w", err)
	}

	path := filepath.Join(r.dir, id, definitionFile)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write agent config: %w", err)
	}

	return r.Scan(ctx)
}
