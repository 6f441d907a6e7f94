// Package snapshot builds the published configuration document from
// current agent-configuration and system-default rows. Build is a pure
// function of its inputs; two builds over identical rows produce
// byte-identical output.
package snapshot

import (
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"strconv"

	"github.com/arlobright/signalbox/internal/fault"
	"github.com/arlobright/signalbox/internal/models"
)

// ModelSpec is an agent's model assignment. It serializes as a bare
// string when there are no fallbacks, or as {primary, fallbacks} when
// there are — consumers branch on that shape, so it is a contract.
type ModelSpec struct {
	Primary   string
	Fallbacks []string
}

func (m ModelSpec) MarshalJSON() ([]byte, error) {
	if len(m.Fallbacks) == 0 {
		return json.Marshal(m.Primary)
	}
	return json.Marshal(struct {
		Primary   string   `json:"primary"`
		Fallbacks []string `json:"fallbacks"`
	}{m.Primary, m.Fallbacks})
}

func (m *ModelSpec) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		*m = ModelSpec{Primary: bare}
		return nil
	}
	var full struct {
		Primary   string   `json:"primary"`
		Fallbacks []string `json:"fallbacks"`
	}
	if err := json.Unmarshal(data, &full); err != nil {
		return err
	}
	*m = ModelSpec{Primary: full.Primary, Fallbacks: full.Fallbacks}
	return nil
}

// AgentEntry is one agent's published configuration. Reasoning depth is
// deliberately absent: it is applied at spawn time by the orchestrator,
// not at config-load time.
type AgentEntry struct {
	ID        string    `json:"id"`
	Model     ModelSpec `json:"model"`
	Subagents []string  `json:"subagents,omitempty"`
}

// Settings carries the whitelisted system defaults.
type Settings struct {
	MaxSpawnDepth    *int    `json:"max_spawn_depth,omitempty"`
	BroadcastEnabled *bool   `json:"broadcast_enabled,omitempty"`
	DefaultModel     *string `json:"default_model,omitempty"`
}

// Document is the consumer-facing configuration artifact.
type Document struct {
	Models   []string     `json:"models"`
	Agents   []AgentEntry `json:"agents"`
	Settings Settings     `json:"settings"`
}

// Encode serializes the document deterministically: fixed struct field
// order, sorted slices (established by Build), trailing newline.
func (d *Document) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode: %w", err)
	}
	return append(data, '\n'), nil
}

// Build maps current rows into a Document. No I/O; malformed rows are
// skipped with a log line and never fail the build.
func Build(agents []models.AgentConfig, defaults []models.SystemDefault) *Document {
	doc := &Document{
		Models: []string{},
		Agents: []AgentEntry{},
	}

	allowSet := make(map[string]bool)
	for _, row := range agents {
		entry := AgentEntry{ID: row.Name}
		entry.Model.Primary = row.Model
		allowSet[row.Model] = true

		if fallbacks, ok := parseStringList(row.Name, "fallback_models", row.FallbackModels); ok {
			entry.Model.Fallbacks = fallbacks
			for _, m := range fallbacks {
				allowSet[m] = true
			}
		}
		if subagents, ok := parseStringList(row.Name, "subagents", row.Subagents); ok {
			sort.Strings(subagents)
			entry.Subagents = subagents
		}
		doc.Agents = append(doc.Agents, entry)
	}

	for m := range allowSet {
		doc.Models = append(doc.Models, m)
	}
	sort.Strings(doc.Models)
	sort.Slice(doc.Agents, func(i, j int) bool {
		return doc.Agents[i].ID < doc.Agents[j].ID
	})

	for _, row := range defaults {
		applyDefault(&doc.Settings, row)
	}

	return doc
}

// applyDefault folds one system-default row into the settings. Unknown
// keys are ignored; type mismatches are logged and skipped; out-of-range
// depths are clamped rather than rejected.
func applyDefault(s *Settings, row models.SystemDefault) {
	key := DefaultKey(row.Key)
	if !recognized(key) {
		return
	}

	switch key {
	case KeyMaxSpawnDepth:
		n, err := parseInt(row)
		if err != nil {
			log.Printf("snapshot: %v", err)
			return
		}
		if n < minSpawnDepth {
			log.Printf("snapshot: %s=%d below range, clamping to %d", row.Key, n, minSpawnDepth)
			n = minSpawnDepth
		}
		if n > maxSpawnDepth {
			log.Printf("snapshot: %s=%d above range, clamping to %d", row.Key, n, maxSpawnDepth)
			n = maxSpawnDepth
		}
		s.MaxSpawnDepth = &n
	case KeyBroadcastEnabled:
		b, err := parseBool(row)
		if err != nil {
			log.Printf("snapshot: %v", err)
			return
		}
		s.BroadcastEnabled = &b
	case KeyDefaultModel:
		if row.ValueType != models.ValueString {
			log.Printf("snapshot: %s declared %s, want string; skipping", row.Key, row.ValueType)
			return
		}
		v := row.Value
		s.DefaultModel = &v
	}
}

func parseInt(row models.SystemDefault) (int, error) {
	if row.ValueType != models.ValueInteger {
		return 0, fmt.Errorf("%s declared %s, want integer; skipping: %w", row.Key, row.ValueType, fault.ErrConfigParse)
	}
	n, err := strconv.Atoi(row.Value)
	if err != nil {
		return 0, fmt.Errorf("%s value %q is not an integer; skipping: %w", row.Key, row.Value, fault.ErrConfigParse)
	}
	return n, nil
}

func parseBool(row models.SystemDefault) (bool, error) {
	if row.ValueType != models.ValueBoolean {
		return false, fmt.Errorf("%s declared %s, want boolean; skipping: %w", row.Key, row.ValueType, fault.ErrConfigParse)
	}
	b, err := strconv.ParseBool(row.Value)
	if err != nil {
		return false, fmt.Errorf("%s value %q is not a boolean; skipping: %w", row.Key, row.Value, fault.ErrConfigParse)
	}
	return b, nil
}

// parseStringList decodes a JSON array column. Returns ok=false for
// empty or malformed values; malformed values are logged.
func parseStringList(agent, column, raw string) ([]string, bool) {
	if raw == "" || raw == "null" {
		return nil, false
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		log.Printf("snapshot: agent %s: bad %s %q; skipping", agent, column, raw)
		return nil, false
	}
	if len(out) == 0 {
		return nil, false
	}
	return out, true
}
