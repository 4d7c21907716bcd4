// Package views synthesizes enriched, UI-ready entity views from raw graph
// state plus side-configuration entities.
package views

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gridnote/indexer/graph"
)

// StatusOption is one canonical status choice from the configuration
// entity.
type StatusOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
	Color string `json:"color,omitempty"`
	Order int    `json:"order,omitempty"`
}

// statusSynonyms maps normalized free-form status strings to canonical
// option values. Checked after exact value and label matches fail.
var statusSynonyms = map[string]string{
	"todo":        "to_do",
	"to do":       "to_do",
	"to-do":       "to_do",
	"backlog":     "to_do",
	"not started": "to_do",
	"in progress": "in_progress",
	"in-progress": "in_progress",
	"inprogress":  "in_progress",
	"doing":       "in_progress",
	"wip":         "in_progress",
	"started":     "in_progress",
	"done":        "done",
	"complete":    "done",
	"completed":   "done",
	"finished":    "done",
	"closed":      "done",
	"blocked":     "blocked",
	"on hold":     "blocked",
	"paused":      "blocked",
}

// StatusResolver normalizes free-form status strings against the canonical
// options held by a configuration entity elsewhere in the graph. Because
// that entity may not be indexed yet when first asked, resolution waits on
// the store's write path with a bounded timeout instead of failing
// immediately.
type StatusResolver struct {
	store    *graph.Store
	configID string
	timeout  time.Duration
}

// NewStatusResolver creates a resolver reading canonical options from the
// entity with the given id.
func NewStatusResolver(store *graph.Store, configID string, timeout time.Duration) *StatusResolver {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &StatusResolver{
		store:    store,
		configID: configID,
		timeout:  timeout,
	}
}

// Resolve maps a raw status string to a canonical option: exact value
// match, then label match, then the synonym table, falling back to the
// first canonical option.
func (r *StatusResolver) Resolve(ctx context.Context, raw string) (StatusOption, error) {
	options, err := r.Options(ctx)
	if err != nil {
		return StatusOption{}, err
	}
	if len(options) == 0 {
		return StatusOption{}, fmt.Errorf("status config entity %q has no options", r.configID)
	}

	for _, opt := range options {
		if opt.Value == raw {
			return opt, nil
		}
	}
	for _, opt := range options {
		if opt.Label == raw {
			return opt, nil
		}
	}

	if canonical, ok := statusSynonyms[normalizeStatus(raw)]; ok {
		for _, opt := range options {
			if opt.Value == canonical {
				return opt, nil
			}
		}
	}

	return options[0], nil
}

// Options returns the canonical options sorted by their declared order,
// waiting for the configuration entity if it is not indexed yet.
func (r *StatusResolver) Options(ctx context.Context) ([]StatusOption, error) {
	e, err := r.waitForConfig(ctx)
	if err != nil {
		return nil, err
	}

	raw, ok := e.Properties["options"].([]any)
	if !ok {
		return nil, fmt.Errorf("status config entity %q has no options list", r.configID)
	}

	options := make([]StatusOption, 0, len(raw))
	for _, item := range raw {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		options = append(options, StatusOption{
			Value: asString(m["value"]),
			Label: asString(m["label"]),
			Color: asString(m["color"]),
			Order: asInt(m["order"]),
		})
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].Order < options[j].Order })
	return options, nil
}

// waitForConfig blocks until the configuration entity is indexed, the
// timeout expires, or the context is cancelled. The wait is resolved by
// the store's write path, so indexing wakes it immediately.
func (r *StatusResolver) waitForConfig(ctx context.Context) (*graph.Entity, error) {
	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case e, ok := <-r.store.Wait(r.configID):
		if !ok {
			return nil, fmt.Errorf("store closed while waiting for %q", r.configID)
		}
		return e, nil
	case <-timer.C:
		return nil, fmt.Errorf("timed out waiting for status config entity %q", r.configID)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// normalizeStatus lowercases and collapses separators for synonym lookup.
func normalizeStatus(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.ReplaceAll(s, "_", " ")
	return s
}

func asString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v", v)
}

func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
