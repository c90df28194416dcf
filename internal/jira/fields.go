package jira

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Common custom-field names probed when no explicit override is
// configured, in priority order. Mirrors what Jira instances name
// these fields in the wild.
var (
	estimationFieldNames = []string{
		"Story point estimate", // Atlassian default
		"Story Points",
		"Points",
		"Estimate",
		"Story points",
		"Effort",
		"T-Shirt Size",
		"Size",
	}
	sprintFieldNames = []string{
		"Sprint",
		"Sprints",
		"Active Sprint",
		"Active Sprints",
	}
)

// customFieldIDs is the resolved set of dynamic field IDs one request
// needs. Empty strings mean the field does not exist on the instance.
type customFieldIDs struct {
	Estimation string
	EpicLink   string
	ParentLink string
	Sprint     string
}

// extras lists the non-empty custom field IDs for a search fields
// parameter.
func (ids customFieldIDs) extras() []string {
	var out []string
	for _, id := range []string{ids.Estimation, ids.EpicLink, ids.ParentLink, ids.Sprint} {
		if id != "" {
			out = append(out, id)
		}
	}
	return out
}

// fieldCache maps lower-cased custom field names to their field IDs,
// populated once per client from /rest/api/2/field.
type fieldCache struct {
	mu     sync.Mutex
	byName map[string]string
	loaded bool
}

func newFieldCache() *fieldCache {
	return &fieldCache{byName: make(map[string]string)}
}

// customFieldIDs resolves the estimation, epic link, parent link, and
// sprint field IDs, loading the field list lazily on first use. A
// failed field fetch degrades to no custom fields rather than failing
// the caller: searches still work, just without estimation/sprint
// data.
func (c *Client) customFieldIDs(ctx context.Context) customFieldIDs {
	return customFieldIDs{
		Estimation: c.lookupWithOverride(ctx, c.cfg.EstimationField, estimationFieldNames),
		EpicLink:   c.customFieldID(ctx, "Epic Link"),
		ParentLink: c.customFieldID(ctx, "Parent Link"),
		Sprint:     c.lookupWithOverride(ctx, c.cfg.SprintField, sprintFieldNames),
	}
}

// lookupWithOverride tries the configured override name first, then
// the common-name list.
func (c *Client) lookupWithOverride(ctx context.Context, override string, commonNames []string) string {
	if override != "" {
		if id := c.customFieldID(ctx, override); id != "" {
			return id
		}
	}
	for _, name := range commonNames {
		if id := c.customFieldID(ctx, name); id != "" {
			return id
		}
	}
	return ""
}

// customFieldID returns the field ID for a custom field name, or ""
// when the instance has no such field.
func (c *Client) customFieldID(ctx context.Context, name string) string {
	c.fields.mu.Lock()
	defer c.fields.mu.Unlock()

	if !c.fields.loaded {
		c.loadFieldsLocked(ctx)
	}
	return c.fields.byName[strings.ToLower(name)]
}

// loadFieldsLocked fetches the instance field list and indexes the
// custom fields by lower-cased name. Callers hold c.fields.mu.
func (c *Client) loadFieldsLocked(ctx context.Context) {
	c.fields.loaded = true // one attempt per client, success or not

	var fields []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Custom bool   `json:"custom"`
	}
	if err := c.get(ctx, "/rest/api/2/field", nil, &fields); err != nil {
		slog.Warn("could not fetch custom fields", "error", err)
		return
	}
	for _, f := range fields {
		if f.Custom && f.Name != "" && f.ID != "" {
			c.fields.byName[strings.ToLower(f.Name)] = f.ID
		}
	}
	slog.Debug("custom fields indexed", "count", len(c.fields.byName))
}
