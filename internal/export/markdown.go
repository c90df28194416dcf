package export

import (
	"context"
	"fmt"
	"strings"
)

const descriptionLimit = 500

// Markdown renders the workstream digest: header, the query stack
// that produced it, then one section per ticket with its recent
// changes. A ticket whose fetch fails gets an error stub so the rest
// of the document still renders.
func (e *Exporter) Markdown(ctx context.Context, req Request) (string, error) {
	if len(req.Keys) == 0 {
		return "", fmt.Errorf("markdown export: no tickets provided")
	}

	name := req.Name
	if name == "" {
		name = "Workstream"
	}
	cutoff := e.cutoff(req.Days)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", name)
	fmt.Fprintf(&b, "**Export Date:** %s\n", e.now().UTC().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "**Time Range:** Last %d days\n", req.Days)
	fmt.Fprintf(&b, "**Ticket Count:** %d\n\n", len(req.Keys))

	if len(req.Queries) > 0 {
		b.WriteString("## Queries\n\n")
		for i, def := range req.Queries {
			name := def.Name
			if name == "" {
				name = fmt.Sprintf("Query %d", i+1)
			}
			fmt.Fprintf(&b, "%d. **%s**\n   ```jql\n   %s\n   ```\n\n", i+1, name, def.Expression)
		}
	}

	b.WriteString("## Tickets\n\n")

	for _, key := range req.Keys {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("markdown export: %w", err)
		}

		details, err := e.fetch.Details(ctx, key)
		if err != nil {
			fmt.Fprintf(&b, "### %s\n*Error fetching details*\n\n---\n\n", key)
			continue
		}

		fmt.Fprintf(&b, "### %s: %s\n\n", details.Key, details.Summary)
		fmt.Fprintf(&b, "- **Status:** %s\n", details.Status)
		fmt.Fprintf(&b, "- **Assignee:** %s\n", details.Assignee)
		fmt.Fprintf(&b, "- **Priority:** %s\n", details.Priority)
		if details.Estimation != "" {
			fmt.Fprintf(&b, "- **Estimation:** %s\n", details.Estimation)
		}
		fmt.Fprintf(&b, "- **URL:** %s/browse/%s\n\n", e.browseURL, details.Key)

		if details.Description != "" {
			desc := details.Description
			if len(desc) > descriptionLimit {
				desc = desc[:descriptionLimit] + "..."
			}
			fmt.Fprintf(&b, "**Description:**\n%s\n\n", desc)
		}

		recent := details.FilterByAge(cutoff)
		if len(recent.Changes) > 0 {
			fmt.Fprintf(&b, "**Recent Changes (Last %d days):**\n", req.Days)
			for _, ch := range recent.Changes {
				fmt.Fprintf(&b, "- `%s` **%s**: %s changed from `%s` to `%s`\n",
					ch.Date.UTC().Format("2006-01-02 15:04"), ch.Author, ch.Field, ch.From, ch.To)
			}
			b.WriteString("\n")
		} else {
			fmt.Fprintf(&b, "*No changes in the last %d days*\n\n", req.Days)
		}

		b.WriteString("---\n\n")
	}

	return b.String(), nil
}
