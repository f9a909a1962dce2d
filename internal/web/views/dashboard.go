package views

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

// ResourceCard summarizes one served resource on the dashboard.
type ResourceCard struct {
	Name    string
	Table   string
	Columns int
}

// Dashboard lists every served resource.
func Dashboard(cards []ResourceCard) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		if len(cards) == 0 {
			h.raw(`<p>No resources are configured.</p>`)
			return h.err
		}
		h.raw(`<table><thead><tr><th>Resource</th><th>Table</th><th>Columns</th><th></th></tr></thead><tbody>`)
		for _, c := range cards {
			h.raw("<tr><td>")
			h.link(URL(c.Name, "list", nil), "", c.Name)
			h.raw("</td><td>")
			h.text(c.Table)
			h.raw("</td><td>")
			h.raw(strconv.Itoa(c.Columns))
			h.raw(`</td><td class="actions">`)
			h.link(URL(c.Name, "create", nil), "", "New record")
			h.raw("</td></tr>")
		}
		h.raw(`</tbody></table>`)
		return h.err
	})
}
