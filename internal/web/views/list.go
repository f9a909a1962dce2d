package views

import (
	"context"
	"io"
	"net/url"
	"strconv"

	"github.com/JonMunkholm/crud/internal/crud"
	"github.com/JonMunkholm/crud/internal/storage"
	"github.com/a-h/templ"
)

// pageWindow is how many page links are shown on each side of the current page.
const pageWindow = 3

// List renders one page of records with its search form, sortable headers
// and pager. err, when set, is shown above the table.
func List(resource string, page *crud.ListPage, err error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		if err != nil {
			msg := crud.MapError(err)
			h.render(ctx, ErrorAlert(msg.Message, msg.Action, msg.Code))
		}

		h.raw(`<p>`)
		h.link(URL(resource, crud.OpCreate, nil), "button", "New record")
		h.raw(`</p>`)
		searchForm(h, resource, page)

		if len(page.Records) == 0 {
			h.raw(`<p>No records found.</p>`)
		} else {
			recordTable(h, resource, page)
		}
		pager(h, resource, page)
		return h.err
	})
}

// RowKey returns the primary key of rec as strings, in key order.
func RowKey(rec storage.Record, primaryKey []string) []string {
	key := make([]string, len(primaryKey))
	for i, col := range primaryKey {
		key[i] = crud.FormatValue(rec[col])
	}
	return key
}

// listParams returns the search and order parameters the page was built
// from, so links can carry them.
func listParams(page *crud.ListPage) url.Values {
	v := url.Values{}
	if page.Search.Active {
		v.Set("search", page.Search.Text)
		v.Set("columns", strconv.Itoa(page.Search.Column))
		if page.Search.Exact {
			v.Set("exact", "true")
		}
	}
	if page.Order != nil {
		v.Set("o", page.Order.Column)
		v.Set("ot", string(page.Order.Direction))
	}
	return v
}

func searchForm(h *html, resource string, page *crud.ListPage) {
	h.raw(`<form method="get" class="search"`)
	h.attr("action", URL(resource, crud.OpList, nil))
	h.raw(`><select name="columns">`)
	for i, col := range page.Columns {
		h.rawf(`<option value="%d"`, i)
		if page.Search.Active && page.Search.Column == i {
			h.raw(" selected")
		}
		h.raw(">")
		h.text(col)
		h.raw("</option>")
	}
	h.raw(`</select> <input type="search" name="search"`)
	h.attr("value", page.Search.Text)
	h.raw(`> <label><input type="checkbox" name="exact" value="true"`)
	if page.Search.Exact {
		h.raw(" checked")
	}
	h.raw(`> Exact match</label> `)
	if page.Order != nil {
		h.hidden("o", page.Order.Column)
		h.hidden("ot", string(page.Order.Direction))
	}
	h.raw(`<button type="submit">Search</button>`)
	if page.Search.Active {
		h.raw(" ")
		h.link(URL(resource, crud.OpList, nil), "", "Clear")
	}
	h.raw(`</form>`)
}

func recordTable(h *html, resource string, page *crud.ListPage) {
	base := listParams(page)

	h.raw(`<table><thead><tr>`)
	for _, col := range page.Columns {
		dir := storage.Asc
		marker := ""
		if page.Order != nil && page.Order.Column == col {
			dir = page.Reverse
			marker = " ▲"
			if page.Order.Direction == storage.Desc {
				marker = " ▼"
			}
		}
		params := cloneValues(base)
		params.Set("o", col)
		params.Set("ot", string(dir))

		h.raw("<th>")
		h.link(URL(resource, crud.OpList, params), "", col+marker)
		h.raw("</th>")
	}
	h.raw(`<th></th></tr></thead><tbody>`)

	for _, rec := range page.Records {
		key := KeyParams(RowKey(rec, page.PrimaryKey))
		h.raw("<tr>")
		for _, col := range page.Columns {
			h.raw("<td>")
			h.text(crud.FormatValue(rec[col]))
			h.raw("</td>")
		}
		h.raw(`<td class="actions">`)
		h.link(URL(resource, crud.OpRead, key), "", "View")
		h.link(URL(resource, crud.OpEdit, key), "", "Edit")
		h.link(URL(resource, crud.OpDelete, key), "", "Delete")
		h.raw("</td></tr>")
	}
	h.raw(`</tbody></table>`)
}

func pager(h *html, resource string, page *crud.ListPage) {
	if page.TotalPages <= 1 {
		h.rawf(`<p class="pager">%d record(s)</p>`, page.Total)
		return
	}

	base := listParams(page)
	pageURL := func(n int) string {
		params := cloneValues(base)
		params.Set("p", strconv.Itoa(n))
		return URL(resource, crud.OpList, params)
	}

	h.rawf(`<p class="pager">Page %d of %d (%d records) `, page.Page, page.TotalPages, page.Total)
	if page.Page > 1 {
		h.link(pageURL(page.Page-1), "", "« Prev")
	}
	lo, hi := page.Page-pageWindow, page.Page+pageWindow
	if lo > 1 {
		h.link(pageURL(1), "", "1")
		if lo > 2 {
			h.raw("<span>…</span>")
		}
	}
	for n := max(lo, 1); n <= min(hi, page.TotalPages); n++ {
		if n == page.Page {
			h.rawf("<span><strong>%d</strong></span>", n)
			continue
		}
		h.link(pageURL(n), "", strconv.Itoa(n))
	}
	if hi < page.TotalPages {
		if hi < page.TotalPages-1 {
			h.raw("<span>…</span>")
		}
		h.link(pageURL(page.TotalPages), "", strconv.Itoa(page.TotalPages))
	}
	if page.Page < page.TotalPages {
		h.link(pageURL(page.Page+1), "", "Next »")
	}
	h.raw("</p>")
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v)+2)
	for k, vs := range v {
		out[k] = append([]string(nil), vs...)
	}
	return out
}
