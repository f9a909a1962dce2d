// Package views renders the HTML screens of the CRUD interface as templ
// components.
package views

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/a-h/templ"
)

// URL returns the path of op on resource with params as its query.
func URL(resource, op string, params url.Values) string {
	u := "/" + url.PathEscape(resource) + "/" + op
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	return u
}

// KeyParams returns the id parameters for a primary key, in key order.
func KeyParams(key []string) url.Values {
	return url.Values{"id": append([]string(nil), key...)}
}

// html accumulates writes and keeps the first error.
type html struct {
	w   io.Writer
	err error
}

func (h *html) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *html) rawf(format string, args ...any) {
	if h.err == nil {
		_, h.err = fmt.Fprintf(h.w, format, args...)
	}
}

// text writes s escaped for element content and attribute values.
func (h *html) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *html) attr(name, value string) {
	h.raw(" " + name + `="`)
	h.text(value)
	h.raw(`"`)
}

func (h *html) link(href, class, label string) {
	h.raw("<a")
	h.attr("href", href)
	if class != "" {
		h.attr("class", class)
	}
	h.raw(">")
	h.text(label)
	h.raw("</a>")
}

func (h *html) hidden(name, value string) {
	h.raw(`<input type="hidden"`)
	h.attr("name", name)
	h.attr("value", value)
	h.raw(">")
}

func (h *html) render(ctx context.Context, c templ.Component) {
	if h.err == nil && c != nil {
		h.err = c.Render(ctx, h.w)
	}
}

const styles = `body{font-family:system-ui,sans-serif;margin:0;background:#f6f7f9;color:#1f2933}
header{background:#1f2933;color:#fff;padding:.75rem 1.5rem}header a{color:#fff;text-decoration:none;font-weight:600}
main{padding:1.5rem;max-width:72rem;margin:0 auto}
table{border-collapse:collapse;width:100%;background:#fff}th,td{border-bottom:1px solid #e4e7eb;padding:.4rem .6rem;text-align:left}
th a{color:inherit}.actions a{margin-right:.5rem}
.flash{background:#e3f9e5;border:1px solid #57ae5b;padding:.6rem;margin-bottom:1rem}
.alert{background:#ffeeee;border:1px solid #e12d39;padding:.6rem;margin-bottom:1rem}
.field{margin-bottom:.8rem}.field label{display:block;font-weight:600}.field .error{color:#e12d39}
.pager a,.pager span{margin-right:.4rem}.button{display:inline-block;padding:.35rem .8rem;background:#2680c2;color:#fff;text-decoration:none;border:0}`

// Page wraps body in the document layout. flash is shown once above body.
func Page(title, heading, flash string, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		if heading != "" {
			h.text(heading + " - ")
		}
		h.text(title)
		h.raw(`</title><style>` + styles + `</style></head><body><header>`)
		h.link("/", "", title)
		h.raw(`</header><main>`)
		if flash != "" {
			h.raw(`<div class="flash" role="status">`)
			h.text(flash)
			h.raw(`</div>`)
		}
		if heading != "" {
			h.raw("<h1>")
			h.text(heading)
			h.raw("</h1>")
		}
		h.render(ctx, body)
		h.raw(`</main></body></html>`)
		return h.err
	})
}

// ErrorAlert renders a user-facing error with its support code.
func ErrorAlert(message, action, code string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<div class="alert" role="alert"><strong>`)
		h.text(message)
		h.raw(`</strong>`)
		if action != "" {
			h.raw(" ")
			h.text(action)
		}
		if code != "" {
			h.raw(` <small>(Code: `)
			h.text(code)
			h.raw(`)</small>`)
		}
		h.raw(`</div>`)
		return h.err
	})
}

// ErrorPage is the body shown when an operation produced no view.
func ErrorPage(message, action, code, back string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		h.render(ctx, ErrorAlert(message, action, code))
		if back != "" {
			h.raw("<p>")
			h.link(back, "", "Back")
			h.raw("</p>")
		}
		return h.err
	})
}

func joinKey(key []string) string {
	return strings.Join(key, " / ")
}
