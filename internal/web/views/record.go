package views

import (
	"context"
	"io"

	"github.com/JonMunkholm/crud/internal/crud"
	"github.com/JonMunkholm/crud/internal/storage"
	"github.com/a-h/templ"
)

// Detail shows every visible column of one record.
func Detail(resource string, columns []string, rec storage.Record, key []string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw(`<table class="detail"><tbody>`)
		for _, col := range columns {
			v, ok := rec[col]
			if !ok {
				continue
			}
			h.raw("<tr><th>")
			h.text(col)
			h.raw("</th><td>")
			h.text(crud.FormatValue(v))
			h.raw("</td></tr>")
		}
		h.raw(`</tbody></table><p class="actions">`)
		h.link(URL(resource, crud.OpEdit, KeyParams(key)), "", "Edit")
		h.link(URL(resource, crud.OpDelete, KeyParams(key)), "", "Delete")
		h.link(URL(resource, crud.OpList, nil), "", "Back to list")
		h.raw("</p>")
		return h.err
	})
}

// ConfirmDelete asks before deleting the record identified by key. Only
// the POST it submits deletes.
func ConfirmDelete(resource string, key []string) templ.Component {
	return templ.ComponentFunc(func(_ context.Context, w io.Writer) error {
		h := &html{w: w}
		h.raw("<p>Delete record <strong>")
		h.text(joinKey(key))
		h.raw("</strong>? This cannot be undone.</p>")
		h.raw(`<form method="post"`)
		h.attr("action", URL(resource, crud.OpDelete, nil))
		h.raw(">")
		for _, id := range key {
			h.hidden("id", id)
		}
		h.raw(`<button type="submit" class="button">Delete</button> `)
		h.link(URL(resource, crud.OpList, nil), "", "Cancel")
		h.raw("</form>")
		return h.err
	})
}

// Form renders a create or edit form. key is nil when creating.
func Form(resource string, form *crud.Form, key []string, err error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &html{w: w}
		if err != nil {
			msg := crud.MapError(err)
			h.render(ctx, ErrorAlert(msg.Message, msg.Action, msg.Code))
		}
		if msg := form.Errors[""]; msg != "" {
			h.raw(`<p class="error">`)
			h.text(msg)
			h.raw("</p>")
		}

		op := crud.OpCreate
		if form.Editing {
			op = crud.OpEdit
		}
		h.raw(`<form method="post"`)
		h.attr("action", URL(resource, op, nil))
		h.raw(">")
		for _, id := range key {
			h.hidden("id", id)
		}
		for _, fd := range form.Fields {
			field(h, fd, form)
		}
		h.raw(`<button type="submit" class="button">Save</button> `)
		h.link(URL(resource, crud.OpList, nil), "", "Cancel")
		h.raw("</form>")
		return h.err
	})
}

func field(h *html, fd crud.FieldDescriptor, form *crud.Form) {
	id := "f_" + fd.Name
	value := form.Values[fd.Name]
	readonly := form.Editing && fd.Key

	h.raw(`<div class="field"><label`)
	h.attr("for", id)
	h.raw(">")
	h.text(fd.Label)
	if fd.Required && !readonly {
		h.raw(" *")
	}
	h.raw("</label><input")
	h.attr("id", id)
	h.attr("name", fd.Name)
	h.attr("type", fd.InputType())

	if fd.InputType() == "checkbox" {
		h.raw(` value="true"`)
		if truthy(value) {
			h.raw(" checked")
		}
	} else {
		h.attr("value", value)
	}
	if fd.Kind == storage.KindNumeric {
		h.raw(` step="any"`)
	}
	if fd.MaxLength > 0 {
		h.rawf(` maxlength="%d"`, fd.MaxLength)
	}
	if fd.Required && !readonly {
		h.raw(" required")
	}
	if readonly {
		h.raw(" disabled")
	} else if fd.Auto && value == "" {
		h.raw(` placeholder="default"`)
	}
	h.raw(">")

	if msg := form.Errors[fd.Name]; msg != "" {
		h.raw(`<div class="error">`)
		h.text(msg)
		h.raw("</div>")
	}
	h.raw("</div>")
}

func truthy(s string) bool {
	switch s {
	case "1", "t", "true", "TRUE", "True", "on", "yes":
		return true
	}
	return false
}
