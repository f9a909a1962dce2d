package web

import (
	"github.com/JonMunkholm/crud/internal/crud"
	"github.com/JonMunkholm/crud/internal/storage"
	"github.com/JonMunkholm/crud/internal/web/views"
)

// JSON shapes returned when the client sends Accept: application/json.

type resourceJSON struct {
	Name    string `json:"name"`
	Table   string `json:"table"`
	Columns int    `json:"columns"`
}

type redirectJSON struct {
	Redirect string `json:"redirect"`
	Message  string `json:"message,omitempty"`
}

type rowJSON struct {
	Key    []string       `json:"key"`
	Values storage.Record `json:"values"`
}

type listJSON struct {
	Resource   string         `json:"resource"`
	Columns    []string       `json:"columns"`
	Records    []rowJSON      `json:"records"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
	Order      *storage.Order `json:"order,omitempty"`
}

type recordJSON struct {
	Resource string         `json:"resource"`
	Key      []string       `json:"key"`
	Record   storage.Record `json:"record,omitempty"`
	Confirm  bool           `json:"confirm,omitempty"`
}

type fieldJSON struct {
	Name      string `json:"name"`
	Label     string `json:"label"`
	Type      string `json:"type"`
	Required  bool   `json:"required"`
	MaxLength int    `json:"max_length,omitempty"`
	ReadOnly  bool   `json:"read_only,omitempty"`
}

type formJSON struct {
	Resource string            `json:"resource"`
	Key      []string          `json:"key,omitempty"`
	Fields   []fieldJSON       `json:"fields"`
	Values   map[string]string `json:"values"`
}

func dashboardJSON(cards []views.ResourceCard) []resourceJSON {
	out := make([]resourceJSON, len(cards))
	for i, c := range cards {
		out[i] = resourceJSON{Name: c.Name, Table: c.Table, Columns: c.Columns}
	}
	return out
}

func resultJSON(ctrl *crud.Controller, res crud.Result) any {
	name := ctrl.Name()
	switch res.View {
	case crud.ViewList:
		page := res.List
		rows := make([]rowJSON, len(page.Records))
		for i, rec := range page.Records {
			values := make(storage.Record, len(page.Columns))
			for _, col := range page.Columns {
				values[col] = rec[col]
			}
			rows[i] = rowJSON{Key: views.RowKey(rec, page.PrimaryKey), Values: values}
		}
		return listJSON{
			Resource:   name,
			Columns:    page.Columns,
			Records:    rows,
			Total:      page.Total,
			Page:       page.Page,
			PageSize:   page.PageSize,
			TotalPages: page.TotalPages,
			Order:      page.Order,
		}
	case crud.ViewForm:
		fields := make([]fieldJSON, len(res.Form.Fields))
		for i, fd := range res.Form.Fields {
			fields[i] = fieldJSON{
				Name:      fd.Name,
				Label:     fd.Label,
				Type:      fd.InputType(),
				Required:  fd.Required,
				MaxLength: fd.MaxLength,
				ReadOnly:  res.Form.Editing && fd.Key,
			}
		}
		return formJSON{Resource: name, Key: res.Key, Fields: fields, Values: res.Form.Values}
	case crud.ViewConfirm:
		return recordJSON{Resource: name, Key: res.Key, Confirm: true}
	default:
		return recordJSON{Resource: name, Key: res.Key, Record: res.Record}
	}
}
