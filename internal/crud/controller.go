// Package crud serves List, Read, Create, Edit and Delete for any table
// described by storage metadata, without per-entity code.
//
// A Controller is built once per resource. Construction introspects the
// table and caches the resulting EntitySchema; every operation afterwards is
// stateless and request-scoped. User input reaches storage only through
// whitelisted column names and bound values.
package crud

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/JonMunkholm/crud/internal/logging"
	"github.com/JonMunkholm/crud/internal/storage"
)

const (
	// DefaultPageSize is the number of rows per list page.
	DefaultPageSize = 30
	// DefaultTitle is shown when a resource sets no title of its own.
	DefaultTitle = "CRUD INTERFACE"
)

// Operation names, also used as redirect targets.
const (
	OpIndex  = "index"
	OpList   = "list"
	OpRead   = "read"
	OpCreate = "create"
	OpEdit   = "edit"
	OpDelete = "delete"
)

// View names a screen of the rendering layer.
type View string

const (
	ViewList    View = "list"
	ViewDetail  View = "detail"
	ViewForm    View = "form"
	ViewConfirm View = "delete"
)

// Config wires one resource. Table is the injected storage handle.
type Config struct {
	Name     string // route name; defaults to the table name
	Title    string
	Table    storage.Table
	Hidden   []string
	PageSize int
}

// Request carries one operation's input. Mutating is true for submissions
// that may change storage (POST); Params merges query and form values.
type Request struct {
	Mutating bool
	Params   url.Values
}

// Result tells the rendering layer what to show. Exactly one of View and
// Redirect is set.
type Result struct {
	View     View
	Redirect string
	Flash    string

	List   *ListPage
	Record storage.Record
	Key    []string
	Form   *Form
	Err    error
}

// SearchState echoes the search form back to the list view.
type SearchState struct {
	Active bool
	Column int
	Text   string
	Exact  bool
}

// ListPage is one rendered page of a list.
type ListPage struct {
	Records    []storage.Record
	Columns    []string
	PrimaryKey []string
	Total      int64
	Page       int
	PageSize   int
	TotalPages int
	Order      *storage.Order    // nil unless the request asked for one
	Reverse    storage.Direction // direction for "click to reverse" links
	Search     SearchState
}

// Controller serves the CRUD operations of one resource.
type Controller struct {
	name     string
	title    string
	table    storage.Table
	schema   EntitySchema
	fields   []FieldDescriptor
	pageSize int
}

// New introspects cfg.Table and returns a ready controller. Errors are
// *ConfigurationError.
func New(ctx context.Context, cfg Config) (*Controller, error) {
	schema, err := DeriveSchema(ctx, cfg.Table, cfg.Hidden)
	if err != nil {
		var ce *ConfigurationError
		if errors.As(err, &ce) && ce.Resource == "" {
			ce.Resource = cfg.Name
		}
		return nil, err
	}

	c := &Controller{
		name:     cfg.Name,
		title:    cfg.Title,
		table:    cfg.Table,
		schema:   schema,
		fields:   FromColumns(schema.Meta, schema.Columns),
		pageSize: cfg.PageSize,
	}
	if c.name == "" {
		c.name = schema.Table
	}
	if c.title == "" {
		c.title = DefaultTitle
	}
	if c.pageSize <= 0 {
		c.pageSize = DefaultPageSize
	}
	return c, nil
}

// Name returns the resource's route name.
func (c *Controller) Name() string { return c.name }

// Title returns the resource's display title.
func (c *Controller) Title() string { return c.title }

// Schema returns the cached schema.
func (c *Controller) Schema() EntitySchema { return c.schema }

// Fields returns the form fields of the operable columns.
func (c *Controller) Fields() []FieldDescriptor { return c.fields }

// PageSize returns the configured rows per page.
func (c *Controller) PageSize() int { return c.pageSize }

// Index redirects to List.
func (c *Controller) Index(context.Context, Request) (Result, error) {
	return Result{Redirect: OpList}, nil
}

// List returns one page of records, filtered and ordered as requested.
// Invalid search or sort input is rejected without querying storage.
func (c *Controller) List(ctx context.Context, req Request) (Result, error) {
	q := ListQuery{Page: ParsePage(req.Params.Get("p")), PageSize: c.pageSize}
	page := &ListPage{
		Columns:    c.schema.Columns,
		PrimaryKey: c.schema.PrimaryKey,
		Page:       q.Page,
		PageSize:   q.PageSize,
		Reverse:    ToggleDirection(storage.Asc),
	}
	fail := func(err error) (Result, error) {
		return Result{View: ViewList, List: page, Err: err}, err
	}

	if req.Params.Has("search") {
		crit, err := parseSearch(req.Params)
		page.Search = SearchState{Active: true, Column: crit.ColumnIndex, Text: crit.Text, Exact: crit.Exact}
		if err != nil {
			return fail(err)
		}
		where, err := BuildSearchPredicate(crit, c.schema.Columns)
		if err != nil {
			return fail(err)
		}
		if crit.Exact && len(where) > 0 {
			col, _ := c.schema.Column(where[0].Column)
			v, err := searchValue(col, crit.Text)
			if err != nil {
				return fail(err)
			}
			where[0].Value = v
		}
		q.Where = where
	}

	if req.Params.Has("o") || req.Params.Has("ot") {
		dir := req.Params.Get("ot")
		if dir == "" {
			dir = string(storage.Asc)
		}
		order, err := BuildSort(req.Params.Get("o"), dir, c.schema.Columns)
		if err != nil {
			return fail(err)
		}
		q.Order = &order
		page.Order = &order
		page.Reverse = ToggleDirection(order.Direction)
	}

	res, err := c.table.Query(ctx, storage.Query{
		Columns:  c.schema.projection(),
		Where:    q.Where,
		Order:    q.Order,
		KeyOrder: c.schema.PrimaryKey,
		Limit:    q.PageSize,
		Offset:   q.Offset(),
	})
	if err != nil {
		return fail(&StorageError{Op: "list", Err: err})
	}

	page.Records = res.Records
	page.Total = res.Total
	page.TotalPages = int((res.Total + int64(q.PageSize) - 1) / int64(q.PageSize))
	return Result{View: ViewList, List: page}, nil
}

// parseSearch reads the search form fields. The column index defaults to 0.
func parseSearch(params url.Values) (SearchCriterion, error) {
	crit := SearchCriterion{Text: params.Get("search")}

	if raw := strings.TrimSpace(params.Get("columns")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return crit, &InvalidSearchError{Reason: "column index " + strconv.Quote(raw) + " is not a number"}
		}
		crit.ColumnIndex = n
	}

	exact, ok := parseBool(params.Get("exact"))
	if !ok {
		return crit, &InvalidSearchError{Reason: "exact must be a boolean"}
	}
	crit.Exact = exact
	return crit, nil
}

// Read shows one record. Without an id it redirects to List.
func (c *Controller) Read(ctx context.Context, req Request) (Result, error) {
	ids := req.Params["id"]
	if len(ids) == 0 || (len(ids) == 1 && ids[0] == "") {
		return Result{Redirect: OpList}, nil
	}

	vals, err := c.schema.keyValues(c.name, ids)
	if err != nil {
		return Result{Key: ids, Err: err}, err
	}
	rec, err := c.find(ctx, ids, vals)
	if err != nil {
		return Result{Key: ids, Err: err}, err
	}
	return Result{View: ViewDetail, Record: c.schema.visible(rec), Key: ids}, nil
}

// Create shows an empty form, or validates and inserts a submission.
func (c *Controller) Create(ctx context.Context, req Request) (Result, error) {
	form := NewForm(c.fields, false)
	if !req.Mutating {
		return Result{View: ViewForm, Form: form}, nil
	}

	form.Bind(req.Params)
	values, err := form.Validate()
	if err != nil {
		return Result{View: ViewForm, Form: form, Err: err}, err
	}

	id, err := c.table.Insert(ctx, values)
	if err != nil {
		err = &StorageError{Op: "create", Err: err}
		return Result{View: ViewForm, Form: form, Err: err}, err
	}

	c.logger(ctx).Info("record created", "id", id)
	return Result{Redirect: OpList, Flash: "Record created."}, nil
}

// Edit loads a record into a form, or validates and applies a submission.
func (c *Controller) Edit(ctx context.Context, req Request) (Result, error) {
	ids := req.Params["id"]
	vals, err := c.schema.keyValues(c.name, ids)
	if err != nil {
		return Result{Key: ids, Err: err}, err
	}

	form := NewForm(c.fields, true)
	if !req.Mutating {
		rec, err := c.find(ctx, ids, vals)
		if err != nil {
			return Result{Key: ids, Err: err}, err
		}
		form.Populate(rec)
		return Result{View: ViewForm, Form: form, Key: ids}, nil
	}

	form.SetKey(c.schema.PrimaryKey, ids)
	form.Bind(req.Params)
	values, err := form.Validate()
	if err != nil {
		return Result{View: ViewForm, Form: form, Key: ids, Err: err}, err
	}

	where := BuildKeyPredicate(c.schema.PrimaryKey, vals, BuildUpdatePredicate)
	n, err := c.table.Update(ctx, values, where)
	if err != nil {
		err = &StorageError{Op: "update", Err: err}
		return Result{View: ViewForm, Form: form, Key: ids, Err: err}, err
	}
	if n == 0 {
		err := &NotFoundError{Resource: c.name, ID: ids}
		return Result{Key: ids, Err: err}, err
	}

	c.logger(ctx).Info("record updated", "id", strings.Join(ids, "/"), "rows", n)
	return Result{Redirect: OpList, Flash: "Record updated."}, nil
}

// Delete is two-phase: a non-mutating request only shows the confirmation
// carrying the identifier; the mutating request deletes.
func (c *Controller) Delete(ctx context.Context, req Request) (Result, error) {
	ids := req.Params["id"]
	vals, err := c.schema.keyValues(c.name, ids)
	if err != nil {
		return Result{Key: ids, Err: err}, err
	}

	if !req.Mutating {
		return Result{View: ViewConfirm, Key: ids}, nil
	}

	where := BuildKeyPredicate(c.schema.PrimaryKey, vals, BuildDeletePredicate)
	n, err := c.table.Delete(ctx, where)
	if err != nil {
		err = &StorageError{Op: "delete", Err: err}
		return Result{Key: ids, Err: err}, err
	}
	if n == 0 {
		err := &NotFoundError{Resource: c.name, ID: ids}
		return Result{Key: ids, Err: err}, err
	}

	c.logger(ctx).Info("record deleted", "id", strings.Join(ids, "/"))
	return Result{Redirect: OpList, Flash: "Record deleted."}, nil
}

// find loads exactly one record by its normalized key values.
func (c *Controller) find(ctx context.Context, ids []string, vals []any) (storage.Record, error) {
	rec, found, err := c.table.FindByPrimaryKey(ctx, BuildKeyPredicate(c.schema.PrimaryKey, vals, keyEquals))
	if err != nil {
		return nil, &StorageError{Op: "read", Err: err}
	}
	if !found {
		return nil, &NotFoundError{Resource: c.name, ID: ids}
	}
	return rec, nil
}

func (c *Controller) logger(ctx context.Context) *slog.Logger {
	return logging.WithFields(ctx,
		"resource", c.name,
		"ip", IPAddressFromContext(ctx),
		"user_agent", UserAgentFromContext(ctx),
	)
}
