package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/crud/internal/application"
	"github.com/JonMunkholm/crud/internal/crud"
	"github.com/JonMunkholm/crud/internal/storage"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type columnInfo struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Kind      string `json:"kind"`
	Nullable  bool   `json:"nullable"`
	Default   bool   `json:"has_default"`
	MaxLength int    `json:"max_length,omitempty"`
	Key       int    `json:"key_position,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
}

type fieldInfo struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Input    string `json:"input"`
	Required bool   `json:"required"`
	Auto     bool   `json:"auto,omitempty"`
}

type schemaOutput struct {
	Table      string       `json:"table"`
	PrimaryKey []string     `json:"primary_key"`
	Columns    []columnInfo `json:"columns"`
	Fields     []fieldInfo  `json:"fields,omitempty"`
	Error      string       `json:"error,omitempty"`
}

func newSchemaCommand(opts *options) *cobra.Command {
	var hidden []string

	cmd := &cobra.Command{
		Use:   "schema <table>",
		Short: "Show how a table would be served",
		Long: `Introspect a table and print its columns, primary key and the form
fields a resource over it would offer. A table that cannot be served,
for example one without a primary key, is reported as an error.`,
		Example: `  # Inspect a table on the configured database
  crudctl schema users --hidden password_hash

  # Inspect a SQLite file as JSON
  crudctl --driver sqlite --url ./app.db schema order_lines -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSchema(cmd, opts, args[0], hidden)
		},
	}

	cmd.Flags().StringSliceVar(&hidden, "hidden", nil, "columns to hide, comma separated")
	return cmd
}

func runSchema(cmd *cobra.Command, opts *options, name string, hidden []string) error {
	ctx := cmd.Context()
	cfg := configFrom(ctx)

	eng, err := application.Connect(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer eng.Close()

	tbl, err := eng.Table(name)
	if err != nil {
		return err
	}
	cols, err := tbl.Columns(ctx)
	if err != nil {
		return fmt.Errorf("read columns of %s: %w", name, err)
	}
	if len(cols) == 0 {
		return fmt.Errorf("table %s not found or has no columns", name)
	}

	pk, err := tbl.PrimaryKey(ctx)
	if err != nil {
		return fmt.Errorf("read primary key of %s: %w", name, err)
	}

	out := schemaOutput{Table: name, PrimaryKey: pk, Columns: describeColumns(cols, hidden)}

	ctrl, buildErr := crud.New(ctx, crud.Config{Name: name, Table: tbl, Hidden: hidden})
	if buildErr == nil {
		out.Fields = describeFields(ctrl.Fields())
	} else {
		out.Error = buildErr.Error()
	}

	w := cmd.OutOrStdout()
	if opts.output == OutputJSON {
		if err := writeJSON(w, out); err != nil {
			return err
		}
	} else {
		renderSchema(w, out)
	}
	return buildErr
}

func describeColumns(cols []storage.Column, hidden []string) []columnInfo {
	skip := make(map[string]bool, len(hidden))
	for _, h := range hidden {
		skip[h] = true
	}

	out := make([]columnInfo, len(cols))
	for i, c := range cols {
		out[i] = columnInfo{
			Name:      c.Name,
			Type:      c.DBType,
			Kind:      c.Kind.String(),
			Nullable:  c.Nullable,
			Default:   c.HasDefault,
			MaxLength: c.MaxLength,
			Key:       c.KeyPosition,
			Hidden:    skip[c.Name],
		}
	}
	return out
}

func describeFields(fields []crud.FieldDescriptor) []fieldInfo {
	out := make([]fieldInfo, len(fields))
	for i, f := range fields {
		out[i] = fieldInfo{
			Name:     f.Name,
			Label:    f.Label,
			Input:    f.InputType(),
			Required: f.Required,
			Auto:     f.Auto,
		}
	}
	return out
}

func renderSchema(w io.Writer, out schemaOutput) {
	_, _ = fmt.Fprintf(w, "Table: %s\n", out.Table)
	if len(out.PrimaryKey) > 0 {
		_, _ = fmt.Fprintf(w, "Primary key: %s\n", strings.Join(out.PrimaryKey, ", "))
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Column", "Type", "Kind", "Nullable", "Default", "Max", "Key", "Hidden"})
	for _, c := range out.Columns {
		t.AppendRow(table.Row{c.Name, c.Type, c.Kind, yesNo(c.Nullable), yesNo(c.Default), blankZero(c.MaxLength), blankZero(c.Key), yesNo(c.Hidden)})
	}
	t.Render()

	if len(out.Fields) == 0 {
		return
	}

	_, _ = fmt.Fprintln(w, "Form fields:")
	f := table.NewWriter()
	f.SetOutputMirror(w)
	f.SetStyle(table.StyleLight)
	f.AppendHeader(table.Row{"Field", "Label", "Input", "Required", "Auto"})
	for _, fd := range out.Fields {
		f.AppendRow(table.Row{fd.Name, fd.Label, fd.Input, yesNo(fd.Required), yesNo(fd.Auto)})
	}
	f.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

func blankZero(n int) string {
	if n == 0 {
		return ""
	}
	return fmt.Sprint(n)
}
