package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/JonMunkholm/crud/internal/application"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

type resourceInfo struct {
	Name       string   `json:"name"`
	Table      string   `json:"table"`
	Title      string   `json:"title"`
	PageSize   int      `json:"page_size"`
	PrimaryKey []string `json:"primary_key"`
	Columns    int      `json:"columns"`
	Hidden     []string `json:"hidden,omitempty"`
}

func newResourcesCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "Check the resource definitions against the database",
		Long: `Load the resources file, introspect every table it names and print
one line per resource. Exits non-zero when any resource cannot be served.`,
		Example: `  crudctl resources
  crudctl --resources ./resources.yaml resources -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runResources(cmd, opts)
		},
	}
}

func runResources(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()

	app, err := application.Build(ctx, configFrom(ctx))
	if err != nil {
		return err
	}
	defer app.Close()

	hidden := make(map[string][]string, len(app.Resources.Resources))
	for _, res := range app.Resources.Resources {
		hidden[res.Name] = res.Hidden
	}

	ctrls := app.Registry.All()
	out := make([]resourceInfo, len(ctrls))
	for i, c := range ctrls {
		schema := c.Schema()
		out[i] = resourceInfo{
			Name:       c.Name(),
			Table:      schema.Table,
			Title:      c.Title(),
			PageSize:   c.PageSize(),
			PrimaryKey: schema.PrimaryKey,
			Columns:    len(schema.Columns),
			Hidden:     hidden[c.Name()],
		}
	}

	w := cmd.OutOrStdout()
	if opts.output == OutputJSON {
		return writeJSON(w, out)
	}
	renderResources(w, out)
	return nil
}

func renderResources(w io.Writer, out []resourceInfo) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Resource", "Table", "Title", "Page size", "Primary key", "Columns", "Hidden"})
	for _, r := range out {
		t.AppendRow(table.Row{r.Name, r.Table, r.Title, r.PageSize, strings.Join(r.PrimaryKey, ", "), r.Columns, strings.Join(r.Hidden, ", ")})
	}
	t.Render()
	_, _ = fmt.Fprintf(w, "(%d resources)\n", len(out))
}
