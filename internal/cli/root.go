// Package cli provides crudctl, the command-line companion of the CRUD server.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/JonMunkholm/crud/internal/config"
	"github.com/spf13/cobra"
)

// Version information (set at build time).
var Version = "0.1.0"

// Output formats.
const (
	OutputText = "text"
	OutputJSON = "json"
)

type options struct {
	driver    string
	url       string
	resources string
	output    string
	lookup    func(string) string
}

type configKey struct{}

// NewRootCmd creates the root command. Flags take precedence over the
// environment variables the server reads.
func NewRootCmd() *cobra.Command {
	return newRootCmd(os.Getenv)
}

func newRootCmd(lookup func(string) string) *cobra.Command {
	opts := &options{lookup: lookup}

	rootCmd := &cobra.Command{
		Use:   "crudctl",
		Short: "Inspect the tables served by the CRUD interface",
		Long: `crudctl reads the same configuration as the CRUD server and reports
how each table would be served: its columns, primary key and form fields.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}
			if opts.output != OutputText && opts.output != OutputJSON {
				return fmt.Errorf("unknown output format %q (use text or json)", opts.output)
			}

			cfg, err := opts.config()
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "database driver: postgres, sqlite or mysql (default $DB_DRIVER)")
	rootCmd.PersistentFlags().StringVar(&opts.url, "url", "", "database URL or DSN (default $DATABASE_URL)")
	rootCmd.PersistentFlags().StringVar(&opts.resources, "resources", "", "resource definitions file (default $CRUD_RESOURCES_FILE)")
	rootCmd.PersistentFlags().StringVarP(&opts.output, "output", "o", OutputText, "output format (text|json)")

	_ = rootCmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{OutputText, OutputJSON}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"postgres", "sqlite", "mysql"}, cobra.ShellCompDirectiveNoFileComp
	})

	rootCmd.AddCommand(newSchemaCommand(opts))
	rootCmd.AddCommand(newResourcesCommand(opts))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// config loads the server configuration with flag overrides applied.
func (o *options) config() (*config.Config, error) {
	overrides := map[string]string{
		"DB_DRIVER":           o.driver,
		"DATABASE_URL":        o.url,
		"CRUD_RESOURCES_FILE": o.resources,
	}
	return config.LoadFrom(func(key string) string {
		if v := overrides[key]; v != "" {
			return v
		}
		return o.lookup(key)
	})
}

func configFrom(ctx context.Context) *config.Config {
	cfg, _ := ctx.Value(configKey{}).(*config.Config)
	return cfg
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
