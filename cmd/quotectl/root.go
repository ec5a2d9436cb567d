package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quotekeeper/internal/bootstrap"
	"github.com/jsamuelsen/quotekeeper/internal/platform/config"
)

// cli carries flags and the wired application between cobra hooks.
type cli struct {
	profile   string
	storePath string
	verbose   bool

	load  func(profile string) (*config.Config, error)
	root  *cobra.Command
	comps *bootstrap.Components
}

func newCLI(load func(string) (*config.Config, error)) *cli {
	if load == nil {
		load = func(profile string) (*config.Config, error) { return config.Load(profile) }
	}

	c := &cli{load: load}

	root := &cobra.Command{
		Use:   "quotectl",
		Short: "Browse, filter, add and sync quotes",
		Long: `quotectl works on the same durable quote store as the quotekeeper service.
Quotes can be filtered by category, exported to and imported from JSON,
and refreshed from the configured posts service.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.open,
	}

	root.CompletionOptions.DisableDefaultCmd = true

	flags := root.PersistentFlags()
	flags.StringVarP(&c.profile, "profile", "p", "local", "Configuration profile (configs/<profile>.yaml)")
	flags.StringVar(&c.storePath, "store", "", "Override the durable store path")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		c.randomCmd(),
		c.listCmd(),
		c.categoriesCmd(),
		c.addCmd(),
		c.filterCmd(),
		c.exportCmd(),
		c.importCmd(),
		c.syncCmd(),
		versionCmd(),
	)

	c.root = root

	return c
}

// execute runs args and always drains background pushes before returning.
func (c *cli) execute(ctx context.Context, args []string) error {
	c.root.SetArgs(args)

	err := c.root.ExecuteContext(ctx)

	if c.comps != nil {
		c.comps.Close()
		c.printNotices(c.root.ErrOrStderr())
	}

	return err
}

// open loads configuration and wires the application for commands that need it.
func (c *cli) open(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "help" || cmd.Annotations["offline"] == "true" {
		return nil
	}

	cfg, err := c.load(c.profile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if c.storePath != "" {
		cfg.Storage.Path = c.storePath
	}

	// Logs share the terminal with command output, so keep them quiet and plain.
	cfg.Log.Format = "text"
	cfg.Log.Level = "warn"

	if c.verbose {
		cfg.Log.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := bootstrap.NewLoggerWithWriter(cfg, cmd.ErrOrStderr())

	comps, err := bootstrap.Build(cmd.Context(), cfg, logger, bootstrap.Options{
		UserAgent: "quotectl/" + Version,
	})
	if err != nil {
		return err
	}

	c.comps = comps

	return nil
}

func (c *cli) printNotices(w io.Writer) {
	for _, n := range c.comps.Manager.Notifier().Active() {
		fmt.Fprintf(w, "» %s\n", n.Message)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "version",
		Short:       "Print the quotectl version",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"offline": "true"},
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "quotectl %s\n", Version)
		},
	}
}
