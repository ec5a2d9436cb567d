package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jsamuelsen/quotekeeper/internal/app"
	"github.com/jsamuelsen/quotekeeper/internal/domain"
)

func (c *cli) randomCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "random",
		Short: "Show a random quote from the selected category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			display := c.comps.Manager.ShowRandom(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), display.Text)

			return nil
		},
	}
}

func (c *cli) listCmd() *cobra.Command {
	var (
		asJSON   bool
		category string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List quotes in the selected category",
		Long: `List quotes in the persisted category filter.
Use --category to look at another category without changing the filter.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected, quotes := c.comps.Manager.Filtered()
			if cmd.Flags().Changed("category") {
				selected = category
				quotes = domain.ApplyFilter(c.comps.Manager.Quotes(), category)
			}

			out := cmd.OutOrStdout()

			if asJSON {
				return writeJSON(out, quotes)
			}

			if len(quotes) == 0 {
				fmt.Fprintln(out, app.EmptyStateMessage)
				return nil
			}

			fmt.Fprintf(out, "%d quote(s) in %q\n", len(quotes), selected)

			for _, q := range quotes {
				fmt.Fprintf(out, "  %s\n", q.Display())
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output in JSON format")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Category to list instead of the selected one")

	return cmd
}

func (c *cli) categoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "categories",
		Aliases: []string{"cats"},
		Short:   "List the known categories",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			selected := c.comps.Manager.SelectedCategory()
			out := cmd.OutOrStdout()

			for _, name := range c.comps.Manager.Categories() {
				marker := " "
				if name == selected {
					marker = "*"
				}

				fmt.Fprintf(out, "%s %s\n", marker, name)
			}

			return nil
		},
	}
}

func (c *cli) addCmd() *cobra.Command {
	var text, category string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a quote and push it to the posts service",
		Example: `  quotectl add --text "Stay hungry." --category Motivation
  quotectl add "Stay hungry." Motivation`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				text = args[0]
			}

			if len(args) > 1 {
				category = args[1]
			}

			quote, err := c.comps.Manager.AddQuote(cmd.Context(), text, category)
			if domain.IsValidation(err) {
				return fmt.Errorf("please enter both a quote and a category: %w", err)
			}

			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "added %s\n", quote.Display())

			return nil
		},
	}

	cmd.Flags().StringVarP(&text, "text", "t", "", "Quote text")
	cmd.Flags().StringVarP(&category, "category", "c", "", "Quote category")

	return cmd
}

func (c *cli) filterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "filter [category]",
		Short: "Show or change the persisted category filter",
		Long: `Without arguments, print the selected category.
With an argument, select it. "all" clears the filter.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				fmt.Fprintln(out, c.comps.Manager.SelectedCategory())
				return nil
			}

			if err := c.comps.Manager.SetSelectedCategory(cmd.Context(), args[0]); err != nil {
				return err
			}

			selected, quotes := c.comps.Manager.Filtered()
			fmt.Fprintf(out, "filter set to %q (%d quote(s))\n", selected, len(quotes))

			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}

	return nil
}
