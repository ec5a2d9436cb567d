package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func (c *cli) exportCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every quote as a JSON array",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := c.comps.Manager.Export()
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(payload)
				return err
			}

			if err := os.WriteFile(output, payload, 0o644); err != nil {
				return fmt.Errorf("writing export: %w", err)
			}

			fmt.Fprintf(cmd.ErrOrStderr(), "exported %d quote(s) to %s\n", len(c.comps.Manager.Quotes()), output)

			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", `Destination file ("-" or empty for stdout)`)

	return cmd
}

func (c *cli) importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file|->",
		Short: "Append quotes from a JSON array",
		Long: `Append every quote in a JSON array of {"text","category"} objects.
A malformed file changes nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}

			n, err := c.comps.Manager.Import(cmd.Context(), payload)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d quote(s)\n", n)

			return nil
		},
	}
}

func readInput(stdin io.Reader, name string) ([]byte, error) {
	if name == "-" {
		payload, err := io.ReadAll(stdin)
		if err != nil {
			return nil, fmt.Errorf("reading stdin: %w", err)
		}

		return payload, nil
	}

	payload, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}

	return payload, nil
}
