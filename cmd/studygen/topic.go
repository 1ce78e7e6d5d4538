package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"studyforge/internal/domain"

	"github.com/spf13/cobra"
)

func (c *cli) topicCmd() *cobra.Command {
	var (
		items       itemFlags
		description string
	)
	cmd := &cobra.Command{
		Use:   "topic <topic>",
		Short: "Generate items about a topic",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source := strings.TrimSpace(args[0])
			if d := strings.TrimSpace(description); d != "" {
				source += "\n\n" + d
			}
			return c.run(cmd, domain.GenerationRequest{
				SourceText: source,
				Count:      items.count,
				Kind:       domain.ItemKind(items.kind),
				Difficulty: domain.ParseDifficulty(items.difficulty),
				Origin:     domain.OriginTopicSearch,
				Language:   items.language,
			})
		},
	}
	items.register(cmd)
	cmd.Flags().StringVar(&description, "description", "", "Optional description narrowing the topic")
	return cmd
}

func (c *cli) providersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List the provider catalog in cascade order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			comps, _, err := c.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			defer comps.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tPRIORITY\tLOCAL\tTIMEOUT\tRETRIES")
			for _, d := range comps.Catalog.Descriptors() {
				fmt.Fprintf(w, "%s\t%d\t%t\t%s\t%d\n", d.ID, d.Priority, d.Local, d.Timeout, d.MaxRetries)
			}
			return w.Flush()
		},
	}
}
