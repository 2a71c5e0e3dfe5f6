package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/david/grant-assistant/internal/auth"
	"github.com/david/grant-assistant/internal/source"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog [path]",
	Short: "Show the opportunities in a YAML catalog",
	Long: `Catalog loads and normalizes a catalog file (the embedded mock catalog when
no path is given) and prints the records the server would serve from it.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		}
		src, err := source.LoadCatalog(path, time.Now())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if jsonOutput(cmd) {
			return printJSON(out, src.All())
		}
		t := newTable(out, "ID", "Title", "Funder", "Amount", "Deadline", "Eligibility", "Tags")
		for _, o := range src.All() {
			elig := make([]string, len(o.Eligibility))
			for i, e := range o.Eligibility {
				elig[i] = string(e)
			}
			t.AppendRow([]interface{}{
				o.ID,
				truncate(o.Title, 40),
				truncate(o.Funder, 30),
				fmt.Sprintf("%.0f-%.0f", o.AmountMin, o.AmountMax),
				o.Deadline.Format("2006-01-02"),
				strings.Join(elig, ","),
				strings.Join(o.Tags, ","),
			})
		}
		t.Render()
		return nil
	},
}

var hashSecretCmd = &cobra.Command{
	Use:   "hash-secret <secret>",
	Short: "Print the bcrypt hash to configure under auth.clients",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashSecret(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(catalogCmd, hashSecretCmd)
}
