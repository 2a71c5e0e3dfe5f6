package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/david/grant-assistant/internal/models"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Rank opportunities for an organization",
	Long: `Search filters opportunities on eligibility, award range and deadline
window, then ranks them by keyword, topic and timing fit.`,
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	keywords, _ := cmd.Flags().GetString("keywords")
	orgType, _ := cmd.Flags().GetString("org-type")
	topics, _ := cmd.Flags().GetString("topics")
	maxResults, _ := cmd.Flags().GetInt("max-results")

	q := models.SearchQuery{
		Keywords:   splitCSV(keywords),
		OrgType:    models.OrgType(orgType),
		TopicAreas: splitCSV(topics),
		MaxResults: maxResults,
	}
	if cmd.Flags().Changed("min-amount") {
		v, _ := cmd.Flags().GetFloat64("min-amount")
		q.MinAmount = &v
	}
	if cmd.Flags().Changed("max-amount") {
		v, _ := cmd.Flags().GetFloat64("max-amount")
		q.MaxAmount = &v
	}
	if cmd.Flags().Changed("within-days") {
		v, _ := cmd.Flags().GetInt("within-days")
		q.DeadlineWithinDays = &v
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	matches, err := a.Matcher.Search(cmd.Context(), q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		return printJSON(out, matches)
	}
	if len(matches) == 0 {
		fmt.Fprintln(out, "No matching opportunities.")
		return nil
	}

	t := newTable(out, "#", "ID", "Title", "Funder", "Score", "Keyword", "Topic", "Timing", "Deadline")
	for i, m := range matches {
		t.AppendRow([]interface{}{
			i + 1,
			m.Opportunity.ID,
			truncate(m.Opportunity.Title, 40),
			truncate(m.Opportunity.Funder, 30),
			fmt.Sprintf("%.3f", m.Score),
			fmt.Sprintf("%.2f", m.Breakdown.Keyword),
			fmt.Sprintf("%.2f", m.Breakdown.Topic),
			fmt.Sprintf("%.2f", m.Breakdown.Timing),
			m.Opportunity.Deadline.Format("2006-01-02"),
		})
	}
	t.Render()
	return nil
}

func init() {
	searchCmd.Flags().String("keywords", "", "keywords (comma-separated, required)")
	searchCmd.Flags().String("org-type", "nonprofit", "nonprofit, tribal, university or local_government")
	searchCmd.Flags().String("topics", "", "topic areas (comma-separated)")
	searchCmd.Flags().Float64("min-amount", 0, "minimum award amount")
	searchCmd.Flags().Float64("max-amount", 0, "maximum award amount")
	searchCmd.Flags().Int("within-days", 0, "only deadlines within this many days")
	searchCmd.Flags().Int("max-results", 10, "maximum number of results")

	rootCmd.AddCommand(searchCmd)
}
