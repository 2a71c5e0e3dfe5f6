package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/david/grant-assistant/internal/models"
)

var validateCmd = &cobra.Command{
	Use:   "validate <draft.json>",
	Short: "Check a proposal draft against funder requirements",
	Long: `Validate reports word, character, element and formatting issues for every
section in the draft. Sections without explicit requirements use the
rulebook defaults. Exits non-zero when the draft is not compliant.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	var draft models.ProposalDraft
	if err := readJSONFile(args[0], &draft); err != nil {
		return err
	}

	var reqs models.DraftRequirements
	if path, _ := cmd.Flags().GetString("requirements"); path != "" {
		if err := readJSONFile(path, &reqs); err != nil {
			return err
		}
	}
	if required, _ := cmd.Flags().GetString("required-sections"); required != "" {
		for _, s := range splitCSV(required) {
			reqs.RequiredSections = append(reqs.RequiredSections, models.SectionKind(s))
		}
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Validator.Validate(draft, reqs)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		if err := printJSON(out, report); err != nil {
			return err
		}
	} else {
		if len(report.Issues) == 0 {
			fmt.Fprintln(out, "No issues found.")
		} else {
			printIssues(cmd, report.Issues)
		}
	}
	if !report.Compliant {
		return fmt.Errorf("draft is not compliant: %d error(s)", len(report.Errors()))
	}
	return nil
}

func printIssues(cmd *cobra.Command, issues []models.Issue) {
	t := newTable(cmd.OutOrStdout(), "Section", "Severity", "Code", "Message")
	for _, is := range issues {
		t.AppendRow([]interface{}{is.Section, is.Severity, is.Code, truncate(is.Message, 70)})
	}
	t.Render()
}

func init() {
	validateCmd.Flags().String("requirements", "", "requirements JSON file")
	validateCmd.Flags().String("required-sections", "", "sections that must be present (comma-separated)")

	rootCmd.AddCommand(validateCmd)
}
