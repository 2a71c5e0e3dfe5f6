package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/david/grant-assistant/internal/composer"
	"github.com/david/grant-assistant/internal/models"
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Generate or refine one proposal section",
	Long: `Compose writes a section from the opportunity, the organization profile
and the sections already in the draft, keeping it within the word limit.

With --draft the section is read from and written back to a draft file, so
sections can be built up one call at a time. The abstract needs every other
section in the draft first.`,
	RunE: runCompose,
}

func runCompose(cmd *cobra.Command, args []string) error {
	grantID, _ := cmd.Flags().GetString("grant")
	section, _ := cmd.Flags().GetString("section")
	orgPath, _ := cmd.Flags().GetString("org")
	draftPath, _ := cmd.Flags().GetString("draft")
	action, _ := cmd.Flags().GetString("action")
	instruction, _ := cmd.Flags().GetString("instruction")
	elements, _ := cmd.Flags().GetString("elements")

	req := composer.ComposeRequest{
		GrantID:  grantID,
		Section:  models.SectionKind(section),
		Action:   composer.Action(action),
		Feedback: composer.Feedback{Instruction: instruction},
		Draft:    models.ProposalDraft{GrantID: grantID, Sections: map[models.SectionKind]models.SectionContent{}},
	}
	if orgPath != "" {
		if err := readJSONFile(orgPath, &req.Org); err != nil {
			return err
		}
	}
	if draftPath != "" {
		if err := readJSONFile(draftPath, &req.Draft); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		if req.Draft.GrantID == "" {
			req.Draft.GrantID = grantID
		}
		if req.Action == composer.ActionRefine {
			req.ExistingContent = req.Draft.Sections[req.Section].Text
		}
	}
	if cmd.Flags().Changed("max-words") || cmd.Flags().Changed("elements") {
		maxWords, _ := cmd.Flags().GetInt("max-words")
		req.Requirements = &models.Requirements{MaxWords: maxWords, RequiredElements: splitCSV(elements)}
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	if req.Requirements == nil && req.Section.Valid() {
		r := a.Rules.Requirements(req.Section)
		req.Requirements = &r
	}
	if req.Action == composer.ActionRefine && req.Requirements != nil && req.ExistingContent != "" {
		report, err := a.Validator.Validate(
			models.ProposalDraft{GrantID: req.GrantID, Sections: map[models.SectionKind]models.SectionContent{
				req.Section: req.Draft.Sections[req.Section],
			}},
			models.DraftRequirements{Sections: map[models.SectionKind]models.Requirements{req.Section: *req.Requirements}},
		)
		if err != nil {
			return err
		}
		req.Feedback.Issues = report.Issues
	}

	res, err := a.Composer.Compose(cmd.Context(), req)
	if err != nil {
		return err
	}

	if draftPath != "" {
		next := req.Draft.With(res.Section, res.Content)
		data, err := json.MarshalIndent(next, "", "  ")
		if err != nil {
			return err
		}
		if err := writeFileAtomic(draftPath, append(data, '\n')); err != nil {
			return fmt.Errorf("writing draft: %w", err)
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput(cmd) {
		return printJSON(out, res)
	}

	fmt.Fprintf(out, "%s (%d words, %d iterations, in band: %t)\n\n", res.Section.Title(), res.Content.WordCount, res.Iterations, res.Content.InBand)
	fmt.Fprintln(out, res.Content.Text)
	if len(res.Issues) > 0 {
		fmt.Fprintln(out)
		printIssues(cmd, res.Issues)
	}
	for _, s := range res.Suggestions {
		fmt.Fprintf(out, "- %s\n", s)
	}
	return nil
}

func init() {
	composeCmd.Flags().String("grant", "", "opportunity id (required)")
	composeCmd.Flags().String("section", "", "need, goals, methods, evaluation, budget, capacity or abstract")
	composeCmd.Flags().String("org", "", "organization profile JSON file")
	composeCmd.Flags().String("draft", "", "draft JSON file to read and update")
	composeCmd.Flags().String("action", string(composer.ActionGenerate), "generate or refine")
	composeCmd.Flags().String("instruction", "", `refine instructions, e.g. "remove: waitlist"`)
	composeCmd.Flags().Int("max-words", 0, "word limit (default: rulebook)")
	composeCmd.Flags().String("elements", "", "required elements (comma-separated)")

	rootCmd.AddCommand(composeCmd)
}
