package cmd

import (
	"fmt"
	"strings"

	"github.com/kiranshivaraju/feedlens/pkg/models"
	"github.com/spf13/cobra"
)

var (
	analyzeClarify string
	answerBy       string
	followUpCopied string
	followUpCopy   bool
	followUpOutput string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <feedback-id>",
	Short: "Start or continue the analysis of a feedback report",
	Long: `Run one analysis round. The first call creates the analysis; later calls
continue it with every answered question. --clarify adds an operator
clarification that is recorded as an answered admin question.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

var showCmd = &cobra.Command{
	Use:   "show <feedback-id>",
	Short: "Show the current analysis of a feedback report",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var answerCmd = &cobra.Command{
	Use:   "answer <feedback-id> <question-id> <answer...>",
	Short: "Answer a clarifying question and run the next round",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runAnswer,
}

var passCmd = &cobra.Command{
	Use:   "pass <feedback-id> <question-id>",
	Short: "Hand a clarifying question back to the reporter",
	Args:  cobra.ExactArgs(2),
	RunE:  runPass,
}

var followUpCmd = &cobra.Command{
	Use:   "follow-up <feedback-id>",
	Short: "Generate a follow-up document from a completed diagnosis",
	Args:  cobra.ExactArgs(1),
	RunE:  runFollowUp,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeClarify, "clarify", "", "operator clarification to add before the round")
	answerCmd.Flags().StringVar(&answerBy, "by", models.AnsweredByAdmin, "who supplied the answer")
	followUpCmd.Flags().StringVar(&followUpCopied, "copied", "", "mark an existing follow-up as copied instead of generating one")
	followUpCmd.Flags().BoolVar(&followUpCopy, "copy", false, "copy the generated follow-up to the clipboard and mark it copied")
	followUpCmd.Flags().StringVarP(&followUpOutput, "output", "o", "", "write the generated follow-up to a file")
	followUpCmd.MarkFlagsMutuallyExclusive("copied", "copy")
	followUpCmd.MarkFlagsMutuallyExclusive("copied", "output")

	rootCmd.AddCommand(analyzeCmd, showCmd, answerCmd, passCmd, followUpCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	a, err := newClient().StartAnalysis(cmd.Context(), args[0], analyzeClarify)
	if err != nil {
		return err
	}
	return renderAnalysis(cmd, a)
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := newClient().GetAnalysis(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return renderAnalysis(cmd, a)
}

func runAnswer(cmd *cobra.Command, args []string) error {
	answer := strings.Join(args[2:], " ")
	a, err := newClient().Answer(cmd.Context(), args[0], args[1], answer, answerBy)
	if err != nil {
		return err
	}
	return renderAnalysis(cmd, a)
}

func runPass(cmd *cobra.Command, args []string) error {
	a, err := newClient().PassToUser(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	return renderAnalysis(cmd, a)
}

func runFollowUp(cmd *cobra.Command, args []string) error {
	c := newClient()
	w := cmd.OutOrStdout()

	if followUpCopied != "" {
		f, err := c.MarkFollowUpCopied(cmd.Context(), args[0], followUpCopied)
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(w, f)
		}
		fmt.Fprintf(w, "Marked %s as copied.\n", f.ID)
		return nil
	}

	f, err := c.GenerateFollowUp(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if followUpOutput != "" {
		if err := writeFileAtomic(followUpOutput, []byte(f.Body+"\n"), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", followUpOutput, err)
		}
	}
	if followUpCopy {
		method, err := copyText(f.Body)
		if err != nil {
			return err
		}
		if f, err = c.MarkFollowUpCopied(cmd.Context(), args[0], f.ID); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Copied follow-up %s via %s.\n", f.ID, method)
	}

	switch {
	case jsonOutput:
		return outputJSON(w, f)
	case followUpOutput != "":
		fmt.Fprintf(w, "Wrote follow-up %s to %s\n", f.ID, followUpOutput)
	case !followUpCopy:
		fmt.Fprintf(w, "# follow-up %s\n\n%s\n", f.ID, f.Body)
	}
	return nil
}

func renderAnalysis(cmd *cobra.Command, a *models.FeedbackAnalysis) error {
	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), a)
	}
	return printAnalysis(cmd.OutOrStdout(), a)
}
