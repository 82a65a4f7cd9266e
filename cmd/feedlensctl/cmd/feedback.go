package cmd

import (
	"fmt"

	"github.com/kiranshivaraju/feedlens/pkg/models"
	"github.com/spf13/cobra"
)

var (
	listStatus string
	listPage   int
	listLimit  int

	submitType   string
	submitTitle  string
	submitDesc   string
	submitModule string
	submitTab    string
	submitDevice string
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List feedback reports",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "File a new feedback report",
	Args:  cobra.NoArgs,
	RunE:  runSubmit,
}

func init() {
	listCmd.Flags().StringVar(&listStatus, "status", "", "only reports whose analysis has this status")
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	listCmd.Flags().IntVar(&listLimit, "limit", 20, "reports per page (max 100)")

	submitCmd.Flags().StringVar(&submitType, "type", "bug", "report type, e.g. bug or feature")
	submitCmd.Flags().StringVar(&submitTitle, "title", "", "short title")
	submitCmd.Flags().StringVar(&submitDesc, "description", "", "full description")
	submitCmd.Flags().StringVar(&submitModule, "module", "", "product module the report refers to")
	submitCmd.Flags().StringVar(&submitTab, "tab", "", "tab or screen within the module")
	submitCmd.Flags().StringVar(&submitDevice, "device", "", "reporter's device")
	_ = submitCmd.MarkFlagRequired("title")
	_ = submitCmd.MarkFlagRequired("description")

	rootCmd.AddCommand(listCmd, submitCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	page, err := newClient().ListFeedback(cmd.Context(), models.AnalysisStatus(listStatus), listPage, listLimit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return outputJSON(w, page.Items)
	}
	if len(page.Items) == 0 {
		fmt.Fprintln(w, "No feedback reports.")
		return nil
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tTYPE\tCREATED\tTITLE")
	for _, r := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.ID, r.Type, r.CreatedAt.Format("2006-01-02"), truncate(r.Title, 60))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.HasNext {
		fmt.Fprintf(w, "\n%d reports total; use --page %d for more.\n", page.Total, listPage+1)
	}
	return nil
}

func runSubmit(cmd *cobra.Command, _ []string) error {
	report := models.FeedbackReport{
		Type:        submitType,
		Title:       submitTitle,
		Description: submitDesc,
		Context:     models.FeedbackContext{Module: submitModule, Tab: submitTab, Device: submitDevice},
	}
	created, err := newClient().CreateFeedback(cmd.Context(), report)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), created)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created feedback %s\n", created.ID)
	return nil
}
