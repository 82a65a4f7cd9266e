package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/kiranshivaraju/feedlens/pkg/models"
	"github.com/sahilm/fuzzy"
	"github.com/spf13/cobra"
)

var (
	setProvider  string
	setModel     string
	setBaseURL   string
	setMaxTokens int
	setMaxRounds int
	setTimeoutMs int
	setContext   int

	removeCredential bool
	modelsFilter     string
)

var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Check that the configured AI provider is reachable",
	Args:  cobra.NoArgs,
	RunE:  runTestConnection,
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List models installed on the local provider",
	Args:  cobra.NoArgs,
	RunE:  runModels,
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the active provider settings",
	Args:  cobra.NoArgs,
	RunE:  runSettings,
}

var credentialCmd = &cobra.Command{
	Use:   "credential <anthropic|openai>",
	Short: "Store or remove the API key for a hosted provider",
	Long: `Store the API key for a hosted provider. The key is taken from the
FEEDLENS_API_KEY environment variable, or prompted for without echo when
unset, so it never appears in shell history. --remove deletes the stored key.`,
	Args: cobra.ExactArgs(1),
	RunE: runCredential,
}

func init() {
	f := settingsCmd.Flags()
	f.StringVar(&setProvider, "provider", "", "provider kind (ollama, anthropic, openai)")
	f.StringVar(&setModel, "model", "", "model identifier")
	f.StringVar(&setBaseURL, "base-url", "", "provider base URL")
	f.IntVar(&setMaxTokens, "max-tokens", 0, "output token limit")
	f.IntVar(&setMaxRounds, "max-rounds", 0, "clarification rounds for new analyses")
	f.IntVar(&setTimeoutMs, "timeout-ms", 0, "provider call timeout in milliseconds")
	f.IntVar(&setContext, "context-length", 0, "context window for local models")

	credentialCmd.Flags().BoolVar(&removeCredential, "remove", false, "delete the stored key")
	modelsCmd.Flags().StringVar(&modelsFilter, "filter", "", "fuzzy-match model names")

	rootCmd.AddCommand(testConnectionCmd, modelsCmd, settingsCmd, credentialCmd)
}

func runTestConnection(cmd *cobra.Command, _ []string) error {
	res, err := newClient().TestConnection(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return outputJSON(w, res)
	}
	state := "FAILED"
	if res.Success {
		state = "OK"
	}
	fmt.Fprintf(w, "%s: %s", state, res.Message)
	if res.LatencyMs != nil {
		fmt.Fprintf(w, " (%dms)", *res.LatencyMs)
	}
	fmt.Fprintln(w)
	if !res.Success {
		return fmt.Errorf("connection test failed")
	}
	return nil
}

func runModels(cmd *cobra.Command, _ []string) error {
	installed, err := newClient().ListModels(cmd.Context())
	if err != nil {
		return err
	}
	installed = filterModels(installed, modelsFilter)

	w := cmd.OutOrStdout()
	if jsonOutput {
		return outputJSON(w, installed)
	}
	if len(installed) == 0 {
		if modelsFilter != "" {
			fmt.Fprintf(w, "No models match %q.\n", modelsFilter)
			return nil
		}
		fmt.Fprintln(w, "No models installed.")
		return nil
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
	for _, m := range installed {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, humanSize(m.Size), m.ModifiedAt.Format("2006-01-02"))
	}
	return tw.Flush()
}

func runSettings(cmd *cobra.Command, _ []string) error {
	c := newClient()
	cur, err := c.GetSettings(cmd.Context())
	if err != nil {
		return err
	}

	cfg := cur.Config
	changed := false
	flags := cmd.Flags()
	apply := func(name string, fn func()) {
		if flags.Changed(name) {
			fn()
			changed = true
		}
	}
	apply("provider", func() { cfg.Kind = models.ProviderKind(setProvider) })
	apply("model", func() { cfg.ModelID = setModel })
	apply("base-url", func() { cfg.BaseURL = setBaseURL })
	apply("max-tokens", func() { cfg.MaxTokens = setMaxTokens })
	apply("max-rounds", func() { cfg.MaxRounds = setMaxRounds })
	apply("timeout-ms", func() { cfg.TimeoutMs = setTimeoutMs })
	apply("context-length", func() { cfg.ContextLength = setContext })

	if changed {
		saved, err := c.PutSettings(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		cfg = *saved
	}

	w := cmd.OutOrStdout()
	if jsonOutput {
		return outputJSON(w, map[string]any{"config": cfg, "credentials": cur.Credentials})
	}
	tw := newTable(w)
	fmt.Fprintf(tw, "Provider:\t%s\n", cfg.Kind)
	fmt.Fprintf(tw, "Model:\t%s\n", cfg.ModelID)
	if cfg.BaseURL != "" {
		fmt.Fprintf(tw, "Base URL:\t%s\n", cfg.BaseURL)
	}
	fmt.Fprintf(tw, "Max tokens:\t%d\n", cfg.MaxTokens)
	fmt.Fprintf(tw, "Max rounds:\t%d\n", cfg.MaxRounds)
	if cfg.TimeoutMs > 0 {
		fmt.Fprintf(tw, "Timeout:\t%dms\n", cfg.TimeoutMs)
	}
	if cfg.ContextLength > 0 {
		fmt.Fprintf(tw, "Context length:\t%d\n", cfg.ContextLength)
	}
	for _, k := range []models.ProviderKind{models.ProviderAnthropic, models.ProviderOpenAI} {
		fmt.Fprintf(tw, "%s key:\t%t\n", k, cur.Credentials[k])
	}
	return tw.Flush()
}

func runCredential(cmd *cobra.Command, args []string) error {
	kind := models.ProviderKind(args[0])
	if !kind.Hosted() {
		return fmt.Errorf("%q does not take an API key", args[0])
	}

	var key string
	if !removeCredential {
		key = strings.TrimSpace(os.Getenv("FEEDLENS_API_KEY"))
		if key == "" {
			var err error
			if key, err = readSecret(fmt.Sprintf("%s API key: ", kind), cmd.ErrOrStderr()); err != nil {
				return err
			}
		}
		if strings.TrimSpace(key) == "" {
			return fmt.Errorf("empty API key; use --remove to delete the stored key")
		}
	}

	res, err := newClient().PutCredential(cmd.Context(), kind, key)
	if err != nil {
		return err
	}
	if jsonOutput {
		return outputJSON(cmd.OutOrStdout(), res)
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Message)
	if res.RestartRequired {
		fmt.Fprintln(cmd.ErrOrStderr(), "warning: restart the feedlens server for the change to take effect")
	}
	return nil
}

// filterModels keeps the models whose names fuzzy-match pattern, best first.
func filterModels(installed []models.InstalledModel, pattern string) []models.InstalledModel {
	if pattern == "" {
		return installed
	}
	names := make([]string, len(installed))
	for i, m := range installed {
		names[i] = m.Name
	}
	matches := fuzzy.Find(pattern, names)
	out := make([]models.InstalledModel, 0, len(matches))
	for _, m := range matches {
		out = append(out, installed[m.Index])
	}
	return out
}

func humanSize(b int64) string {
	const unit = 1000
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "kMGTPE"[exp])
}
