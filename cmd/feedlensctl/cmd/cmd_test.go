package cmd

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atotto/clipboard"
	"github.com/kiranshivaraju/feedlens/pkg/models"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Structure(t *testing.T) {
	assert.Equal(t, "feedlensctl", rootCmd.Use)
	assert.True(t, rootCmd.SilenceUsage)
	assert.True(t, rootCmd.SilenceErrors)

	for _, name := range []string{"server", "json", "config", "timeout"} {
		assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), "missing flag %s", name)
	}

	want := []string{"analyze", "show", "answer", "pass", "follow-up", "list", "submit",
		"test-connection", "models", "settings", "credential"}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

// run executes the command tree against srv and returns stdout.
func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

// resetFlags restores every flag to its default so earlier runs do not leak
// values or Changed state into the next one.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func serveJSON(t *testing.T, h func(r *http.Request) (int, any)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		status, body := h(r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			json.NewEncoder(w).Encode(body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func sampleAnalysis() models.FeedbackAnalysis {
	return models.FeedbackAnalysis{
		FeedbackID:    "fb-1",
		Provider:      models.ProviderOllama,
		ModelID:       "llama3",
		Status:        models.StatusNeedsClarification,
		QuestionRound: 1,
		MaxRounds:     3,
		Result: &models.AnalysisResult{
			Summary:          "Export fails for large workbooks",
			Confidence:       models.ConfidenceMedium,
			SuggestedActions: []string{"Stream the export"},
		},
		ClarifyingQuestions: []models.ClarifyingQuestion{
			{ID: "q-1", Question: "Which browser?", IsRequired: true, Category: "environment"},
			{ID: "q-2", Question: "How large?", Category: "data", PassedToUser: true},
		},
	}
}

func TestAnalyze_PrintsRoundAndQuestions(t *testing.T) {
	var gotBody map[string]string
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		assert.Equal(t, "/api/v1/feedback/fb-1/analysis", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotBody)
		return http.StatusOK, map[string]any{"data": sampleAnalysis()}
	})

	out, err := run(t, srv, "analyze", "fb-1", "--clarify", "only with 10k rows")
	require.NoError(t, err)

	assert.Equal(t, "only with 10k rows", gotBody["clarification"])
	assert.Contains(t, out, "Round:     1/3")
	assert.Contains(t, out, "Export fails for large workbooks")
	assert.Contains(t, out, "- Stream the export")
	assert.Contains(t, out, "Which browser?")
	assert.Contains(t, out, "with reporter")
}

func TestAnswer_JoinsWordsAndSendsAuthor(t *testing.T) {
	var gotBody map[string]string
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		assert.Equal(t, "/api/v1/feedback/fb-1/analysis/questions/q-1/answer", r.URL.Path)
		json.NewDecoder(r.Body).Decode(&gotBody)
		a := sampleAnalysis()
		a.Status = models.StatusCompleted
		return http.StatusOK, map[string]any{"data": a}
	})

	out, err := run(t, srv, "answer", "fb-1", "q-1", "Safari", "17", "--by", "user")
	require.NoError(t, err)

	assert.Equal(t, "Safari 17", gotBody["answer"])
	assert.Equal(t, "user", gotBody["answeredBy"])
	assert.Contains(t, out, "Status:    completed")
}

func TestShow_JSONOutput(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		assert.Equal(t, http.MethodGet, r.Method)
		return http.StatusOK, map[string]any{"data": sampleAnalysis()}
	})

	out, err := run(t, srv, "show", "fb-1", "--json")
	require.NoError(t, err)

	var got models.FeedbackAnalysis
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "fb-1", got.FeedbackID)
	assert.Len(t, got.ClarifyingQuestions, 2)
}

func TestFollowUp_GenerateAndCopied(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		if strings.HasSuffix(r.URL.Path, "/copied") {
			return http.StatusOK, map[string]any{"data": models.FollowUpArtifact{ID: "fu-1", Copied: true, CopiedAt: &now}}
		}
		return http.StatusCreated, map[string]any{"data": models.FollowUpArtifact{ID: "fu-1", Body: "Next steps", GeneratedAt: now}}
	})

	out, err := run(t, srv, "follow-up", "fb-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Next steps")

	out, err = run(t, srv, "follow-up", "fb-1", "--copied", "fu-1")
	require.NoError(t, err)
	assert.Contains(t, out, "Marked fu-1 as copied.")
}

func TestCommand_SurfacesAPIError(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		return http.StatusConflict, map[string]any{"error": map[string]any{"code": "CONFLICT", "message": "analysis has no result yet"}}
	})

	_, err := run(t, srv, "follow-up", "fb-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFLICT")
	assert.Contains(t, err.Error(), "analysis has no result yet")
}

func TestTestConnection_FailureIsError(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		return http.StatusOK, map[string]any{"data": models.ConnectionResult{Success: false, Message: "API key not configured"}}
	})

	out, err := run(t, srv, "test-connection")
	require.Error(t, err)
	assert.Contains(t, out, "FAILED: API key not configured")
}

func TestModels_Table(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		return http.StatusOK, map[string]any{"data": []models.InstalledModel{
			{Name: "llama3:8b", Size: 4_700_000_000, ModifiedAt: time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)},
		}}
	})

	out, err := run(t, srv, "models")
	require.NoError(t, err)
	assert.Contains(t, out, "llama3:8b")
	assert.Contains(t, out, "4.7 GB")
	assert.Contains(t, out, "2026-02-01")
}

func TestSettings_UpdatesOnlyChangedFields(t *testing.T) {
	var put models.ProviderConfig
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		if r.Method == http.MethodPut {
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&put))
			return http.StatusOK, map[string]any{"data": put}
		}
		return http.StatusOK, map[string]any{"data": map[string]any{
			"config":      models.ProviderConfig{Kind: models.ProviderOllama, ModelID: "llama3", MaxTokens: 2048, MaxRounds: 3},
			"credentials": map[string]bool{"anthropic": true, "openai": false},
		}}
	})

	out, err := run(t, srv, "settings", "--max-rounds", "5")
	require.NoError(t, err)

	assert.Equal(t, 5, put.MaxRounds)
	assert.Equal(t, "llama3", put.ModelID)
	assert.Equal(t, 2048, put.MaxTokens)
	assert.Contains(t, out, "anthropic key:")
}

func TestCredential_RejectsLocalProvider(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		t.Error("no request expected")
		return http.StatusInternalServerError, nil
	})

	_, err := run(t, srv, "credential", "ollama")
	require.Error(t, err)
}

func TestList_Empty(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		return http.StatusOK, map[string]any{"data": []any{}, "meta": map[string]any{"total": 0, "hasNext": false}}
	})

	out, err := run(t, srv, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No feedback reports.")
}

func TestHumanSize(t *testing.T) {
	assert.Equal(t, "512 B", humanSize(512))
	assert.Equal(t, "1.5 kB", humanSize(1500))
	assert.Equal(t, "4.7 GB", humanSize(4_700_000_000))
}

func TestFollowUp_CopyMarksCopied(t *testing.T) {
	var copied string
	nativeCopy = func(text string) error { copied = text; return nil }
	t.Cleanup(func() { nativeCopy = clipboard.WriteAll })

	var marked bool
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		if strings.HasSuffix(r.URL.Path, "/follow-ups/fu-9/copied") {
			marked = true
			return http.StatusOK, map[string]any{"data": models.FollowUpArtifact{ID: "fu-9", Body: "Please attach a HAR file", Copied: true}}
		}
		return http.StatusCreated, map[string]any{"data": models.FollowUpArtifact{ID: "fu-9", Body: "Please attach a HAR file"}}
	})

	out, err := run(t, srv, "follow-up", "fb-1", "--copy")
	require.NoError(t, err)

	assert.Equal(t, "Please attach a HAR file", copied)
	assert.True(t, marked)
	assert.Empty(t, out)
}

func TestFollowUp_CopyFailureLeavesArtifactUncopied(t *testing.T) {
	nativeCopy = func(string) error { return errors.New("no clipboard") }
	osc52Copy = func(string) error { return errors.New("not a terminal") }
	t.Cleanup(func() {
		nativeCopy = clipboard.WriteAll
		osc52Copy = copyOSC52
	})

	srv := serveJSON(t, func(r *http.Request) (int, any) {
		assert.False(t, strings.HasSuffix(r.URL.Path, "/copied"), "must not mark copied")
		return http.StatusCreated, map[string]any{"data": models.FollowUpArtifact{ID: "fu-1", Body: "x"}}
	})

	_, err := run(t, srv, "follow-up", "fb-1", "--copy")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no clipboard")
	assert.Contains(t, err.Error(), "not a terminal")
}

func TestCopyText_FallsBackToOSC52(t *testing.T) {
	nativeCopy = func(string) error { return errors.New("no display") }
	var sent string
	osc52Copy = func(text string) error { sent = text; return nil }
	t.Cleanup(func() {
		nativeCopy = clipboard.WriteAll
		osc52Copy = copyOSC52
	})

	method, err := copyText("body")
	require.NoError(t, err)
	assert.Equal(t, "terminal (OSC52)", method)
	assert.Equal(t, "body", sent)
}

func TestFollowUp_WritesOutputFile(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		return http.StatusCreated, map[string]any{"data": models.FollowUpArtifact{ID: "fu-2", Body: "## Next steps"}}
	})
	path := filepath.Join(t.TempDir(), "follow-up.md")

	out, err := run(t, srv, "follow-up", "fb-1", "--output", path)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "## Next steps\n", string(data))
	assert.Contains(t, out, "Wrote follow-up fu-2")
}

func TestModels_FuzzyFilter(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		return http.StatusOK, map[string]any{"data": []models.InstalledModel{
			{Name: "mistral:7b"}, {Name: "llama3:8b"}, {Name: "llama3.1:70b"},
		}}
	})

	out, err := run(t, srv, "models", "--filter", "lma3")
	require.NoError(t, err)
	assert.Contains(t, out, "llama3:8b")
	assert.Contains(t, out, "llama3.1:70b")
	assert.NotContains(t, out, "mistral")

	out, err = run(t, srv, "models", "--filter", "qwen")
	require.NoError(t, err)
	assert.Contains(t, out, `No models match "qwen".`)
}

func TestCredential_FromEnvAndRemove(t *testing.T) {
	var keys []string
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		assert.Equal(t, "/api/v1/ai/credentials/anthropic", r.URL.Path)
		var body map[string]string
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		keys = append(keys, body["apiKey"])
		res := models.CredentialUpdate{Provider: models.ProviderAnthropic, Configured: true, Message: "Stored anthropic credential."}
		if body["apiKey"] == "" {
			res = models.CredentialUpdate{
				Provider:        models.ProviderAnthropic,
				RestartRequired: true,
				Message:         "Removed anthropic credential. The server keeps using the previous key until it restarts.",
			}
		}
		return http.StatusOK, map[string]any{"data": res}
	})

	t.Setenv("FEEDLENS_API_KEY", " sk-ant-123 ")
	out, err := run(t, srv, "credential", "anthropic")
	require.NoError(t, err)
	assert.Contains(t, out, "Stored anthropic credential.")
	assert.NotContains(t, out, "restarts")

	out, err = run(t, srv, "credential", "anthropic", "--remove")
	require.NoError(t, err)
	assert.Contains(t, out, "Removed anthropic credential.")
	assert.Contains(t, out, "until it restarts")

	assert.Equal(t, []string{"sk-ant-123", ""}, keys)
}

func TestCredential_RestartWarningOnStderr(t *testing.T) {
	srv := serveJSON(t, func(r *http.Request) (int, any) {
		return http.StatusOK, map[string]any{"data": models.CredentialUpdate{
			Provider: models.ProviderOpenAI, Configured: true, RestartRequired: true, Message: "Replaced openai credential.",
		}}
	})
	t.Setenv("FEEDLENS_API_KEY", "sk-new")

	resetFlags(rootCmd)
	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"--server", srv.URL, "credential", "openai"})
	require.NoError(t, rootCmd.Execute())

	assert.Contains(t, stdout.String(), "Replaced openai credential.")
	assert.Contains(t, stderr.String(), "restart the feedlens server")
}
