// File: cmd/run.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/formpilot/api/schemas"
	"github.com/xkilldash9x/formpilot/internal/browser/session"
	"github.com/xkilldash9x/formpilot/internal/config"
	"github.com/xkilldash9x/formpilot/internal/filler"
	"github.com/xkilldash9x/formpilot/internal/formparse"
	"github.com/xkilldash9x/formpilot/internal/generator"
	"github.com/xkilldash9x/formpilot/internal/llmclient"
	"github.com/xkilldash9x/formpilot/internal/observability"
	"github.com/xkilldash9x/formpilot/internal/orchestrator"
	"github.com/xkilldash9x/formpilot/internal/persona"
	"github.com/xkilldash9x/formpilot/internal/quota"
)

// Seams for tests.
var (
	newLLMClient      = llmclient.NewClient
	newBrowserSession = func(ctx context.Context, cfg config.BrowserConfig, logger *zap.Logger) (schemas.BrowserSession, error) {
		return session.New(ctx, cfg, logger)
	}
	openQuotaStore = quota.Open
	osHostname     = os.Hostname
)

type runOptions struct {
	url       string
	count     int
	callerKey string
	format    string

	rawPersona string
	profile    persona.Profile
}

func newRunCmd() *cobra.Command {
	var opts runOptions

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Submits AI-generated responses to a Google Form",
		Long: `Opens the form in a headless browser, generates one persona-consistent
response set per attempt and submits them one after another.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			personaText, err := opts.persona(cfg.Persona)
			if err != nil {
				return err
			}
			if opts.callerKey == "" {
				opts.callerKey = defaultCallerKey()
			}

			store, err := openQuotaStore(ctx, cfg.Quota, logger)
			if err != nil {
				return fmt.Errorf("failed to open quota store: %w", err)
			}
			defer func() {
				if err := store.Close(); err != nil {
					logger.Warn("Error closing quota store", zap.Error(err))
				}
			}()

			orch, err := newOrchestrator(ctx, cfg, logger, store)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			summary, runErr := orch.Run(ctx, orchestrator.RunRequest{
				FormURL:   opts.url,
				Persona:   personaText,
				Count:     opts.count,
				CallerKey: opts.callerKey,
				OnProgress: func(done, total int, res schemas.SubmissionResult) {
					if opts.format == "text" {
						fmt.Fprintf(out, "[%d/%d] %s (%s)\n", done, total, res.Outcome, res.Duration.Round(time.Millisecond))
					}
				},
			})
			if len(summary.Results) == 0 && runErr != nil {
				return runErr
			}

			if err := writeSummary(out, opts.format, summary); err != nil {
				return err
			}
			if errors.Is(runErr, context.Canceled) {
				logger.Warn("Run interrupted by operator", zap.Int("attempted", len(summary.Results)))
			}
			return runErr
		},
	}

	f := runCmd.Flags()
	f.StringVarP(&opts.url, "url", "u", "", "Google Form viewform URL")
	f.IntVarP(&opts.count, "count", "n", 1, "Number of responses to submit")
	f.StringVar(&opts.callerKey, "caller-key", "", "Key the run is charged to (default derived from the hostname)")
	f.StringVarP(&opts.format, "format", "f", "text", "Summary format: text, json or yaml")
	f.StringVar(&opts.rawPersona, "persona", "", "Free-form persona description (replaces the demographic flags)")
	f.StringSliceVar(&opts.profile.AgeGroups, "age", nil, "Age group(s) of the respondents")
	f.StringSliceVar(&opts.profile.Genders, "gender", nil, "Gender(s) of the respondents")
	f.StringSliceVar(&opts.profile.Countries, "country", nil, "Country or countries of the respondents")
	f.StringVar(&opts.profile.Audience, "audience", "", "Description of the target audience")
	f.StringVar(&opts.profile.Objective, "objective", "", "What the form is trying to learn")
	_ = runCmd.MarkFlagRequired("url")

	return runCmd
}

// persona returns the persona sentence, either as given or built from the
// demographic flags.
func (o runOptions) persona(vocab config.PersonaConfig) (string, error) {
	if o.rawPersona != "" {
		return o.rawPersona, nil
	}
	return persona.VocabularyFrom(vocab).Build(o.profile)
}

func defaultCallerKey() string {
	host, err := osHostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return quota.CallerKey(host, "formpilot")
}

// newOrchestrator wires the run pipeline for cfg.
func newOrchestrator(ctx context.Context, cfg *config.Config, logger *zap.Logger, store schemas.QuotaStore) (*orchestrator.Orchestrator, error) {
	llm, err := newLLMClient(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	gen, err := generator.New(llm, cfg.LLM.Temperature, logger)
	if err != nil {
		return nil, err
	}
	return orchestrator.New(cfg, logger, orchestrator.Deps{
		Sessions: func(ctx context.Context) (schemas.BrowserSession, error) {
			return newBrowserSession(ctx, cfg.Browser, logger)
		},
		Extractor: formparse.NewExtractor(cfg.Form, logger),
		Generator: gen,
		Filler:    filler.New(cfg.Form, cfg.Filler, logger),
		Quota:     store,
	})
}

func writeSummary(w io.Writer, format string, summary schemas.RunSummary) error {
	if format != "text" {
		return writeOutput(w, format, summary)
	}
	fmt.Fprintf(w, "\nRun %s\n", summary.RunID)
	for _, res := range summary.Results {
		line := fmt.Sprintf("  attempt %d: %s, %d filled, %d skipped, %d failed",
			res.Attempt, res.Outcome,
			res.Count(schemas.QuestionFilled),
			res.Count(schemas.QuestionSkipped),
			res.Count(schemas.QuestionFailed))
		if res.Error != "" {
			line += " (" + res.Error + ")"
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintf(w, "Successfully submitted %d/%d responses in %s\n",
		summary.Successful, summary.Requested,
		summary.FinishedAt.Sub(summary.StartedAt).Round(time.Second))
	return nil
}
