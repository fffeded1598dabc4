// Command workrecap-pipeline drives the fetch->normalize->summarize
// pipeline from the command line: a single day, a date range with optional
// cascading weekly/monthly/yearly summaries, an ad-hoc query over past
// recaps, and a read-only HTTP status server over the on-disk state.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"workrecap/internal/adapters/host"
	"workrecap/internal/adapters/llm"
	"workrecap/internal/httpapi"
	"workrecap/internal/platform/config"
	"workrecap/internal/platform/logger"
	"workrecap/internal/services/fetch"
	"workrecap/internal/services/layout"
	"workrecap/internal/services/normalize"
	"workrecap/internal/services/orchestrate"
	"workrecap/internal/services/registry"
	"workrecap/internal/services/summarize"
	"workrecap/internal/state"
)

// deps bundles everything every subcommand needs, built once from config.
type deps struct {
	orchestrator *orchestrate.Orchestrator
	summariser   *summarize.Summariser
	checkpoint   *state.Checkpoint
	dailyState   *state.DailyState
	failedDate   *state.FailedDate
	batchJob     *state.BatchJob
	log          *logger.Logger
}

func buildDeps() (*deps, error) {
	root := config.New().Prefix("WORKRECAP_")
	log := logger.Get()

	dataDir := root.MayString("DATA_DIR", "./data")
	userLogin := root.MustString("GITHUB_USER")
	dataRoot := layout.New(dataDir)

	pool := host.NewPool(root.MayInt("HOST_POOL_SIZE", 2), host.Options{
		BaseURL:   root.MayString("GITHUB_BASE_URL", ""),
		TokensCSV: root.MayString("GITHUB_TOKENS", ""),
	})

	checkpoint, err := state.NewCheckpoint(dataRoot.StateDir() + "/checkpoints.json")
	if err != nil {
		return nil, err
	}
	dailyState, err := state.NewDailyState(dataRoot.StateDir() + "/daily_state.json")
	if err != nil {
		return nil, err
	}
	failedDate, err := state.NewFailedDate(dataRoot.StateDir() + "/failed_dates.json")
	if err != nil {
		return nil, err
	}
	progress := state.NewFetchProgress(dataRoot.FetchProgressDir())
	batchJob, err := state.NewBatchJob(dataRoot.StateDir() + "/batch_jobs.json")
	if err != nil {
		return nil, err
	}

	providerCfg, err := llm.LoadProviderConfig(root.MustString("PROVIDER_CONFIG"))
	if err != nil {
		return nil, err
	}
	router := llm.NewRouter(providerCfg, llm.NewUsageTracker())

	reg := registry.New()
	f, err := reg.Fetcher("github", registry.FetcherDeps{
		Pool: pool, Root: dataRoot, Checkpoint: checkpoint, DailyState: dailyState,
		FailedDate: failedDate, Progress: progress,
		Options: fetch.Options{
			UserLogin:  userLogin,
			MaxWorkers: root.MayInt("FETCH_WORKERS", 2),
			RetryCap:   root.MayInt("RETRY_CAP", 3),
		},
	})
	if err != nil {
		return nil, err
	}
	n, err := reg.Normalizer("github", registry.NormalizerDeps{
		UserLogin: userLogin, Root: dataRoot, DailyState: dailyState, FailedDate: failedDate,
		LLM: router,
		Options: normalize.Options{
			IncludeSelfComments: root.MayBool("INCLUDE_SELF_COMMENTS", true),
			EnableEnrichment:    root.MayBool("ENABLE_ENRICHMENT", true),
			RetryCap:            root.MayInt("RETRY_CAP", 3),
		},
	})
	if err != nil {
		return nil, err
	}
	s := summarize.New(dataRoot, router, dailyState, failedDate, batchJob, summarize.Options{
		MaxWorkers: root.MayInt("SUMMARIZE_WORKERS", 2),
		RetryCap:   root.MayInt("RETRY_CAP", 3),
		MonthsBack: root.MayInt("QUERY_MONTHS_BACK", 3),
		MaxTokens:  root.MayInt("SUMMARY_MAX_TOKENS", 0),
	})

	return &deps{
		orchestrator: orchestrate.New(f, n, s),
		summariser:   s,
		checkpoint:   checkpoint,
		dailyState:   dailyState,
		failedDate:   failedDate,
		batchJob:     batchJob,
		log:          log,
	}, nil
}

func main() {
	root := &cobra.Command{
		Use:   "workrecap-pipeline",
		Short: "Fetch, normalize, and summarize a personal GitHub activity recap",
	}
	root.AddCommand(dailyCmd(), rangeCmd(), queryCmd(), serveCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func dailyCmd() *cobra.Command {
	var types []string
	cmd := &cobra.Command{
		Use:   "daily [date]",
		Short: "Run fetch, normalize, and summarize for one date (YYYY-MM-DD)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			t := fetch.AllTypes()
			if len(types) > 0 {
				t = fetch.NewTypes(types...)
			}
			return d.orchestrator.RunDaily(cmd.Context(), args[0], t)
		},
	}
	cmd.Flags().StringSliceVar(&types, "types", nil, "restrict to these axes (prs,commits,issues); default all")
	return cmd
}

func rangeCmd() *cobra.Command {
	var (
		since, until             string
		types                    []string
		force, batch, enrich     bool
		weekly, monthly, yearly  bool
		maxWorkers               int
	)
	cmd := &cobra.Command{
		Use:   "range",
		Short: "Run the pipeline over a date range, with optional cascading summaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			t := fetch.AllTypes()
			if len(types) > 0 {
				t = fetch.NewTypes(types...)
			}
			statuses, err := d.orchestrator.RunRange(cmd.Context(), since, until, orchestrate.RangeOptions{
				Force: force, Types: t, MaxWorkers: maxWorkers, Batch: batch, Enrich: enrich,
				Weekly: weekly, Monthly: monthly, Yearly: yearly,
			})
			if err != nil {
				return err
			}
			for _, st := range statuses {
				d.log.Info().Str("date", st.Date).Str("status", string(st.Status)).Msg("range status")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "range start date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringVar(&until, "until", "", "range end date, inclusive (YYYY-MM-DD)")
	cmd.Flags().StringSliceVar(&types, "types", nil, "restrict to these axes (prs,commits,issues); default all")
	cmd.Flags().BoolVar(&force, "force", false, "reprocess every date, ignoring staleness/retry caps")
	cmd.Flags().BoolVar(&batch, "batch", false, "submit daily summaries as one provider batch job")
	cmd.Flags().BoolVar(&enrich, "enrich", true, "run the LLM enrichment pass during normalize")
	cmd.Flags().BoolVar(&weekly, "weekly", false, "cascade weekly summaries for touched ISO weeks")
	cmd.Flags().BoolVar(&monthly, "monthly", false, "cascade monthly summaries for touched months")
	cmd.Flags().BoolVar(&yearly, "yearly", false, "cascade yearly summaries (implies --weekly --monthly)")
	cmd.Flags().IntVar(&maxWorkers, "workers", 2, "max concurrent per-date workers")
	_ = cmd.MarkFlagRequired("since")
	_ = cmd.MarkFlagRequired("until")
	return cmd
}

func queryCmd() *cobra.Command {
	var monthsBack int
	cmd := &cobra.Command{
		Use:   "query [question]",
		Short: "Ask an ad-hoc question over recent recaps",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			answer, err := d.summariser.Query(cmd.Context(), args[0], monthsBack)
			if err != nil {
				return err
			}
			fmt.Println(answer)
			return nil
		},
	}
	cmd.Flags().IntVar(&monthsBack, "months-back", 0, "how many months of context to search; 0 uses the configured default")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the read-only status HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := buildDeps()
			if err != nil {
				return err
			}
			srv := httpapi.NewServer(config.New().Prefix("WORKRECAP_HTTP_"), httpapi.Stores{
				Checkpoint: d.checkpoint, DailyState: d.dailyState, FailedDate: d.failedDate, BatchJob: d.batchJob,
			})
			return srv.Run(cmd.Context())
		},
	}
}
