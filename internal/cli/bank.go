package cli

import (
	"context"
	"fmt"
	"io"
	"sort"

	"cloudops-quiz-engine/internal/bank"
	"cloudops-quiz-engine/internal/config"
	"cloudops-quiz-engine/internal/domain"
	pginfra "cloudops-quiz-engine/internal/infra/postgres"
	"cloudops-quiz-engine/internal/logging"
	"cloudops-quiz-engine/internal/selector"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
)

// NewBankCmd groups the offline question bank tools.
func NewBankCmd(configPath *string) *cobra.Command {
	var source, backend string
	cmd := &cobra.Command{
		Use:   "bank",
		Short: "Inspect, validate and import question banks",
	}
	cmd.PersistentFlags().StringVar(&source, "source", "", "bank source (defaults to bank.source)")
	cmd.PersistentFlags().StringVar(&backend, "backend", "", "bank backend: http, file or postgres (defaults to bank.backend)")

	load := func(ctx context.Context) (*bank.Pool, error) {
		cfg, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		if source != "" {
			cfg.Bank.Source = source
		}
		if backend != "" {
			cfg.Bank.Backend = backend
		}
		return loadPool(ctx, cfg)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Print domain and difficulty distributions",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := load(cmd.Context())
			if err != nil {
				return err
			}
			printStats(cmd.OutOrStdout(), pool)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Check every question and the bank header",
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := load(cmd.Context())
			if err != nil {
				return err
			}
			issues := bank.Audit(pool)
			for _, issue := range issues {
				if issue.QuestionID != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", issue.QuestionID, issue.Problem)
					continue
				}
				fmt.Fprintln(cmd.OutOrStdout(), issue.Problem)
			}
			if len(issues) > 0 {
				return fmt.Errorf("%d issues in %d questions", len(issues), pool.Len())
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d questions ok\n", pool.Len())
			return nil
		},
	})

	var name string
	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store a bank JSON file in postgres",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return importBank(cmd.Context(), cfg, args[0], name, cmd.OutOrStdout())
		},
	}
	importCmd.Flags().StringVar(&name, "name", "default", "bank name to store under (the source for the postgres backend)")
	cmd.AddCommand(importCmd)
	return cmd
}

func loadPool(ctx context.Context, cfg config.Config) (*bank.Pool, error) {
	var pool *pgxpool.Pool
	if cfg.Bank.Backend == config.BackendPostgres && cfg.Postgres.URL != "" {
		var err error
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		defer pool.Close()
	}
	fetcher, err := newFetcher(cfg, pool)
	if err != nil {
		return nil, err
	}
	accessor := bank.NewAccessor(fetcher, cfg.Bank.Source,
		bank.WithTimeout(config.TTLDuration(cfg.Bank.Timeout, bank.DefaultTimeout)))
	return accessor.Load(ctx)
}

func importBank(ctx context.Context, cfg config.Config, path, name string, out io.Writer) error {
	logger := logging.New(cfg.App.Name, cfg.App.Env)
	raw, err := bank.FileFetcher{}.Fetch(ctx, path)
	if err != nil {
		return err
	}
	parsed, err := bank.Parse(path, raw)
	if err != nil {
		return err
	}
	if issues := bank.Audit(parsed); len(issues) > 0 {
		logger.Warn().Int("issues", len(issues)).Msg("importing bank with data-quality issues; run bank validate")
	}
	doc := parsed.Meta()
	doc.Questions = parsed.Questions()

	if err := runMigrationsWithConfig(ctx, cfg, logger); err != nil {
		return err
	}
	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pginfra.NewBankLoader(pool).Store(ctx, name, doc); err != nil {
		return err
	}
	fmt.Fprintf(out, "imported %d questions as %q\n", len(doc.Questions), name)
	return nil
}

func printStats(out io.Writer, pool *bank.Pool) {
	qs := pool.Questions()
	meta := pool.Meta()
	fmt.Fprintf(out, "source:     %s\n", pool.Source())
	if meta.Version != "" {
		fmt.Fprintf(out, "version:    %s (generated %s)\n", meta.Version, meta.GeneratedAt)
	}
	fmt.Fprintf(out, "questions:  %d\n", len(qs))

	fmt.Fprintln(out, "domains:")
	byDomain := selector.DomainDistribution(qs)
	for _, d := range domain.Domains {
		fmt.Fprintf(out, "  %-12s %d\n", d, byDomain[d])
	}
	var extra []string
	for d := range byDomain {
		if !isListed(d) {
			extra = append(extra, string(d))
		}
	}
	sort.Strings(extra)
	for _, d := range extra {
		fmt.Fprintf(out, "  %-12s %d (unknown)\n", d, byDomain[domain.Domain(d)])
	}

	fmt.Fprintln(out, "difficulty:")
	byDifficulty := selector.DifficultyDistribution(qs)
	for _, d := range []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard} {
		fmt.Fprintf(out, "  %-12s %d\n", d, byDifficulty[d])
	}
}

func isListed(d domain.Domain) bool {
	for _, known := range domain.Domains {
		if known == d {
			return true
		}
	}
	return false
}
