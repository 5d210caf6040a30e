package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/renameio/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/kapu/netfolio/internal/catalog"
	"github.com/kapu/netfolio/internal/constants"
	"github.com/kapu/netfolio/internal/linkcheck"
	"github.com/kapu/netfolio/internal/service/database"
	"github.com/kapu/netfolio/internal/util"
)

type App struct {
	out    io.Writer
	logger *zap.Logger

	catalogFile string
	driver      string
	dsn         string
}

func newApp(out io.Writer, logger *zap.Logger) *App {
	_ = godotenv.Load()
	return &App{
		out:         out,
		logger:      logger,
		catalogFile: os.Getenv("CATALOG_FILE"),
		driver:      strings.ToLower(envOr("DATABASE_DRIVER", database.DriverPostgres)),
		dsn:         os.Getenv("DATABASE_DSN"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// loadCatalog reads --file when set, otherwise the embedded catalog.
func (a *App) loadCatalog() (*catalog.Catalog, error) {
	if a.catalogFile == "" {
		return catalog.Default(), nil
	}
	f, err := os.Open(a.catalogFile)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return catalog.Load(f)
}

func (a *App) openStore(ctx context.Context) (*database.CatalogStore, error) {
	if a.dsn == "" {
		return nil, fmt.Errorf("--dsn (or DATABASE_DSN) is required")
	}
	store, err := database.OpenStore(ctx, database.StoreConfig{Driver: a.driver, DSN: a.dsn}, a.logger)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

func newSeedCmd(app *App) *cobra.Command {
	var prune bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write the catalog's row cards into the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.loadCatalog()
			if err != nil {
				return err
			}
			store, err := app.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			records := database.RecordsFromRows(c.AllRows())
			if err := store.UpsertCards(cmd.Context(), records); err != nil {
				return err
			}

			var removed int64
			if prune {
				ids := make([]string, 0, len(records))
				for _, rec := range records {
					ids = append(ids, rec.Card.ID)
				}
				if removed, err = store.DeleteCardsExcept(cmd.Context(), ids); err != nil {
					return err
				}
			}

			fmt.Fprintf(app.out, "seeded %d cards (%d removed)\n", len(records), removed)
			return nil
		},
	}
	cmd.Flags().BoolVar(&prune, "prune", true, "delete cards that are no longer in the catalog")
	return cmd
}

func newExportCmd(app *App) *cobra.Command {
	var fromDB bool
	cmd := &cobra.Command{
		Use:   "export <path>",
		Short: "Write the catalog as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.loadCatalog()
			if err != nil {
				return err
			}

			if fromDB {
				store, err := app.openStore(cmd.Context())
				if err != nil {
					return err
				}
				defer store.Close()

				records, err := store.ListCards(cmd.Context())
				if err != nil {
					return err
				}
				if c, err = c.WithRowCards(database.GroupByRow(records)); err != nil {
					return err
				}
			}

			var buf bytes.Buffer
			if err := yamlEncode(&buf, c.Document()); err != nil {
				return fmt.Errorf("encode catalog: %w", err)
			}

			if err := renameio.WriteFile(args[0], buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", args[0], err)
			}
			fmt.Fprintf(app.out, "exported %d rows to %s\n", len(c.AllRows()), args[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&fromDB, "from-db", false, "take row cards from the database")
	return cmd
}

func yamlEncode(w io.Writer, doc catalog.Document) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}

func newCheckLinksCmd(app *App) *cobra.Command {
	var (
		concurrency int
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "check-links",
		Short: "Request every image, video and link URL in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := app.loadCatalog()
			if err != nil {
				return err
			}

			targets := linkcheck.Targets(c)
			results := linkcheck.NewChecker(concurrency, timeout, app.logger).Check(cmd.Context(), targets)
			failed := linkcheck.Failures(results)

			for _, r := range failed {
				fmt.Fprintf(app.out, "FAIL %s (%s): %v\n", r.URL, r.Where, r.Err)
			}
			fmt.Fprintf(app.out, "checked %d links, %d failed\n", len(results), len(failed))

			if len(failed) > 0 {
				return fmt.Errorf("%d broken links", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", constants.LinkCheckConfig.Concurrency, "parallel requests")
	cmd.Flags().DurationVar(&timeout, "timeout", constants.LinkCheckConfig.Timeout, "per-request timeout")
	return cmd
}

func newRootCmd(app *App) *cobra.Command {
	root := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Manage the portfolio catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&app.catalogFile, "file", app.catalogFile, "catalog YAML file (default: embedded catalog)")
	root.PersistentFlags().StringVar(&app.driver, "driver", app.driver, "database driver: postgres or sqlite")
	root.PersistentFlags().StringVar(&app.dsn, "dsn", app.dsn, "database DSN")

	root.AddCommand(newSeedCmd(app))
	root.AddCommand(newExportCmd(app))
	root.AddCommand(newCheckLinksCmd(app))
	return root
}

func Execute() {
	logger, err := util.NewLogger(envOr("LOG_LEVEL", "info"), "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := newRootCmd(newApp(os.Stdout, logger)).ExecuteContext(context.Background()); err != nil {
		logger.Error("catalogctl failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}
