package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/hupe1980/vecsim"
	"github.com/hupe1980/vecsim/blobstore"
	"github.com/hupe1980/vecsim/catalog"
	"github.com/hupe1980/vecsim/config"
	"github.com/hupe1980/vecsim/metrics/prom"
	"github.com/hupe1980/vecsim/snapshot"
)

// session bundles what every command needs.
type session struct {
	cfg    *config.Config
	logger *vecsim.Logger
	store  blobstore.BlobStore
	ptr    snapshot.Pointer
	engine *vecsim.Engine
}

func loadConfig() (*config.Config, error) {
	var files []string
	if envFile != "" {
		files = append(files, envFile)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func openSession(ctx context.Context, extra ...vecsim.Option) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	bs, ptr, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	engine, err := loadEngine(ctx, bs, ptr, append(cfg.EngineOptions(), extra...))
	if err != nil {
		return nil, fmt.Errorf("load snapshot: %w", err)
	}

	return &session{cfg: cfg, logger: cfg.Logger(), store: bs, ptr: ptr, engine: engine}, nil
}

func (s *session) recommender(ctx context.Context, includeOutOfStock bool, withProvider bool) (*catalog.Recommender, error) {
	r := func(o *catalog.RecommenderOptions) {
		o.MinSimilarity = s.cfg.MinSimilarity
		o.ExcludeOutOfStock = !includeOutOfStock
	}
	if !withProvider {
		return catalog.NewRecommender(s.engine, nil, r), nil
	}
	p, err := newProvider(ctx, s.cfg)
	if err != nil {
		return nil, err
	}
	return catalog.NewRecommender(s.engine, p, r), nil
}

func readProducts(path string) ([]catalog.Product, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		st, err := f.Stat()
		if err != nil {
			return nil, err
		}
		return catalog.ReadParquet(f, st.Size())
	}
	return catalog.ReadJSONLines(f)
}

// serveMetrics exposes reg on addr until ctx is done.
func serveMetrics(ctx context.Context, addr string, reg *prometheus.Registry, logger *vecsim.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
}

func newIngestCmd() *cobra.Command {
	var (
		force   bool
		noPrune bool
	)

	cmd := &cobra.Command{
		Use:   "ingest <products.jsonl|products.parquet>",
		Short: "Embed products and publish a new snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			products, err := readProducts(args[0])
			if err != nil {
				return err
			}

			reg := prometheus.NewRegistry()
			s, err := openSession(ctx, vecsim.WithMetricsCollector(prom.New(reg)))
			if err != nil {
				return err
			}
			if s.cfg.MetricsAddr != "" {
				serveMetrics(ctx, s.cfg.MetricsAddr, reg, s.logger)
			}

			provider, err := newProvider(ctx, s.cfg)
			if err != nil {
				return err
			}

			in := catalog.NewIngester(s.engine, provider, func(o *catalog.IngestOptions) {
				o.BatchSize = s.cfg.BatchSize
				o.Concurrency = s.cfg.EmbedConcurrency
				o.SkipExisting = !force
				o.Logger = s.logger
			})

			report, ingestErr := in.Ingest(ctx, products)

			// Products indexed before a failure are still worth publishing.
			var name string
			if report.Indexed > 0 {
				name, err = snapshot.Publish(ctx, s.store, s.ptr, s.engine)
				if err != nil {
					return errors.Join(ingestErr, fmt.Errorf("publish snapshot: %w", err))
				}
				if !noPrune && s.cfg.KeepSnaps > 0 {
					if _, err := snapshot.Prune(ctx, s.store, s.ptr, s.cfg.KeepSnaps); err != nil {
						s.logger.Warn("prune failed", "error", err)
					}
				}
			}

			printReport(cmd.OutOrStdout(), report, name)
			return ingestErr
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Re-embed products that are already indexed")
	cmd.Flags().BoolVar(&noPrune, "no-prune", false, "Keep every old snapshot")
	return cmd
}

func newSimilarCmd() *cobra.Command {
	var (
		k                 int
		includeOutOfStock bool
	)

	cmd := &cobra.Command{
		Use:   "similar <product-id>",
		Short: "List products similar to a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			r, err := s.recommender(ctx, includeOutOfStock, false)
			if err != nil {
				return err
			}

			recs, err := r.SimilarProducts(ctx, args[0], k)
			if err != nil {
				return err
			}
			printRecommendations(cmd.OutOrStdout(), "Similar to "+args[0], recs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "top", "k", 5, "Number of products to return")
	cmd.Flags().BoolVar(&includeOutOfStock, "include-out-of-stock", false, "Include products without stock")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var (
		k                 int
		includeOutOfStock bool
	)

	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search products by free text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			r, err := s.recommender(ctx, includeOutOfStock, true)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			recs, err := r.SearchText(ctx, text, k)
			if err != nil {
				return err
			}
			printRecommendations(cmd.OutOrStdout(), fmt.Sprintf("Results for %q", text), recs)
			return nil
		},
	}

	cmd.Flags().IntVarP(&k, "top", "k", 10, "Number of products to return")
	cmd.Flags().BoolVar(&includeOutOfStock, "include-out-of-stock", false, "Include products without stock")
	return cmd
}

func newSubstitutesCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "substitutes <product-id>",
		Short: "Propose substitutions for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}
			r, err := s.recommender(ctx, false, false)
			if err != nil {
				return err
			}

			recs, err := r.Substitutions(ctx, args[0], catalog.SubstitutionReason(reason))
			if err != nil {
				return err
			}
			printRecommendations(cmd.OutOrStdout(), "Substitutes for "+args[0], recs)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", string(catalog.ReasonOutOfStock), "Substitution reason: out_of_stock or price")
	return cmd
}

func newInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show the current snapshot and engine statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			s, err := openSession(ctx)
			if err != nil {
				return err
			}

			current, err := s.ptr.Current(ctx)
			if errors.Is(err, blobstore.ErrNotFound) {
				current = "(none)"
			} else if err != nil {
				return err
			}

			printStats(cmd.OutOrStdout(), current, s.engine.Stats())
			return nil
		},
	}
}

func newPruneCmd() *cobra.Command {
	var keep int

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			bs, ptr, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			if keep <= 0 {
				keep = cfg.KeepSnaps
			}

			deleted, err := snapshot.Prune(ctx, bs, ptr, keep)
			if err != nil {
				return err
			}
			for _, name := range deleted {
				_, _ = muted.Fprintf(cmd.OutOrStdout(), "deleted %s\n", name)
			}
			_, _ = success.Fprintf(cmd.OutOrStdout(), "%d snapshots deleted\n", len(deleted))
			return nil
		},
	}

	cmd.Flags().IntVar(&keep, "keep", 0, "Number of most recent snapshots to keep; the current one is never deleted (default VECSIM_KEEP_SNAPSHOTS)")
	return cmd
}
