/*
main.go - Command-line entry point

PURPOSE:
  Runs the estimator HTTP API and exposes the whole-database and
  price-list operations as commands for scripting and cron jobs.

COMMANDS:
  serve                  Start the HTTP API
  backup                 Copy the database to a file
  restore                Replace the database from a backup (needs --yes)
  pricelist export       Write the price list as CSV or XLSX
  pricelist import       Replace the price list from a file (needs --yes)
  estimates list         Print saved estimates, newest first
  render                 Render a saved estimate as PDF or XLSX

CONFIGURATION:
  Defaults come from ESTIMATOR_* environment variables and an optional
  .env file (see package config). Flags override both.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM serve stops accepting connections, waits up to 30s for
  active requests, then closes the database.

EXAMPLES:
  estimator serve --addr :3000
  estimator --db shop.db backup --out shop-2026-01-01.db
  estimator pricelist import --from prices.xlsx --yes
  estimator render --job 12 --out kitchen.pdf
*/
package main

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/warp/cabinet-estimator/api"
	"github.com/warp/cabinet-estimator/config"
	"github.com/warp/cabinet-estimator/estimate"
	"github.com/warp/cabinet-estimator/exchange"
	"github.com/warp/cabinet-estimator/render"
	"github.com/warp/cabinet-estimator/settings"
	"github.com/warp/cabinet-estimator/store/sqlite"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	app := newApp(cfg)
	if err := app.Run(os.Args); err != nil {
		log.WithError(err).Fatal("estimator failed")
	}
}

func newApp(cfg config.Config) *cli.App {
	return &cli.App{
		Name:  "estimator",
		Usage: "custom cabinet installation estimates",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "db", Value: cfg.DBPath, Usage: "SQLite database path (\":memory:\" for a throwaway database)"},
			&cli.StringFlag{Name: "log-level", Value: cfg.LogLevel, Usage: "debug, info, warn or error"},
			&cli.StringFlag{Name: "log-format", Value: cfg.LogFormat, Usage: "text or json"},
		},
		Before: func(c *cli.Context) error {
			return config.SetupLogging(c.String("log-level"), c.String("log-format"))
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "start the HTTP API",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "addr", Value: cfg.Addr, Usage: "listen address"},
					&cli.StringSliceFlag{Name: "cors-origin", Value: cli.NewStringSlice(cfg.CORSOrigins...), Usage: "allowed CORS origin (repeatable)"},
				},
				Action: serve,
			},
			{
				Name:  "backup",
				Usage: "copy the database to a file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Required: true, Usage: "destination file (replaced if present)"},
				},
				Action: withStore(func(c *cli.Context, store *sqlite.Store) error {
					return store.Backup(c.Context, c.String("out"))
				}),
			},
			{
				Name:  "restore",
				Usage: "replace the database with a backup",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "from", Required: true, Usage: "backup file"},
					&cli.BoolFlag{Name: "yes", Usage: "confirm that current data will be replaced"},
				},
				Action: withStore(func(c *cli.Context, store *sqlite.Store) error {
					if err := settings.Default().Confirm(c.Bool("yes"), true); err != nil {
						return errors.Wrap(err, "pass --yes to replace the database")
					}
					return store.Restore(c.Context, c.String("from"))
				}),
			},
			{
				Name:  "pricelist",
				Usage: "export or import the price list",
				Subcommands: []*cli.Command{
					{
						Name:  "export",
						Usage: "write the price list to a file",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "out", Required: true, Usage: "destination .csv or .xlsx file"},
							&cli.StringFlag{Name: "format", Usage: "csv or xlsx (default from the file extension)"},
						},
						Action: withStore(exportPriceList),
					},
					{
						Name:  "import",
						Usage: "replace the price list from a file",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "from", Required: true, Usage: "source .csv or .xlsx file"},
							&cli.StringFlag{Name: "format", Usage: "csv or xlsx (default from the file extension)"},
							&cli.BoolFlag{Name: "yes", Usage: "confirm that the current price list will be replaced"},
						},
						Action: withStore(importPriceList),
					},
				},
			},
			{
				Name:  "estimates",
				Usage: "work with saved estimates",
				Subcommands: []*cli.Command{
					{
						Name:  "list",
						Usage: "print saved estimates, newest first",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "search", Aliases: []string{"q"}, Usage: "match customer or job name"},
						},
						Action: withStore(listEstimates),
					},
				},
			},
			{
				Name:  "render",
				Usage: "render a saved estimate",
				Flags: []cli.Flag{
					&cli.Int64Flag{Name: "job", Required: true, Usage: "estimate id"},
					&cli.StringFlag{Name: "out", Required: true, Usage: "destination .pdf or .xlsx file"},
					&cli.StringFlag{Name: "format", Usage: "pdf or xlsx (default from the file extension)"},
				},
				Action: withStore(renderEstimate),
			},
		},
	}
}

// withStore opens the database for the duration of one command.
func withStore(fn func(*cli.Context, *sqlite.Store) error) cli.ActionFunc {
	return func(c *cli.Context) error {
		store, err := sqlite.New(c.String("db"))
		if err != nil {
			return err
		}
		defer store.Close()
		return fn(c, store)
	}
}

// =============================================================================
// SERVE
// =============================================================================

func serve(c *cli.Context) error {
	store, err := sqlite.New(c.String("db"))
	if err != nil {
		return err
	}
	defer store.Close()

	handler := api.NewHandler(store)
	router := api.NewRouter(handler, c.StringSlice("cors-origin"))

	server := &http.Server{
		Addr:         c.String("addr"),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(log.Fields{"addr": server.Addr, "db": c.String("db")}).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, "server failed")
	case <-ctx.Done():
	}

	log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "server forced to shut down")
	}
	log.Info("server stopped")
	return nil
}

// =============================================================================
// PRICE LIST
// =============================================================================

func fileFormat(c *cli.Context, path string) (exchange.Format, error) {
	if f := c.String("format"); f != "" {
		return exchange.ParseFormat(f)
	}
	return exchange.FormatFromPath(path), nil
}

func exportPriceList(c *cli.Context, store *sqlite.Store) error {
	out := c.String("out")
	format, err := fileFormat(c, out)
	if err != nil {
		return err
	}
	entries, err := store.PriceListEntries(c.Context)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := exchange.WritePriceList(&buf, format, entries); err != nil {
		return err
	}
	if err := os.WriteFile(out, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "write %s", out)
	}
	log.WithFields(log.Fields{"file": out, "items": len(entries)}).Info("price list exported")
	return nil
}

func importPriceList(c *cli.Context, store *sqlite.Store) error {
	from := c.String("from")
	format, err := fileFormat(c, from)
	if err != nil {
		return err
	}
	if err := settings.Default().Confirm(c.Bool("yes"), true); err != nil {
		return errors.Wrap(err, "pass --yes to replace the price list")
	}

	f, err := os.Open(from)
	if err != nil {
		return errors.Wrapf(err, "open %s", from)
	}
	defer f.Close()

	entries, err := exchange.ReadPriceList(f, format)
	if err != nil {
		return errors.Wrapf(err, "read %s", from)
	}
	result, err := store.ReplacePriceList(c.Context, entries)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Imported %d items (%d new categories)\n", result.Items, result.CategoriesCreated)
	return nil
}

// =============================================================================
// ESTIMATES
// =============================================================================

func listEstimates(c *cli.Context, store *sqlite.Store) error {
	jobs, err := store.ListJobs(c.Context, c.String("search"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tCUSTOMER\tJOB\tTOTAL")
	for _, j := range jobs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			j.ID, j.EstimateDate.Format(render.DateLayout), j.CustomerName, j.DisplayName(), render.Money(j.TotalAmount))
	}
	return tw.Flush()
}

func renderEstimate(c *cli.Context, store *sqlite.Store) error {
	out := c.String("out")
	format := c.String("format")
	if format == "" {
		format = strings.TrimPrefix(filepath.Ext(out), ".")
	}

	job, err := store.GetJob(c.Context, c.Int64("job"))
	if err != nil {
		return err
	}
	if job == nil {
		return estimate.ErrJobNotFound
	}
	cust, err := store.GetCustomer(c.Context, job.CustomerID)
	if err != nil {
		return err
	}
	if cust == nil {
		return estimate.ErrCustomerRequired
	}

	doc := render.Document{Estimate: estimate.SnapshotOf(*job), Customer: *cust, Date: time.Now()}
	var body []byte
	switch strings.ToLower(format) {
	case "pdf":
		body, err = render.PDF(doc)
	case "xlsx":
		body, err = render.XLSX(doc)
	default:
		return errors.Errorf("unknown format %q (use pdf or xlsx)", format)
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, body, 0o644); err != nil {
		return errors.Wrapf(err, "write %s", out)
	}
	log.WithFields(log.Fields{"job": job.ID, "file": out}).Info("estimate rendered")
	return nil
}
