package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"mandi-price-api/internal/config"
	"mandi-price-api/internal/logger"
	"mandi-price-api/internal/mockdata"
	"mandi-price-api/internal/models"
	"mandi-price-api/internal/scrapers"
	"mandi-price-api/internal/services"
	"mandi-price-api/pkg/browser"
	"mandi-price-api/pkg/export"
)

func main() {
	_ = godotenv.Load()

	rootCmd := &cobra.Command{
		Use:          "cropprices",
		Short:        "Fetch mandi crop prices from AGMARKNET and e-NAM",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newFetchCmd(),
		newConfigCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type fetchOptions struct {
	state      string
	district   string
	crop       string
	date       string
	source     string
	mockOnly   bool
	noFallback bool
	format     string
	xlsxPath   string
}

func newFetchCmd() *cobra.Command {
	opts := &fetchOptions{}

	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Fetch crop prices for a state",
		Long: `Fetch crop prices for a state, optionally narrowed by district and crop.

Live portals are retried, then the other portal is tried once, then the
sample catalog is used unless --no-mock-fallback is set.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFetch(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.state, "state", "", "state name (required)")
	cmd.Flags().StringVar(&opts.district, "district", "", "district filter")
	cmd.Flags().StringVar(&opts.crop, "crop", "", "crop filter")
	cmd.Flags().StringVar(&opts.date, "date", "", "price date, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&opts.source, "source", "", "primary source: agmarknet or enam (default from config)")
	cmd.Flags().BoolVar(&opts.mockOnly, "mock-only", false, "skip live portals and use sample data")
	cmd.Flags().BoolVar(&opts.noFallback, "no-mock-fallback", false, "do not fall back to sample data")
	cmd.Flags().StringVar(&opts.format, "format", "table", "output format: json or table")
	cmd.Flags().StringVar(&opts.xlsxPath, "xlsx", "", "also write the result to this xlsx file")
	_ = cmd.MarkFlagRequired("state")

	return cmd
}

func runFetch(cmd *cobra.Command, opts *fetchOptions) error {
	if opts.format != "json" && opts.format != "table" {
		return fmt.Errorf("unknown format %q, expected json or table", opts.format)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log.Level)
	log.SetOutput(cmd.ErrOrStderr())

	q := models.PriceQuery{
		State:      opts.state,
		District:   opts.district,
		CropName:   opts.crop,
		DataSource: opts.source,
	}
	if opts.date != "" {
		d, err := time.Parse(models.DateLayout, opts.date)
		if err != nil {
			return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", opts.date)
		}
		q.PriceDate = d
	}
	if cmd.Flags().Changed("mock-only") {
		q.UseMockOnly = &opts.mockOnly
	}
	if opts.noFallback {
		fallback := false
		q.UseMockFallback = &fallback
	}

	var renderer scrapers.PageRenderer
	if cfg.Sources.AgmarknetUseBrowser {
		r := browser.NewRenderer(cfg.Sources.ChromePath, cfg.Fetch.RequestTimeout, log)
		defer r.Close()
		renderer = r
	}

	sources := scrapers.NewSources(cfg.Sources, cfg.Fetch.RequestTimeout, renderer, log)
	svc := services.NewPriceService(cfg.Fetch, mockdata.NewProvider(), log, sources...)

	resp, err := svc.GetCropPrices(cmd.Context(), q)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else if err := printTable(out, resp); err != nil {
		return err
	}

	if opts.xlsxPath != "" && resp.Success {
		if err := writeWorkbook(opts.xlsxPath, resp); err != nil {
			return err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s\n", opts.xlsxPath)
	}

	if !resp.Success {
		return fmt.Errorf("no prices found")
	}
	return nil
}

func printTable(w io.Writer, resp *models.PriceResponse) error {
	fmt.Fprintln(w, resp.Message)
	if resp.Count == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CROP\tMARKET\tDISTRICT\tMIN\tMAX\tMODAL\tDATE\tUNIT")
	for _, rec := range resp.Data {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.2f\t%.2f\t%s\t%s\n",
			rec.CropName, rec.MarketName, rec.District,
			rec.MinPrice, rec.MaxPrice, rec.ModalPrice,
			rec.PriceDate, rec.Unit)
	}
	return tw.Flush()
}

func writeWorkbook(path string, resp *models.PriceResponse) error {
	summaries, err := services.Summarize(resp.Data)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := export.WritePriceWorkbook(f, resp, summaries); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective fetch configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			summary := cfg.Summary()
			keys := make([]string, 0, len(summary))
			for k := range summary {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			out := cmd.OutOrStdout()
			for _, k := range keys {
				fmt.Fprintf(out, "%-26s %v\n", k+":", summary[k])
			}
			fmt.Fprintf(out, "%-26s %s\n", "agmarknet_url:", cfg.Sources.AgmarknetURL)
			fmt.Fprintf(out, "%-26s %s\n", "enam_url:", cfg.Sources.EnamURL)
			fmt.Fprintf(out, "%-26s %t\n", "cache_enabled:", cfg.Cache.Enabled)
			return nil
		},
	}
}
