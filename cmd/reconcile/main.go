// Command reconcile runs the reconciliation engine over a JSON batch file.
//
//	reconcile --input batch.json [--output snapshot.json] [--csv mismatches.csv] [--xlsx report.xlsx] [--prior scores.json]
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"

	"gstrecon/internal/config"
	"gstrecon/internal/domain"
	"gstrecon/internal/export"
	"gstrecon/internal/logger"
	"gstrecon/internal/reconcile"
)

type batchFile struct {
	Label   string             `json:"label"`
	Records []domain.RawRecord `json:"records"`
}

type options struct {
	input  string
	output string
	csv    string
	xlsx   string
	prior  string
	label  string
}

func main() {
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "reconcile:", err)
		os.Exit(1)
	}
}

func parseFlags(args []string) (*options, error) {
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	opts := &options{}
	fs.StringVarP(&opts.input, "input", "i", "", "JSON batch file ({\"records\": [...]}); - reads stdin")
	fs.StringVarP(&opts.output, "output", "o", "-", "snapshot JSON destination; - writes stdout")
	fs.StringVar(&opts.csv, "csv", "", "write the mismatch report as CSV")
	fs.StringVar(&opts.xlsx, "xlsx", "", "write the summary, mismatch and vendor sheets as XLSX")
	fs.StringVar(&opts.prior, "prior", "", "JSON object of GSTIN to previous vendor risk score")
	fs.StringVar(&opts.label, "label", "", "run label used in reports (defaults to the batch label)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.input == "" {
		return nil, fmt.Errorf("--input is required")
	}
	return opts, nil
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logger.NewWithOutput(cfg.Log, os.Stderr)

	engineCfg, err := cfg.Recon.Engine()
	if err != nil {
		return err
	}

	var batch batchFile
	if err := readJSON(opts.input, &batch); err != nil {
		return fmt.Errorf("reading batch: %w", err)
	}
	var prior map[string]int
	if opts.prior != "" {
		if err := readJSON(opts.prior, &prior); err != nil {
			return fmt.Errorf("reading prior scores: %w", err)
		}
	}
	label := opts.label
	if label == "" {
		label = batch.Label
	}

	snap, err := reconcile.NewEngine(engineCfg).Run(ctx, batch.Records, prior)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"records":    len(batch.Records),
		"groups":     len(snap.Groups),
		"mismatches": len(snap.Mismatches),
		"issues":     len(snap.Issues),
	}).Info("reconciliation complete")

	if err := writeTo(opts.output, stdout, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}

	if opts.csv != "" {
		if err := writeTo(opts.csv, stdout, func(w io.Writer) error {
			return export.WriteCSV(w, snap.Mismatches)
		}); err != nil {
			return fmt.Errorf("writing csv: %w", err)
		}
	}
	if opts.xlsx != "" {
		if err := writeTo(opts.xlsx, stdout, func(w io.Writer) error {
			return export.WriteXLSX(w, &export.Report{
				Label:      label,
				Stats:      snap.Stats,
				Mismatches: snap.Mismatches,
				Vendors:    snap.Vendors,
			})
		}); err != nil {
			return fmt.Errorf("writing xlsx: %w", err)
		}
	}
	return nil
}

func readJSON(path string, v any) error {
	var r io.Reader = os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	return json.NewDecoder(r).Decode(v)
}

func writeTo(path string, stdout io.Writer, write func(io.Writer) error) error {
	if path == "-" {
		return write(stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
