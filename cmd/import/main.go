package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"stockdash/internal/app"
	"stockdash/internal/config"
	"stockdash/internal/excel"
	"stockdash/pkg/logger"
)

const (
	kindCatalog = "catalog"
	kindLedger  = "ledger"
)

type options struct {
	file    string
	kind    string
	dryRun  bool
	timeout time.Duration
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	log := logger.Must(logger.New(cfg.LogLevel))
	defer func() { _ = log.Sync() }()

	if err := run(opts, cfg, log); err != nil {
		log.Fatal("import failed", zap.String("file", opts.file), zap.Error(err))
	}
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.file, "file", "", "path to the CSV or XLSX file")
	flag.StringVar(&opts.kind, "kind", kindCatalog, "catalog (Nome, Custo, Venda, Qtd) or ledger (bookkeeping sheet)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "parse the file and print the rows without importing")
	flag.DurationVar(&opts.timeout, "timeout", 5*time.Minute, "overall import timeout")
	flag.Parse()

	opts.kind = strings.ToLower(strings.TrimSpace(opts.kind))
	if opts.file == "" || (opts.kind != kindCatalog && opts.kind != kindLedger) {
		flag.Usage()
		os.Exit(2)
	}
	return opts
}

func run(opts options, cfg config.Config, log *zap.Logger) error {
	file, err := os.Open(opts.file)
	if err != nil {
		return fmt.Errorf("open %s: %w", opts.file, err)
	}
	defer file.Close()
	name := filepath.Base(opts.file)

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	switch opts.kind {
	case kindCatalog:
		rows, err := excel.ParseCatalog(name, file)
		if err != nil {
			return err
		}
		if opts.dryRun {
			for i, row := range rows {
				fmt.Printf("%d\t%s\t%s\t%s\t%d\n", i+1, row.Name, row.PurchasePrice, row.BasePrice, row.Quantity)
			}
			return nil
		}
		application, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer application.Close()

		result, err := application.Service.ImportCatalog(ctx, rows)
		if err != nil {
			return err
		}
		for _, failure := range result.Failures {
			log.Warn("row not imported", zap.String("detail", failure))
		}
		for _, warning := range result.Warnings {
			log.Warn("row imported without stock", zap.String("detail", warning))
		}
		log.Info("catalog import finished",
			zap.Int("rows", result.TotalRows),
			zap.Int("imported", result.Imported),
			zap.Int("failed", result.Failed),
		)
	case kindLedger:
		rows, err := excel.ParseLedger(name, file)
		if err != nil {
			return err
		}
		if opts.dryRun {
			fmt.Printf("%d ledger rows parsed\n", len(rows))
			return nil
		}
		application, err := app.New(ctx, cfg, log)
		if err != nil {
			return err
		}
		defer application.Close()

		result, err := application.Service.ImportLedger(ctx, rows)
		if err != nil {
			return err
		}
		log.Info("ledger import finished", zap.Int("sent", result.Sent), zap.Int("imported", result.Imported))
	}
	return nil
}
