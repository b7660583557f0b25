package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Matias-Artesi/odoo-attain/internal/app"
	"github.com/Matias-Artesi/odoo-attain/internal/ar"
	"github.com/Matias-Artesi/odoo-attain/internal/delivery"
	"github.com/Matias-Artesi/odoo-attain/internal/importer"
	"github.com/Matias-Artesi/odoo-attain/internal/masterdata"
	"github.com/Matias-Artesi/odoo-attain/internal/platform/db"
	"github.com/Matias-Artesi/odoo-attain/internal/sales/orders"
)

var (
	importSimulate        bool
	importValidateInvoice bool
	importBestEffort      bool
	importServiceProduct  string
	importTrackedLines    string
	importSheet           string
	importColumnsFile     string
)

var importCmd = &cobra.Command{
	Use:   "import <spreadsheet.xlsx>",
	Short: "Run a spreadsheet import against the database",
	Long: `Reads a spreadsheet of sales order lines, groups the rows into orders and
creates them, including delivery processing and draft invoices. With --simulate
nothing is persisted and the command reports what a real run would do.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importSimulate, "simulate", false, "validate and report without persisting")
	importCmd.Flags().BoolVar(&importValidateInvoice, "validate-invoice", false, "post generated invoices")
	importCmd.Flags().BoolVar(&importBestEffort, "best-effort", false, "commit valid orders and skip errored ones")
	importCmd.Flags().StringVar(&importServiceProduct, "service-product", "", "fallback product for free-text lines")
	importCmd.Flags().StringVar(&importTrackedLines, "tracked-lines", "", "tracked line policy: skip or error")
	importCmd.Flags().StringVar(&importSheet, "sheet", "", "worksheet name, defaults to the first sheet")
	importCmd.Flags().StringVar(&importColumnsFile, "columns", "", "YAML file overriding column aliases")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	file, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)

	opts := importer.Options{
		Simulate:          importSimulate,
		ValidateInvoice:   importValidateInvoice,
		BestEffort:        importBestEffort,
		ServiceProductRef: cfg.ImportServiceProduct,
		TrackedLines:      importer.TrackedLinePolicy(cfg.ImportTrackedLines),
		Sheet:             cfg.ImportSheet,
	}
	if importServiceProduct != "" {
		opts.ServiceProductRef = importServiceProduct
	}
	if importTrackedLines != "" {
		opts.TrackedLines = importer.TrackedLinePolicy(importTrackedLines)
	}
	if importSheet != "" {
		opts.Sheet = importSheet
	}
	if importColumnsFile != "" {
		data, err := os.ReadFile(importColumnsFile)
		if err != nil {
			return fmt.Errorf("read column map: %w", err)
		}
		opts.Columns, err = importer.ParseColumnMap(data)
		if err != nil {
			return err
		}
	}

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	lookup := masterdata.NewRepository(pool)
	invoiceService := ar.NewService(ar.NewRepository(pool))
	deliveryService := delivery.NewService(delivery.NewRepository(pool), logger)
	orderService := orders.NewService(logger, pool, orders.NewRepository(pool), deliveryService, invoiceService)
	service := importer.NewService(logger, lookup, orderService, nil)

	res, err := service.Run(ctx, file, opts)
	if err != nil {
		return err
	}

	fmt.Println(res.Summary)
	if res.Aborted {
		os.Exit(1)
	}
	return nil
}
