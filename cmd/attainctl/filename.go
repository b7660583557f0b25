package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/Matias-Artesi/odoo-attain/internal/app"
	"github.com/Matias-Artesi/odoo-attain/internal/ar"
	"github.com/Matias-Artesi/odoo-attain/internal/platform/db"
	"github.com/Matias-Artesi/odoo-attain/report"
)

var filenameCmd = &cobra.Command{
	Use:   "filename <invoice-id>",
	Short: "Print the PDF filename an invoice would download as",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid invoice id %q", args[0])
		}

		cfg, err := app.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		pool, err := db.New(ctx, cfg.PGDSN)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer pool.Close()

		inv, err := ar.NewService(ar.NewRepository(pool)).Get(ctx, id)
		if err != nil {
			return err
		}

		fmt.Println(report.BaseFilename(inv) + ".pdf")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filenameCmd)
}
