package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/raulbatres90/challenge-estudiantes/internal/core"
)

func newImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Validate a student file and insert it when every row is valid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}

			pool, err := connectDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			service := newService(pool, cfg)

			name, ds, err := readFile(args[0], cfg.Import.MaxFileSize)
			var res core.ImportResult
			if errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err != nil {
				res = service.RejectFile(cmd.Context(), name, err)
			} else {
				res, err = service.Import(cmd.Context(), name, ds)
				if err != nil {
					return err
				}
			}

			if err := writeJSON(cmd.OutOrStdout(), res); err != nil {
				return err
			}
			switch {
			case res.Phase == core.PhaseRejected:
				return errInvalidFile
			case len(res.Insert.Failures) > 0:
				return fmt.Errorf("%d of %d students could not be inserted",
					len(res.Insert.Failures), res.ValidCount)
			}
			return nil
		},
	}
}
