package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/raulbatres90/challenge-estudiantes/internal/core"
)

var errInvalidFile = errors.New("file has validation errors")

type validateOutput struct {
	File       string                 `json:"file"`
	Offline    bool                   `json:"offline"`
	Valid      bool                   `json:"valid"`
	TotalRows  int                    `json:"total_rows"`
	ValidCount int                    `json:"valid_count"`
	Errors     []core.ValidationError `json:"errors"`
}

func newValidateCmd() *cobra.Command {
	var offline bool

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a student file without importing it",
		Long: "Validate a .csv or .xlsx student file. Names and external ids are checked\n" +
			"against the database unless --offline is set, in which case only\n" +
			"duplicates within the file are detected.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(!offline)
			if err != nil {
				return err
			}

			name, ds, err := readFile(args[0], cfg.Import.MaxFileSize)
			out := validateOutput{File: name, Offline: offline}
			if err != nil {
				if errors.Is(err, os.ErrNotExist) {
					return err
				}
				out.Errors = []core.ValidationError{core.FileError(err)}
				if werr := writeJSON(cmd.OutOrStdout(), out); werr != nil {
					return werr
				}
				return errInvalidFile
			}

			var result core.ValidationResult
			if offline {
				v := core.NewRecordValidator(core.WithReservationPolicy(cfg.Import.ReservationPolicy()))
				result = v.Validate(ds, core.NewSnapshot(nil, nil))
			} else {
				pool, err := connectDB(cmd.Context(), cfg)
				if err != nil {
					return err
				}
				defer pool.Close()

				result, err = newService(pool, cfg).Validate(cmd.Context(), ds)
				if err != nil {
					return err
				}
			}

			out.Errors = core.RejectionErrors(result)
			if out.Errors == nil {
				out.Errors = []core.ValidationError{}
			}
			out.Valid = len(out.Errors) == 0
			out.TotalRows = result.TotalRows
			out.ValidCount = len(result.Accepted)

			if err := writeJSON(cmd.OutOrStdout(), out); err != nil {
				return err
			}
			if !out.Valid {
				return errInvalidFile
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&offline, "offline", false, "Skip the database; check the file on its own")
	return cmd
}
