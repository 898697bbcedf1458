package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	app "github.com/mohammadpnp/member-provisioning/internal/application/member"
	domain "github.com/mohammadpnp/member-provisioning/internal/domain/member"
	"github.com/spf13/cobra"
)

type optionFlags struct {
	createNew        bool
	updateExisting   bool
	continueOnErrors bool
	autoFix          bool
	skipOnError      bool
	chunkSize        int
	forceBatching    bool
	fields           []string
}

func bindOptionFlags(cmd *cobra.Command) *optionFlags {
	defaults := domain.DefaultUpsertOptions()
	o := &optionFlags{}
	f := cmd.Flags()
	f.BoolVar(&o.createNew, "create-new", defaults.CreateNew, "Create members that do not exist")
	f.BoolVar(&o.updateExisting, "update-existing", defaults.UpdateExisting, "Update members that already exist")
	f.BoolVar(&o.continueOnErrors, "continue-on-validation-error", defaults.ContinueOnValidationError, "Write valid rows when other rows fail validation")
	f.BoolVar(&o.autoFix, "auto-fix-credentials", defaults.AutoFixCredentials, "Generate credentials for rows with missing or invalid ones")
	f.BoolVar(&o.skipOnError, "skip-on-error", defaults.SkipOnError, "Keep going when a row fails to write")
	f.IntVar(&o.chunkSize, "chunk-size", 0, "Override the planned chunk size")
	f.BoolVar(&o.forceBatching, "force-batching", false, "Split into chunks even for small files")
	f.StringSliceVar(&o.fields, "fields", nil, "Fields an update may overwrite (default: all profile fields)")
	return o
}

func (o *optionFlags) options() (domain.UpsertOptions, error) {
	opts := domain.UpsertOptions{
		CreateNew:                 o.createNew,
		UpdateExisting:            o.updateExisting,
		ContinueOnValidationError: o.continueOnErrors,
		AutoFixCredentials:        o.autoFix,
		SkipOnError:               o.skipOnError,
		ChunkSize:                 o.chunkSize,
		ForceBatching:             o.forceBatching,
	}
	for _, raw := range o.fields {
		field, ok := domain.ParseField(strings.TrimSpace(raw))
		if !ok {
			return opts, fmt.Errorf("unknown field %q", raw)
		}
		opts.UpdatableFields = append(opts.UpdatableFields, field)
	}
	return opts, nil
}

func readImportFile(path string) (app.ImportFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return app.ImportFile{}, fmt.Errorf("read import file: %w", err)
	}
	return app.ImportFile{Name: filepath.Base(path), Data: data}, nil
}

func newPreviewCmd(flags *globalFlags) *cobra.Command {
	var opts *optionFlags
	cmd := &cobra.Command{
		Use:   "preview <file>",
		Short: "Dry-run an import file and print the planned actions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upsert, err := opts.options()
			if err != nil {
				return err
			}
			file, err := readImportFile(args[0])
			if err != nil {
				return err
			}
			engine, closeFn, err := openEngine(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := engine.Preview(cmd.Context(), flags.importContext(), file, upsert)
			if err != nil {
				return err
			}
			if err := writeJSON(cmd.OutOrStdout(), result); err != nil {
				return err
			}
			if len(result.ParseErrors) > 0 {
				return fmt.Errorf("import file rejected: %s", strings.Join(result.ParseErrors, "; "))
			}
			return nil
		},
	}
	opts = bindOptionFlags(cmd)
	return cmd
}

func newExecuteCmd(flags *globalFlags) *cobra.Command {
	var (
		opts    *optionFlags
		batched bool
	)
	cmd := &cobra.Command{
		Use:   "execute <file>",
		Short: "Apply an import file to the directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upsert, err := opts.options()
			if err != nil {
				return err
			}
			file, err := readImportFile(args[0])
			if err != nil {
				return err
			}
			engine, closeFn, err := openEngine(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeFn()

			var result any
			if batched {
				result, err = engine.ExecuteBatched(cmd.Context(), flags.importContext(), file, upsert)
			} else {
				result, err = engine.Execute(cmd.Context(), flags.importContext(), file, upsert)
			}
			if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
				return werr
			}
			return err
		},
	}
	opts = bindOptionFlags(cmd)
	cmd.Flags().BoolVar(&batched, "batched", false, "Run through the batch planner and report per-batch progress")
	return cmd
}

// retryInput is the JSON accepted by retry --fixes: the recoverable errors of a prior run and
// the fixes to apply.
type retryInput struct {
	Errors []*domain.RecoverableError `json:"errors"`
	Fixes  []app.Fix                  `json:"fixes"`
}

func newRetryCmd(flags *globalFlags) *cobra.Command {
	var (
		opts      *optionFlags
		fixesPath string
		suggest   bool
	)
	cmd := &cobra.Command{
		Use:   "retry <file>",
		Short: "Re-run failed rows of a previous execution with fixes applied",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(fixesPath)
			if err != nil {
				return fmt.Errorf("read fixes: %w", err)
			}
			var in retryInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return fmt.Errorf("decode fixes: %w", err)
			}
			if suggest {
				fixes := app.BulkApplyCommonFixes(in.Errors)
				if fixes == nil {
					fixes = []app.Fix{}
				}
				return writeJSON(cmd.OutOrStdout(), fixes)
			}

			upsert, err := opts.options()
			if err != nil {
				return err
			}
			file, err := readImportFile(args[0])
			if err != nil {
				return err
			}
			engine, closeFn, err := openEngine(cmd.Context(), flags)
			if err != nil {
				return err
			}
			defer closeFn()

			result, err := engine.RetryFailedRows(cmd.Context(), flags.importContext(), file, in.Errors, in.Fixes, upsert)
			if werr := writeJSON(cmd.OutOrStdout(), result); werr != nil {
				return werr
			}
			return err
		},
	}
	opts = bindOptionFlags(cmd)
	cmd.Flags().StringVar(&fixesPath, "fixes", "", "JSON file with errors and fixes (required)")
	cmd.Flags().BoolVar(&suggest, "suggest", false, "Print suggested fixes for the errors instead of retrying")
	_ = cmd.MarkFlagRequired("fixes")
	return cmd
}
