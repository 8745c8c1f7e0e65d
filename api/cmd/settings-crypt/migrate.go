package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/core/domain"
)

func newMigrateCommand() *cobra.Command {
	var (
		entityType string
		dryRun     bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Encrypt registered fields still stored in plaintext",
		Example: "  settings-crypt migrate --dry-run\n" +
			"  settings-crypt migrate --entity-type notification_settings",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, entityType, dryRun, asJSON, func(rt *runtime, ctx context.Context, t string) (*domain.MigrationReport, error) {
				return rt.migrationService().Migrate(ctx, t, dryRun)
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Limit to one entity type (default: all protected types)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")
	return cmd
}

func newRotateCommand() *cobra.Command {
	var (
		entityType string
		dryRun     bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "rotate",
		Short: "Re-encrypt values sealed under a retired key with the primary key",
		Long: "Values sealed under any key listed in SETTINGS_ENCRYPTION_KEY_PREVIOUS are\n" +
			"decrypted and sealed again under SETTINGS_ENCRYPTION_KEY. Plaintext is left\n" +
			"for migrate.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, entityType, dryRun, asJSON, func(rt *runtime, ctx context.Context, t string) (*domain.MigrationReport, error) {
				return rt.migrationService().Rotate(ctx, t, dryRun)
			})
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Limit to one entity type (default: all protected types)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Report what would change without writing")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")
	return cmd
}

func newVerifyCommand() *cobra.Command {
	var (
		entityType string
		strict     bool
		asJSON     bool
	)
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Report encryption coverage of registered fields (read-only)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := openRuntime(ctx, newLogger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			defer rt.Close()

			types, err := entityTypes(rt.registry, entityType)
			if err != nil {
				return err
			}

			protected := true
			reports := make([]*domain.VerifyReport, 0, len(types))
			for _, t := range types {
				report, err := rt.migrationService().Verify(ctx, t)
				if err != nil {
					return err
				}
				// 🛡️ Ciphertext nobody can open is as lost as a leaked secret
				protected = protected && report.FullyProtected && report.Undecryptable() == 0
				reports = append(reports, report)
			}

			if asJSON {
				if err := writeJSON(cmd.OutOrStdout(), reports); err != nil {
					return err
				}
			} else {
				for _, r := range reports {
					printVerifyReport(cmd.OutOrStdout(), r)
				}
			}

			if strict && !protected {
				return fmt.Errorf("encryption coverage incomplete")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&entityType, "entity-type", "", "Limit to one entity type (default: all protected types)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit non-zero unless every row is fully protected and every value decrypts")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print reports as JSON")
	return cmd
}

type batchFunc func(rt *runtime, ctx context.Context, entityType string) (*domain.MigrationReport, error)

// runBatch runs fn for every selected type and fails when any row failed.
func runBatch(cmd *cobra.Command, entityType string, dryRun, asJSON bool, fn batchFunc) error {
	ctx := cmd.Context()
	rt, err := openRuntime(ctx, newLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer rt.Close()

	types, err := entityTypes(rt.registry, entityType)
	if err != nil {
		return err
	}

	failed := false
	reports := make([]*domain.MigrationReport, 0, len(types))
	for _, t := range types {
		report, err := fn(rt, ctx, t)
		if err != nil {
			return err
		}
		failed = failed || report.Failed()
		reports = append(reports, report)
	}

	if asJSON {
		if err := writeJSON(cmd.OutOrStdout(), reports); err != nil {
			return err
		}
	} else {
		for _, r := range reports {
			printMigrationReport(cmd.OutOrStdout(), r)
		}
	}

	if failed {
		return fmt.Errorf("one or more rows failed; see report")
	}
	return nil
}

func printMigrationReport(w io.Writer, r *domain.MigrationReport) {
	verb := "changed"
	if r.DryRun {
		verb = "would change"
	}
	fmt.Fprintf(w, "%s %s (dry-run=%t)\n", r.Mode, r.EntityType, r.DryRun)
	fmt.Fprintf(w, "  scanned: %d  %s: %d  skipped: %d  errors: %d  duration: %s\n",
		r.Total, verb, r.Changed, r.Skipped, len(r.Errors), r.Duration)
	for _, e := range r.Errors {
		fmt.Fprintf(w, "  ❌ %s: %s\n", e.EntityID, e.Error)
	}
}

func printVerifyReport(w io.Writer, r *domain.VerifyReport) {
	fmt.Fprintf(w, "%s: %d rows\n", r.EntityType, r.TotalRows)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "  FIELD\tPOPULATED\tENCRYPTED\tRETIRED KEY\tUNDECRYPTABLE")
	for _, f := range r.Fields {
		fmt.Fprintf(tw, "  %s\t%d\t%d\t%d\t%d\n", f.Field, f.Populated, f.Encrypted, f.RetiredKey, f.Undecryptable)
	}
	tw.Flush()

	fmt.Fprintf(w, "  fully encrypted: %d  partially: %d  unencrypted: %d  no sensitive data: %d\n",
		r.FullyEncrypted, r.PartiallyEncrypted, r.Unencrypted, r.NoSensitiveData)
	if n := r.Undecryptable(); n > 0 {
		fmt.Fprintf(w, "  🚨 %d value(s) cannot be decrypted with the configured keys\n", n)
	}
	if r.FullyProtected {
		fmt.Fprintln(w, "  ✅ fully protected")
	} else {
		fmt.Fprintln(w, "  🚨 NOT fully protected: run `settings-crypt migrate`")
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
