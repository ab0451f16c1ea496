package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/choreday/internal/config"
	"github.com/dukerupert/choreday/internal/generate"
	"github.com/dukerupert/choreday/internal/logging"
	"github.com/dukerupert/choreday/internal/push"
	"github.com/dukerupert/choreday/internal/store"
)

func newGenerateCmd() *cobra.Command {
	var (
		householdID string
		scopeFlag   string
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Create today's tasks from templates once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

			scope := cfg.GenerateScope
			if scopeFlag != "" {
				if scope, err = generate.ParseScope(scopeFlag); err != nil {
					return err
				}
			}

			db, err := openStore(cfg, false)
			if err != nil {
				return err
			}
			defer db.Close()

			var opts []generate.Option
			if cfg.PushEnabled() {
				n := push.NewNotifier(push.NewService(cfg.VAPIDPublicKey, cfg.VAPIDPrivateKey),
					store.NewPushStore(db), store.NewHouseholdStore(db), logger.With("component", "push"))
				opts = append(opts, generate.WithNotifier(n))
			}
			gen := generate.New(store.NewTemplateStore(db), store.NewTaskStore(db),
				logger.With("component", "generate"), opts...)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")

			if householdID != "" {
				res, err := gen.GenerateForHousehold(cmd.Context(), householdID)
				if err != nil {
					return err
				}
				return enc.Encode(res)
			}

			batch, err := gen.GenerateAll(cmd.Context(), scope)
			if err != nil {
				return err
			}
			if err := enc.Encode(map[string]any{
				"dateKey":    batch.DateKey,
				"households": batch.Households,
				"results":    batch.Results,
				"failed":     batch.Failed,
			}); err != nil {
				return err
			}
			if batch.Err != nil {
				return fmt.Errorf("%d of %d households failed: %w", len(batch.Failed), batch.Households, batch.Err)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&householdID, "household", "", "generate for a single household id")
	cmd.Flags().StringVar(&scopeFlag, "scope", "", "household scope for a batch run: discover or enumerate")
	return cmd
}
