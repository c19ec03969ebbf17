package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/taishikato/supavec-api/internal/auth"
)

var (
	apikeyTeamID string
	apikeyUserID string
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Mint a new API key for a team",
	Long: `Mint a new random API key and store it in Redis.

Example:
  supavec apikey create --team-id team-1 --user-id user-1`,
	RunE: runAPIKeyCreate,
}

func init() {
	rootCmd.AddCommand(apikeyCmd)
	apikeyCmd.AddCommand(apikeyCreateCmd)

	apikeyCreateCmd.Flags().StringVar(&apikeyTeamID, "team-id", "", "Team the key belongs to (required)")
	apikeyCreateCmd.Flags().StringVar(&apikeyUserID, "user-id", "", "User the key belongs to")
	_ = apikeyCreateCmd.MarkFlagRequired("team-id")
}

func runAPIKeyCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	cfg := GetConfig()

	keys, err := auth.NewRedisKeyStore(ctx, auth.RedisConfig{
		Addr:      cfg.Redis.Addr,
		Password:  cfg.Redis.Password,
		DB:        cfg.Redis.DB,
		KeyPrefix: cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return err
	}
	defer keys.Close()

	rec, err := keys.Create(ctx, apikeyTeamID, apikeyUserID)
	if err != nil {
		return err
	}

	output, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(output))
	return nil
}
