package cli

import (
	"errors"
	"fmt"

	"github.com/shinyyama/rental-backend/internal/auth"
	"github.com/shinyyama/rental-backend/internal/config"
	"github.com/shinyyama/rental-backend/internal/model"
	"github.com/spf13/cobra"
)

var tokenRole string

var tokenCmd = &cobra.Command{
	Use:   "token <user-id>",
	Short: "Issue a bearer token for local testing",
	Long: `Issue a signed JWT for the given user id using JWT_SECRET.

Only available when AUTH_PROVIDER=jwt.

Examples:
  rentctl token u-tenant-1
  rentctl token u-owner-1 --role owner`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenRole, "role", "r", string(model.RoleTenant), "role claim (tenant, owner, admin)")
}

func runToken(cmd *cobra.Command, args []string) error {
	if cfg.AuthProvider != config.AuthJWT {
		return errors.New("tokens can only be issued with AUTH_PROVIDER=jwt")
	}
	tok, err := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTTTL).Issue(args[0], model.Role(tokenRole))
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
