package logout

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openbiotel/biotel-monitor-go/pkg/cmd/common"
)

func NewLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "clears the local credentials and prints the provider logout URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogout(cmd.Context())
		},
	}
}

func runLogout(ctx context.Context) error {
	common.InitLogger()

	session, err := common.NewSession(ctx)
	if err != nil {
		return err
	}
	// idempotent: clears local state even when already signed out
	logoutURL, err := session.SignOut()
	if err != nil {
		return err
	}
	fmt.Println("Local credentials cleared.")
	fmt.Println("Open this URL to also end the identity provider session:")
	fmt.Println()
	fmt.Println("  " + logoutURL)
	return nil
}
