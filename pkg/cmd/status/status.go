package status

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/openbiotel/biotel-monitor-go/pkg/cmd/common"
)

func NewStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "shows the signed-in state and role",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	common.InitLogger()

	session, err := common.NewLocalSession()
	if err != nil {
		return err
	}
	if !session.IsSignedIn() {
		fmt.Println("Signed out. Run 'btm login' to sign in.")
		return nil
	}
	claims := session.Claims()
	fmt.Println("Signed in.")
	fmt.Printf("  role:    %s\n", session.CurrentRole())
	if sub, ok := claims["sub"].(string); ok {
		fmt.Printf("  subject: %s\n", sub)
	}
	if email, ok := claims["email"].(string); ok {
		fmt.Printf("  email:   %s\n", email)
	}
	return nil
}
