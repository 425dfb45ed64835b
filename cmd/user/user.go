package user

import (
	"passgate/cmd/user/create"

	"github.com/spf13/cobra"
)

func UserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management",
		Long:  `Create users for the authorization server.`,
	}
	userCmd.AddCommand(create.CreateCmd)
	return userCmd
}
