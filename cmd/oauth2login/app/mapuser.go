package app

import (
	"github.com/b4fun/oauth2login"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newMapCmd(v *viper.Viper) *cobra.Command {
	var serviceAccount bool

	cmd := &cobra.Command{
		Use:   "map USERINFO.json|-",
		Short: "Print the identity fields mapped from a user info document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := loadParams(cmd, v)
			if err != nil {
				return err
			}

			doc, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			userInfo, err := oauth2login.NewUserInfo(doc, params.Mapping, oauth2login.WithUserInfoLogger(params.Logger))
			if err != nil {
				return err
			}
			if serviceAccount {
				userInfo = userInfo.ForServiceAccount()
			}

			snapshot, err := userInfo.Snapshot()
			if err != nil {
				return err
			}

			return printJSON(cmd, snapshot)
		},
	}

	cmd.Flags().BoolVar(&serviceAccount, "service-account", false, "Map the username as a service account")

	return cmd
}
