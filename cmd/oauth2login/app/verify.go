package app

import (
	"strings"

	"github.com/b4fun/oauth2login"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func newVerifyCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "verify TOKEN|-",
		Short: "Verify a bearer token and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := loadParams(cmd, v)
			if err != nil {
				return err
			}

			token := args[0]
			if token == "-" {
				b, err := readInput(cmd, token)
				if err != nil {
					return err
				}
				token = string(b)
			}

			keys, err := oauth2login.NewKeyStore(params)
			if err != nil {
				return err
			}

			claims, err := oauth2login.NewTokenVerifier(keys).Verify(cmd.Context(), strings.TrimSpace(token))
			if err != nil {
				return err
			}

			return printJSON(cmd, claims)
		},
	}
}
