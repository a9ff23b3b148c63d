package app

import (
	"encoding/json"
	"fmt"

	"github.com/b4fun/oauth2login"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	flagIssuer      = "issuer"
	flagAccessToken = "access-token"
)

func newUserInfoCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "userinfo",
		Short: "Fetch the user info document of an access token from the identity provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params, err := loadParams(cmd, v)
			if err != nil {
				return err
			}

			issuer := v.GetString(flagIssuer)
			accessToken := v.GetString(flagAccessToken)
			if accessToken == "" {
				return fmt.Errorf("--%s is required", flagAccessToken)
			}

			src, err := oauth2login.NewProviderUserInfoSource(issuer, params)
			if err != nil {
				return err
			}

			doc, err := src.FetchUserInfo(cmd.Context(), accessToken)
			if err != nil {
				return err
			}

			return printJSON(cmd, json.RawMessage(doc))
		},
	}

	cmd.Flags().String(flagIssuer, "", "OpenID Connect issuer URL")
	cmd.Flags().String(flagAccessToken, "", "Access token (or OAUTH2LOGIN_ACCESS_TOKEN)")
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		panic(err)
	}

	return cmd
}
