package app

import (
	"github.com/b4fun/oauth2login"
	"github.com/b4fun/oauth2login/memstore"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type simulatedIdentity struct {
	*oauth2login.IdentityRecord
	RoleNames []string                      `json:"roleNames"`
	Providers []*oauth2login.ProviderRecord `json:"providers"`
}

func newSimulateCmd(v *viper.Viper) *cobra.Command {
	var roles []string

	cmd := &cobra.Command{
		Use:   "simulate USERINFO.json...",
		Short: "Replay user info documents against an in-memory identity store",
		Long: `simulate authenticates each user info document in order against an
empty in-memory store, then prints the resulting identities and their
provider accounts. Use it to check what consecutive logins would change.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params, err := loadParams(cmd, v)
			if err != nil {
				return err
			}

			store := memstore.New(roles...)
			authenticator := oauth2login.NewAuthenticator(
				params,
				nil,
				oauth2login.NewReconciler(store, store, params),
				store,
			)

			for _, name := range args {
				doc, err := readInput(cmd, name)
				if err != nil {
					return err
				}
				if _, err := authenticator.AuthenticateUserInfo(cmd.Context(), doc); err != nil {
					return err
				}
			}

			var rv []simulatedIdentity
			for _, record := range store.Users() {
				providers, err := store.ProvidersByPerson(cmd.Context(), record.Person.ID)
				if err != nil {
					return err
				}

				roleNames := []string{}
				for _, id := range record.Roles {
					if name, ok := store.RoleName(id); ok {
						roleNames = append(roleNames, name)
					}
				}

				rv = append(rv, simulatedIdentity{
					IdentityRecord: record,
					RoleNames:      roleNames,
					Providers:      providers,
				})
			}

			return printJSON(cmd, rv)
		},
	}

	cmd.Flags().StringSliceVar(&roles, "role", nil, "Role names known to the store (repeatable)")

	return cmd
}
