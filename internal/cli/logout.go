// internal/cli/logout.go
package cli

import "github.com/spf13/cobra"

func newLogoutCommand(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := st.app.Sessions()
			if !m.Restore(cmd.Context()) {
				st.app.printf("Not signed in.\n")
				return nil
			}
			if err := m.Logout(cmd.Context()); err != nil {
				return err
			}
			st.app.printf("Signed out.\n")
			return nil
		},
	}
}
