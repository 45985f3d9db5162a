// internal/cli/health.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"loangenius/internal/common/health"
)

func newHealthCommand(st *rootState) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check whether the partner backends are reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := st.app.Health().Check(cmd.Context())
			for _, s := range statuses {
				mark := "●"
				if !s.Healthy {
					mark = "○"
				}
				st.app.printf("%s %-13s %-9s %4dms  %s\n", mark, s.Name, s.Code, s.Latency.Milliseconds(), s.Message())
			}
			if !health.Healthy(statuses) {
				return fmt.Errorf("one or more backends are unhealthy")
			}
			return nil
		},
	}
}
