package main

import (
	"github.com/spf13/cobra"

	"github.com/suPer8Hu/ai-debate/internal/kv"
)

// newRootCmd builds the command tree. A non-nil store replaces the one
// selected by STATE_BACKEND. The caller closes the returned app after
// Execute, whether or not it failed.
func newRootCmd(store kv.Store) (*cobra.Command, *app) {
	a := &app{store: store}
	var f rootFlags

	root := &cobra.Command{
		Use:           "debate",
		Short:         "Ask several AI models the same question and compare their answers",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd.Context(), cmd, f)
		},
	}
	root.PersistentFlags().StringVar(&f.apiURL, "api", "", "backend base URL (overrides DEBATE_API_URL)")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "log HTTP traffic")

	root.AddCommand(
		newSignupCmd(a),
		newLoginCmd(a),
		newLogoutCmd(a),
		newWhoamiCmd(a),
		newNewCmd(a),
		newSendCmd(a),
		newLoadCmd(a),
		newHistoryCmd(a),
		newDailyCmd(a),
		newUsageCmd(a),
		newUpgradeCmd(a),
		newConfirmUpgradeCmd(a),
		newActivityCmd(a),
		newChatCmd(a),
	)
	return root, a
}
