package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var openCmd = &cobra.Command{
	Use:   "open [識別子]",
	Short: "詳細ページ (識別子がなければストアのトップページ) をブラウザで開きます",
	Args:  cobra.MaximumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := GetGlobalStore()
		if err != nil {
			return err
		}

		var detailItem string
		if len(args) == 1 {
			detailItem = args[0]
		}

		link := s.Catalog().LinkFor(detailItem)
		log.Info().Str("url", link).Msg("ブラウザで開きます")
		return s.Open(cmd.Context(), detailItem)
	},
}
