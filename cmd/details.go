package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shouni/go-ebook-store/pkg/store"
	"github.com/shouni/go-ebook-store/pkg/types"
)

var detailsCmd = &cobra.Command{
	Use:   "details [識別子...]",
	Short: "識別子を指定して詳細ページを取得し、DRMの状態を判定します",
	Args:  cobra.MinimumNArgs(1),

	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := GetGlobalStore()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), overallTimeout())
		defer cancel()

		results := make([]types.DetailResult, 0, len(args))
		for _, id := range args {
			r := &store.SearchResult{DetailItem: id, Formats: s.Catalog().Formats}
			ok, err := s.GetDetails(ctx, r)
			if err != nil {
				err = fmt.Errorf("詳細ページの処理に失敗しました (識別子: %s): %w", id, err)
			}
			results = append(results, types.DetailResult{Result: r, Classified: ok, Error: err})
		}
		return writeResults(cmd.OutOrStdout(), results)
	},
}
