package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-mfg-scans/internal/repository"
	"github.com/pesio-ai/be-mfg-scans/internal/scancode"
)

func newLabelCmd(opts *rootOptions) *cobra.Command {
	var (
		rulesFile string
		workplace string
		article   string
		count     int
	)

	cmd := &cobra.Command{
		Use:   "label",
		Short: "Print fresh pallet batch labels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}

			var rule *repository.ArticleRule
			if rulesFile != "" {
				r, err := findRule(rulesFile, workplace, article)
				if err != nil {
					return err
				}
				rule = r
			} else {
				ctx := cmd.Context()
				db, err := openDB(ctx, opts)
				if err != nil {
					return err
				}
				defer db.Close()

				r, err := repository.NewArticleRuleRepository(db).Get(ctx, workplace, article)
				if err != nil {
					return err
				}
				rule = r
			}

			for i := 0; i < count; i++ {
				label, err := scancode.NewPalletLabel(rule, nil)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), label)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&rulesFile, "rules", "", "rule file (default: read the rule from the database)")
	cmd.Flags().StringVar(&workplace, "workplace", "", "workplace")
	cmd.Flags().StringVar(&article, "article", "", "article")
	cmd.Flags().IntVar(&count, "count", 1, "number of labels")
	_ = cmd.MarkFlagRequired("workplace")
	_ = cmd.MarkFlagRequired("article")
	return cmd
}
