package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/pesio-ai/be-mfg-scans/internal/config"
	"github.com/pesio-ai/be-mfg-scans/internal/database"
	"github.com/pesio-ai/be-mfg-scans/internal/repository"
)

// ruleFile is the YAML layout of an article rule import
type ruleFile struct {
	Rules []*repository.ArticleRule `yaml:"rules"`
}

// loadRuleFile reads and checks every rule in a YAML file
func loadRuleFile(path string) ([]*repository.ArticleRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rule file: %w", err)
	}

	var f ruleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse rule file: %w", err)
	}
	if len(f.Rules) == 0 {
		return nil, fmt.Errorf("rule file %s has no rules", path)
	}

	seen := make(map[string]bool, len(f.Rules))
	for i, rule := range f.Rules {
		if rule.DateScheme == "" {
			rule.DateScheme = repository.DateSchemeNone
		}
		if rule.ExternalCheck == "" {
			rule.ExternalCheck = repository.ExternalCheckNone
		}
		if err := rule.Validate(); err != nil {
			return nil, fmt.Errorf("rule %d (%s/%s): %w", i+1, rule.Workplace, rule.Article, err)
		}
		key := rule.Workplace + "/" + rule.Article
		if seen[key] {
			return nil, fmt.Errorf("rule %d: duplicate rule for %s", i+1, key)
		}
		seen[key] = true
	}
	return f.Rules, nil
}

// findRule picks one rule out of a rule file
func findRule(path, workplace, article string) (*repository.ArticleRule, error) {
	rules, err := loadRuleFile(path)
	if err != nil {
		return nil, err
	}
	for _, rule := range rules {
		if rule.Workplace == workplace && rule.Article == article {
			return rule, nil
		}
	}
	return nil, fmt.Errorf("no rule for article %s at %s in %s", article, workplace, path)
}

func openDB(ctx context.Context, opts *rootOptions) (*database.DB, error) {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return nil, err
	}
	return database.New(ctx, database.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: 2,
	})
}

func newRulesCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage article rules",
	}

	var dryRun bool
	importCmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Insert or update article rules from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rules, err := loadRuleFile(args[0])
			if err != nil {
				return err
			}
			if dryRun {
				fmt.Fprintf(cmd.OutOrStdout(), "%d rules valid\n", len(rules))
				return nil
			}

			ctx := cmd.Context()
			db, err := openDB(ctx, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			repo := repository.NewArticleRuleRepository(db)
			for _, rule := range rules {
				if err := repo.Upsert(ctx, rule); err != nil {
					return fmt.Errorf("failed to import %s/%s: %w", rule.Workplace, rule.Article, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s/%s\n", rule.Workplace, rule.Article)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Invalidate cached rules with POST /api/v1/rules/invalidate or wait for the cache TTL")
			return nil
		},
	}
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "only check the file")

	var workplace string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "Print the article rules of a workplace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			rules, err := repository.NewArticleRuleRepository(db).ListByWorkplace(ctx, workplace)
			if err != nil {
				return err
			}
			printRules(cmd.OutOrStdout(), rules)
			return nil
		},
	}
	listCmd.Flags().StringVar(&workplace, "workplace", "", "workplace")
	_ = listCmd.MarkFlagRequired("workplace")

	cmd.AddCommand(importCmd, listCmd)
	return cmd
}

// printRules writes one line per rule: article, reference code, date scheme,
// external check and packaging size.
func printRules(w io.Writer, rules []*repository.ArticleRule) {
	if len(rules) == 0 {
		fmt.Fprintln(w, "no rules")
		return
	}
	for _, rule := range rules {
		pallet := "-"
		if rule.HasPalletStage() {
			pallet = strconv.Itoa(*rule.ContainersPerPallet)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%s\n",
			rule.Article, rule.ReferenceCode, rule.DateScheme, rule.ExternalCheck,
			rule.UnitsPerContainer, pallet)
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			db, err := openDB(ctx, opts)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := db.Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}
