package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pesio-ai/be-mfg-scans/internal/config"
	"github.com/pesio-ai/be-mfg-scans/internal/repository"
	"github.com/pesio-ai/be-mfg-scans/internal/scancode"
)

type validateOptions struct {
	rulesFile string
	workplace string
	article   string
	kind      string
	at        string
	timeZone  string
}

func newValidateCmd(opts *rootOptions) *cobra.Command {
	v := &validateOptions{}

	cmd := &cobra.Command{
		Use:   "validate CODE",
		Short: "Check a code against a rule file without touching the database",
		Long: `Runs the offline part of a scan: length, reference ranges and date
freshness for units; parsing, article, quantity and process code for
container and pallet labels. External checks and duplicate detection
need the running service.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rule, err := findRule(v.rulesFile, v.workplace, v.article)
			if err != nil {
				return err
			}
			now, err := v.clock(opts)
			if err != nil {
				return err
			}

			reason := validateCode(args[0], v.kind, rule, now)
			fmt.Fprintln(cmd.OutOrStdout(), reason)
			if !reason.Accepted() {
				return fmt.Errorf("code rejected: %s", reason)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&v.rulesFile, "rules", "rules.yaml", "rule file")
	cmd.Flags().StringVar(&v.workplace, "workplace", "", "workplace")
	cmd.Flags().StringVar(&v.article, "article", "", "article")
	cmd.Flags().StringVar(&v.kind, "kind", "unit", "unit, container or pallet")
	cmd.Flags().StringVar(&v.at, "at", "", "evaluate at this RFC3339 time instead of now")
	cmd.Flags().StringVar(&v.timeZone, "tz", "", "plant time zone (default from config)")
	_ = cmd.MarkFlagRequired("workplace")
	_ = cmd.MarkFlagRequired("article")
	return cmd
}

func (v *validateOptions) clock(opts *rootOptions) (time.Time, error) {
	tz := v.timeZone
	if tz == "" {
		cfg, err := config.Load(opts.configFile)
		if err != nil {
			return time.Time{}, err
		}
		tz = cfg.Plant.TimeZone
	}
	loc, err := config.PlantConfig{TimeZone: tz}.Location()
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time zone %q: %w", tz, err)
	}

	if v.at == "" {
		return time.Now().In(loc), nil
	}
	at, err := time.Parse(time.RFC3339, v.at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at: %w", err)
	}
	return at.In(loc), nil
}

func validateCode(code, kind string, rule *repository.ArticleRule, now time.Time) scancode.Reason {
	switch kind {
	case "unit":
		return scancode.ValidateUnitCode(code, rule, now)
	case "container":
		if rule.UnitsPerContainer <= 0 {
			return scancode.SizeMissing
		}
		b, reason := scancode.ParseBatchCode(code)
		if !reason.Accepted() {
			return reason
		}
		return scancode.ValidateContainerBatch(b, rule, rule.UnitsPerContainer)
	case "pallet":
		if rule.UnitsPerContainer <= 0 || !rule.HasPalletStage() {
			return scancode.SizeMissing
		}
		b, reason := scancode.ParseBatchCode(code)
		if !reason.Accepted() {
			return reason
		}
		return scancode.ValidatePalletBatch(b, rule, rule.PalletQuantity())
	default:
		return scancode.InvalidRequest
	}
}
