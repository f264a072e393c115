package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-mfg-scans/internal/database"
	apperrors "github.com/pesio-ai/be-mfg-scans/internal/errors"
)

// ArticleRuleRepository reads and maintains article scan rules
type ArticleRuleRepository struct {
	db *database.DB
}

// NewArticleRuleRepository creates a new article rule repository
func NewArticleRuleRepository(db *database.DB) *ArticleRuleRepository {
	return &ArticleRuleRepository{db: db}
}

const articleRuleColumns = `
	workplace, article, article_type, reference_code,
	first_range_start, first_range_end, second_range_start, second_range_end,
	unit_code_length, date_scheme, units_per_container, containers_per_pallet,
	allowed_process_codes, pallet_process_code, external_check, external_target,
	updated_at`

// Get retrieves the rule of an article at a workplace
func (r *ArticleRuleRepository) Get(ctx context.Context, workplace, article string) (*ArticleRule, error) {
	query := `SELECT ` + articleRuleColumns + `
		FROM article_rules
		WHERE workplace = $1 AND article = $2
	`

	rule, err := scanArticleRule(r.db.QueryRow(ctx, query, workplace, article))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.NotFound("article rule", workplace+"/"+article)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to get article rule")
	}
	return rule, nil
}

// ListByWorkplace retrieves every rule configured for a workplace
func (r *ArticleRuleRepository) ListByWorkplace(ctx context.Context, workplace string) ([]*ArticleRule, error) {
	query := `SELECT ` + articleRuleColumns + `
		FROM article_rules
		WHERE workplace = $1
		ORDER BY article
	`

	rows, err := r.db.Query(ctx, query, workplace)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list article rules")
	}
	defer rows.Close()

	rules := make([]*ArticleRule, 0)
	for rows.Next() {
		rule, err := scanArticleRule(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to scan article rule")
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to list article rules")
	}
	return rules, nil
}

// Upsert creates or replaces a rule
func (r *ArticleRuleRepository) Upsert(ctx context.Context, rule *ArticleRule) error {
	if err := rule.Validate(); err != nil {
		return apperrors.InvalidInput("article_rule", err.Error())
	}

	var secondStart, secondEnd *int
	if rule.SecondRange != nil {
		secondStart, secondEnd = &rule.SecondRange.Start, &rule.SecondRange.End
	}
	dateScheme := rule.DateScheme
	if dateScheme == "" {
		dateScheme = DateSchemeNone
	}
	externalCheck := rule.ExternalCheck
	if externalCheck == "" {
		externalCheck = ExternalCheckNone
	}
	processCodes := rule.AllowedProcessCodes
	if processCodes == nil {
		processCodes = []string{}
	}

	query := `
		INSERT INTO article_rules (workplace, article, article_type, reference_code,
		                           first_range_start, first_range_end, second_range_start, second_range_end,
		                           unit_code_length, date_scheme, units_per_container, containers_per_pallet,
		                           allowed_process_codes, pallet_process_code, external_check, external_target)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (workplace, article) DO UPDATE SET
			article_type = EXCLUDED.article_type,
			reference_code = EXCLUDED.reference_code,
			first_range_start = EXCLUDED.first_range_start,
			first_range_end = EXCLUDED.first_range_end,
			second_range_start = EXCLUDED.second_range_start,
			second_range_end = EXCLUDED.second_range_end,
			unit_code_length = EXCLUDED.unit_code_length,
			date_scheme = EXCLUDED.date_scheme,
			units_per_container = EXCLUDED.units_per_container,
			containers_per_pallet = EXCLUDED.containers_per_pallet,
			allowed_process_codes = EXCLUDED.allowed_process_codes,
			pallet_process_code = EXCLUDED.pallet_process_code,
			external_check = EXCLUDED.external_check,
			external_target = EXCLUDED.external_target,
			updated_at = NOW()
		RETURNING updated_at
	`

	err := r.db.QueryRow(ctx, query,
		rule.Workplace,
		rule.Article,
		rule.ArticleType,
		rule.ReferenceCode,
		rule.FirstRange.Start,
		rule.FirstRange.End,
		secondStart,
		secondEnd,
		rule.UnitCodeLength,
		string(dateScheme),
		rule.UnitsPerContainer,
		rule.ContainersPerPallet,
		processCodes,
		rule.PalletProcessCode,
		string(externalCheck),
		rule.ExternalTarget,
	).Scan(&rule.UpdatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeInternal, "failed to upsert article rule")
	}
	return nil
}

func scanArticleRule(row pgx.Row) (*ArticleRule, error) {
	rule := &ArticleRule{}
	var (
		secondStart, secondEnd *int
		dateScheme, external   string
	)

	err := row.Scan(
		&rule.Workplace,
		&rule.Article,
		&rule.ArticleType,
		&rule.ReferenceCode,
		&rule.FirstRange.Start,
		&rule.FirstRange.End,
		&secondStart,
		&secondEnd,
		&rule.UnitCodeLength,
		&dateScheme,
		&rule.UnitsPerContainer,
		&rule.ContainersPerPallet,
		&rule.AllowedProcessCodes,
		&rule.PalletProcessCode,
		&external,
		&rule.ExternalTarget,
		&rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.DateScheme = DateScheme(dateScheme)
	rule.ExternalCheck = ExternalCheck(external)
	if secondStart != nil && secondEnd != nil {
		rule.SecondRange = &CodeRange{Start: *secondStart, End: *secondEnd}
	}
	return rule, nil
}
