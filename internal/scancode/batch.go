package scancode

import (
	"slices"
	"strconv"
	"strings"

	"github.com/pesio-ai/be-mfg-scans/internal/repository"
)

const (
	// MinBatchCodeLength filters out truncated reads before splitting
	MinBatchCodeLength = 34
	// PalletTokenLength is the exact length of a pallet batch token
	PalletTokenLength = 10

	batchSeparator  = "|"
	fieldPrefixLen  = 2
	articleTagLen   = 7
	articleDigitLen = 5
)

// BatchCode is a parsed container or pallet batch label
type BatchCode struct {
	Raw         string `json:"raw"`
	Article     string `json:"article"`
	ProcessCode string `json:"process_code"`
	Quantity    int    `json:"quantity"`
	Token       string `json:"token"`
}

// ParseBatchCode splits a pipe-delimited batch label:
//
//	A:12345|O:P1|Q:40|B:AA0F3C9B12|C:G
//
// Field 0 is a 2-char prefix plus a 5-digit article, fields 1-3 are
// 2-char-prefixed process code, quantity and batch token. Trailing fields are
// ignored. The token is upper-cased.
func ParseBatchCode(raw string) (*BatchCode, Reason) {
	if len(raw) < MinBatchCodeLength {
		return nil, MalformedBatch
	}

	fields := strings.Split(raw, batchSeparator)
	if len(fields) < 4 {
		return nil, MalformedBatch
	}

	tag := fields[0]
	if len(tag) != articleTagLen || !allDigits(tag[fieldPrefixLen:]) {
		return nil, MalformedBatch
	}

	process, ok := stripPrefix(fields[1])
	if !ok {
		return nil, MalformedBatch
	}

	qtyField, ok := stripPrefix(fields[2])
	if !ok || !allDigits(qtyField) {
		return nil, MalformedBatch
	}
	qty, err := strconv.Atoi(qtyField)
	if err != nil {
		return nil, MalformedBatch
	}

	token, ok := stripPrefix(fields[3])
	if !ok || !alphanumeric(token) {
		return nil, MalformedBatch
	}

	return &BatchCode{
		Raw:         raw,
		Article:     tag[fieldPrefixLen:],
		ProcessCode: process,
		Quantity:    qty,
		Token:       strings.ToUpper(token),
	}, OK
}

// ValidateContainerBatch checks a box label: same article, exact unit
// quantity and a process code from the allowed set.
func ValidateContainerBatch(b *BatchCode, rule *repository.ArticleRule, expectedQuantity int) Reason {
	if b.Article != rule.Article {
		return WrongArticle
	}
	if b.Quantity != expectedQuantity {
		return WrongQuantity
	}
	if !slices.Contains(rule.AllowedProcessCodes, b.ProcessCode) {
		return WrongProcess
	}
	return OK
}

// ValidatePalletBatch checks a pallet label: same article, exact unit
// quantity, the article's pallet process code and a 10-char token.
func ValidatePalletBatch(b *BatchCode, rule *repository.ArticleRule, expectedQuantity int) Reason {
	if b.Article != rule.Article {
		return WrongArticle
	}
	if b.Quantity != expectedQuantity {
		return WrongQuantity
	}
	if rule.PalletProcessCode == "" || b.ProcessCode != rule.PalletProcessCode {
		return WrongProcess
	}
	if len(b.Token) != PalletTokenLength {
		return MalformedBatch
	}
	return OK
}

func stripPrefix(field string) (string, bool) {
	if len(field) <= fieldPrefixLen {
		return "", false
	}
	return field[fieldPrefixLen:], true
}

func alphanumeric(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return s != ""
}
