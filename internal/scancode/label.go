package scancode

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/pesio-ai/be-mfg-scans/internal/repository"
)

const (
	palletTokenPrefix = "AA"
	palletLabelSuffix = "C:G"
)

// NewPalletLabel builds a pallet batch label in the scanned-label format with
// a random token. A nil source uses crypto/rand.
func NewPalletLabel(rule *repository.ArticleRule, source io.Reader) (string, error) {
	if !rule.HasPalletStage() || rule.UnitsPerContainer <= 0 {
		return "", fmt.Errorf("article %s at %s has no pallet size configured", rule.Article, rule.Workplace)
	}
	if rule.PalletProcessCode == "" {
		return "", fmt.Errorf("article %s at %s has no pallet process code", rule.Article, rule.Workplace)
	}
	if source == nil {
		source = rand.Reader
	}

	buf := make([]byte, 4)
	if _, err := io.ReadFull(source, buf); err != nil {
		return "", fmt.Errorf("failed to generate batch token: %w", err)
	}
	token := palletTokenPrefix + strings.ToUpper(hex.EncodeToString(buf))

	return fmt.Sprintf("A:%s|O:%s|Q:%d|B:%s|%s",
		rule.Article, rule.PalletProcessCode, rule.PalletQuantity(), token, palletLabelSuffix), nil
}
