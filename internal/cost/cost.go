// Package cost estimates what embedding a set of documents will cost.
package cost

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// FallbackEncoding is used for models tiktoken does not know
const FallbackEncoding = "cl100k_base"

var loaderOnce sync.Once

// encodingFor returns the tokenizer for model, using the bundled BPE
// ranks so no download is needed.
func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	if enc, err := tiktoken.EncodingForModel(model); err == nil {
		return enc, nil
	}
	enc, err := tiktoken.GetEncoding(FallbackEncoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", FallbackEncoding, err)
	}
	return enc, nil
}

// CountTokens counts the tokens of the concatenated texts
func CountTokens(model string, texts []string) (int, error) {
	enc, err := encodingFor(model)
	if err != nil {
		return 0, err
	}
	return len(enc.Encode(strings.Join(texts, ""), nil, nil)), nil
}

// Estimate returns the price in USD of tokens at pricePer1K per 1000 tokens
func Estimate(tokens int, pricePer1K float64) float64 {
	return float64(tokens) / 1000 * pricePer1K
}

// Format renders a cost the way the confirmation prompt shows it
func Format(usd float64) string {
	return fmt.Sprintf("$%.5f", usd)
}
