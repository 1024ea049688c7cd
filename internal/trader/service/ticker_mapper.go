package service

import (
	"sort"
	"strings"
)

// MappingResult is a resolved news-to-ticker mapping with its confidence.
type MappingResult struct {
	Ticker        string
	CompanyName   string
	Confidence    float64
	MappingMethod string
}

type tickerAlias struct {
	ticker      string
	companyName string
	confidence  float64
}

// TickerMapper resolves company aliases in news text to exchange tickers.
type TickerMapper struct {
	aliases map[string]tickerAlias
	// keys sorted longest-first so a short alias cannot preempt a longer
	// one it is a prefix of.
	orderedKeys []string
}

// NewTickerMapper creates a mapper with the baseline KRX alias dictionary.
func NewTickerMapper() *TickerMapper {
	return NewTickerMapperWithAliases(map[string]tickerAlias{
		"삼성전자":   {ticker: "005930", companyName: "삼성전자", confidence: 0.98},
		"SK하이닉스": {ticker: "000660", companyName: "SK하이닉스", confidence: 0.98},
		// Ambiguous group prefix; never maps on its own.
		"삼성": {ticker: "", companyName: "AMBIGUOUS", confidence: 0.20},
	})
}

func NewTickerMapperWithAliases(aliases map[string]tickerAlias) *TickerMapper {
	keys := make([]string, 0, len(aliases))
	for key := range aliases {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return &TickerMapper{aliases: aliases, orderedKeys: keys}
}

// Map returns the first (longest-alias) match in text, or nil when no
// unambiguous mapping exists.
func (m *TickerMapper) Map(text string) *MappingResult {
	for _, key := range m.orderedKeys {
		if !strings.Contains(text, key) {
			continue
		}
		alias := m.aliases[key]
		if alias.ticker == "" {
			return nil
		}
		return &MappingResult{
			Ticker:        alias.ticker,
			CompanyName:   alias.companyName,
			Confidence:    alias.confidence,
			MappingMethod: "alias_dict",
		}
	}
	return nil
}
