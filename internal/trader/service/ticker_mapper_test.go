package service

import "testing"

func TestMapKnownAliases(t *testing.T) {
	mapper := NewTickerMapper()

	tests := []struct {
		name       string
		text       string
		wantTicker string
	}{
		{name: "samsung electronics", text: "삼성전자, 신형 반도체 공장 착공", wantTicker: "005930"},
		{name: "sk hynix", text: "SK하이닉스 실적 발표", wantTicker: "000660"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := mapper.Map(tc.text)
			if got == nil {
				t.Fatal("expected a mapping, got nil")
			}
			if got.Ticker != tc.wantTicker {
				t.Fatalf("ticker=%s want %s", got.Ticker, tc.wantTicker)
			}
			if got.Confidence < 0.9 {
				t.Fatalf("confidence=%g want high-confidence dictionary hit", got.Confidence)
			}
			if got.MappingMethod != "alias_dict" {
				t.Fatalf("method=%s want alias_dict", got.MappingMethod)
			}
		})
	}
}

func TestMapLongestAliasWins(t *testing.T) {
	mapper := NewTickerMapper()

	// "삼성전자" contains the ambiguous prefix "삼성"; the longer alias must
	// win so the mention still maps.
	got := mapper.Map("삼성전자 주가 급등")
	if got == nil || got.Ticker != "005930" {
		t.Fatalf("got=%+v want 005930", got)
	}
}

func TestMapAmbiguousAliasReturnsNil(t *testing.T) {
	mapper := NewTickerMapper()

	if got := mapper.Map("삼성 그룹 개편 발표"); got != nil {
		t.Fatalf("got=%+v want nil for an ambiguous group mention", got)
	}
}

func TestMapNoMatch(t *testing.T) {
	mapper := NewTickerMapper()

	if got := mapper.Map("코스피 지수 보합세"); got != nil {
		t.Fatalf("got=%+v want nil when no alias matches", got)
	}
}
