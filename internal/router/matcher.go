package router

import (
	"strings"

	"github.com/quillbooks/autocode/internal/model"
)

// ruleMatcher evaluates transactions against a tenant's learned rules.
// Rules arrive from storage ordered longest-signature-first, so the
// most specific substring match wins.
type ruleMatcher struct {
	rules []model.Rule
}

func newRuleMatcher(rules []model.Rule) *ruleMatcher {
	return &ruleMatcher{rules: rules}
}

// match returns the best rule for a transaction, preferring an exact
// signature match over a substring match against the counterparty and
// description. Returns nil when nothing matches.
func (m *ruleMatcher) match(item model.TransactionInput) *model.Rule {
	signature := item.Signature()
	if signature == "" {
		return nil
	}

	for i := range m.rules {
		if m.rules[i].Signature == signature {
			return &m.rules[i]
		}
	}

	searchText := signature
	if desc := model.NormalizeSignature(item.Description); desc != "" && desc != signature {
		searchText += " " + desc
	}

	for i := range m.rules {
		if strings.Contains(searchText, m.rules[i].Signature) {
			return &m.rules[i]
		}
	}

	return nil
}

// isExact reports whether the rule matched the item's full signature
// rather than a substring of it.
func isExact(rule *model.Rule, item model.TransactionInput) bool {
	return rule != nil && rule.Signature == item.Signature()
}
