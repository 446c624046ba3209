package ledger

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
)

// Account categories. Codes are CATEGORY:TOKEN, for example
// LIABILITY:CARD:EVERYDAY_VISA_1A2B3C4D. Changing this mapping breaks
// continuity with stored entries.
const (
	CategoryCardLiability   = "LIABILITY:CARD"
	CategoryLoanLiability   = "LIABILITY:LOAN"
	CategoryInterestExpense = "EXPENSE:INTEREST"
	CategorySpendingExpense = "EXPENSE:SPENDING"

	AccountCash = "ASSET:CASH"

	unnamedToken = "UNNAMED"
	idPrefixLen  = 8
)

// AccountCode derives a stable account code for an entity from its name and id
func AccountCode(category, name string, id uuid.UUID) string {
	token := NameToken(name)
	if id != uuid.Nil {
		token += "_" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:idPrefixLen])
	}
	return category + ":" + token
}

// NameToken uppercases a name and collapses every run of other characters into one underscore
func NameToken(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.TrimSpace(name) {
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(unicode.ToUpper(r))
			continue
		}
		pendingSep = true
	}
	if b.Len() == 0 {
		return unnamedToken
	}
	return b.String()
}
