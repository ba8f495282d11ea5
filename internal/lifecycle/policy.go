package lifecycle

import "strings"

// DefaultBanks is the withdrawal bank whitelist. A bank field matches when
// it contains any entry, ignoring case.
var DefaultBanks = []string{
	"сбер", "sber",
	"тинькофф", "tinkoff", "т-банк", "t-bank",
	"втб", "vtb",
	"альфа", "alfa",
	"райффайзен", "raiffeisen",
	"газпромбанк",
	"озон", "ozon",
}

// Policy holds the business limits applied to submissions.
type Policy struct {
	MinTopUp    int64
	MinWithdraw int64
	// MaxAmount caps a single top-up, withdrawal or task budget. Zero
	// disables the cap.
	MaxAmount int64
	Banks     []string
	// StrictWithdraw rejects withdrawals above the balance instead of
	// clamping the hold at zero.
	StrictWithdraw bool
}

func DefaultPolicy() Policy {
	return Policy{MinTopUp: 100, MinWithdraw: 100, MaxAmount: 1_000_000, Banks: DefaultBanks}
}

func (p Policy) checkMax(field string, amount int64) error {
	if p.MaxAmount > 0 && amount > p.MaxAmount {
		return invalid(field, "maximum is %d", p.MaxAmount)
	}
	return nil
}

func (p Policy) bankAllowed(bank string) bool {
	b := strings.ToLower(strings.TrimSpace(bank))
	if b == "" {
		return false
	}
	for _, known := range p.Banks {
		if strings.Contains(b, strings.ToLower(known)) {
			return true
		}
	}
	return false
}
