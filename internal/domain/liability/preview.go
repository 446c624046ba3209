package liability

import "github.com/google/uuid"

// Preview is a what-if simulation of a liability. The liability is not modified.
type Preview struct {
	LiabilityID uuid.UUID        `json:"liability_id"`
	Kind        Kind             `json:"kind"`
	Name        string           `json:"name"`
	Cycles      int              `json:"cycles"`
	Card        *CardCycleResult `json:"card,omitempty"`
	Loan        *LoanCycleResult `json:"loan,omitempty"`
}

// PreviewOf simulates the given number of cycles from the liability's current state
func PreviewOf(l Liability, cycles int) Preview {
	b := l.Info()
	p := Preview{LiabilityID: b.ID, Kind: l.Kind(), Name: b.Name, Cycles: max(cycles, 0)}
	switch v := l.(type) {
	case *Card:
		res := SimulateCard(*v, cycles)
		p.Card = &res
	case *Loan:
		res := SimulateLoan(*v, cycles)
		p.Loan = &res
	}
	return p
}
