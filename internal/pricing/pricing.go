package pricing

import (
	"github.com/talendro/talendro-api/internal/models"
)

// Discount winner labels reported back to the frontend so it can show
// which reduction applied.
const (
	WinnerNone          = ""
	WinnerUpgradeCredit = "upgrade_credit"
	WinnerPromoCode     = "promo_code"
)

// Quote is the resolved price for a checkout attempt
type Quote struct {
	BasePriceCents     int64  `json:"basePriceCents"`
	UpgradeCreditCents int64  `json:"upgradeCreditCents"`
	PromoDiscountCents int64  `json:"promoDiscountCents"`
	FinalPriceCents    int64  `json:"finalPriceCents"`
	AppliedDiscount    string `json:"appliedDiscount,omitempty"`
}

// Input carries everything the resolver needs. PriorSessionType is the
// type of a previously purchased session eligible for upgrade credit, or
// empty when the buyer has none.
type Input struct {
	SessionType      models.SessionType
	PriorSessionType models.SessionType
	DiscountPercent  int
}

// Resolve computes the final checkout price. Upgrade credit and a promo
// code never stack: the larger single reduction wins, and on a tie the
// upgrade credit is preferred because it burns the credit the buyer
// already paid for. The result never goes below zero.
func Resolve(in Input) Quote {
	base := in.SessionType.BasePriceCents()

	credit := upgradeCreditCents(in.SessionType, in.PriorSessionType)

	var promo int64
	if in.DiscountPercent > 0 {
		promo = base * int64(in.DiscountPercent) / 100
	}

	q := Quote{
		BasePriceCents:     base,
		UpgradeCreditCents: credit,
		PromoDiscountCents: promo,
	}

	var reduction int64
	switch {
	case credit == 0 && promo == 0:
		q.AppliedDiscount = WinnerNone
	case credit >= promo:
		reduction = credit
		q.AppliedDiscount = WinnerUpgradeCredit
	default:
		reduction = promo
		q.AppliedDiscount = WinnerPromoCode
	}

	final := base - reduction
	if final < 0 {
		final = 0
	}
	q.FinalPriceCents = final

	return q
}

// upgradeCreditCents returns the prior purchase's base price when the
// prior session sits strictly lower on the tier ladder than the target.
// The Pro subscription sits outside the ladder and never earns or
// receives credit.
func upgradeCreditCents(target, prior models.SessionType) int64 {
	if prior == "" || !prior.IsValid() {
		return 0
	}
	if target == models.SessionTypePro || prior == models.SessionTypePro {
		return 0
	}
	if prior.TierRank() < 0 || target.TierRank() < 0 {
		return 0
	}
	if prior.TierRank() >= target.TierRank() {
		return 0
	}
	return prior.BasePriceCents()
}
