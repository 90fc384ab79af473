package service

import (
	"tournament_market/internal/domain"
)

// PrizeBreakdown is the full payout plan for a tournament.
type PrizeBreakdown struct {
	Pool      int64            `json:"pool"`
	Positions map[string]int64 `json:"positions"`
	HostShare int64            `json:"host_share"`
	Manual    bool             `json:"manual"`
}

// PrizeAmount computes the prize for one position. It reads only the tournament, so two calls on the
// same state always agree.
//
// Percentage mode takes the share of the collected pool (what is left plus what has already been paid),
// which does not move while payouts happen. Manual mode returns the fixed amount.
func PrizeAmount(t *domain.Tournament, position string) (int64, error) {
	if t.IsManual() {
		amount, ok := t.ManualPrizePool[position]
		if !ok {
			return 0, domain.Errorf(domain.KindValidation, "position %q has no prize", position)
		}
		return amount, nil
	}
	pct, ok := t.PrizeDistribution[position]
	if !ok {
		return 0, domain.Errorf(domain.KindValidation, "position %q has no prize", position)
	}
	return t.CollectedPool() * int64(pct) / 100, nil
}

// HostShare is the host's commission: the collected pool minus every position's floor amount.
// Manual tournaments have none.
func HostShare(t *domain.Tournament) int64 {
	if t.IsManual() {
		return 0
	}
	pool := t.CollectedPool()
	share := pool
	for _, pct := range t.PrizeDistribution {
		share -= pool * int64(pct) / 100
	}
	if share < 0 {
		return 0
	}
	return share
}

// Breakdown returns the payout plan without touching anything.
func Breakdown(t *domain.Tournament) PrizeBreakdown {
	b := PrizeBreakdown{
		Positions: make(map[string]int64),
		Manual:    t.IsManual(),
		HostShare: HostShare(t),
	}
	if t.IsManual() {
		for pos, amount := range t.ManualPrizePool {
			b.Positions[pos] = amount
			b.Pool += amount
		}
		return b
	}
	b.Pool = t.CollectedPool()
	for _, pos := range t.Positions() {
		amount, _ := PrizeAmount(t, pos)
		b.Positions[pos] = amount
	}
	return b
}

// validatePrizes checks the prize configuration chosen at creation.
func validatePrizes(entryFee int64, distribution map[string]int, manual map[string]int64) error {
	if entryFee > 0 {
		if len(manual) > 0 {
			return domain.Errorf(domain.KindValidation, "manual prize pool is only allowed for free tournaments")
		}
		if len(distribution) == 0 {
			return domain.Errorf(domain.KindValidation, "prize distribution is required")
		}
		sum := 0
		for pos, pct := range distribution {
			if pos == "" {
				return domain.Errorf(domain.KindValidation, "prize position must not be empty")
			}
			if pct <= 0 || pct > 100 {
				return domain.Errorf(domain.KindValidation, "percentage for %q must be between 1 and 100", pos)
			}
			sum += pct
		}
		if sum > 100 {
			return domain.Errorf(domain.KindValidation, "prize distribution sums to %d%%, more than 100%%", sum)
		}
		return nil
	}

	if len(distribution) > 0 {
		return domain.Errorf(domain.KindValidation, "free tournaments use a manual prize pool")
	}
	for pos, amount := range manual {
		if pos == "" {
			return domain.Errorf(domain.KindValidation, "prize position must not be empty")
		}
		if amount <= 0 {
			return domain.Errorf(domain.KindValidation, "prize for %q must be positive", pos)
		}
	}
	return nil
}
