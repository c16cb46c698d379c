package domain

// TopUpAmount returns how much to pull from a stored card so that a charge
// exceeding the balance by shortfall can settle without leaving the member
// hovering just under the low-balance threshold.
//
// A shortfall of zero means no charge is pending (a proactive top-up), so the
// post top-up balance is balance+amount. Otherwise the charge consumes the whole
// balance and the member is left with amount-shortfall.
func TopUpAmount(balance, threshold, configured, shortfall int64) int64 {
	if shortfall < 0 {
		shortfall = 0
	}
	amount := max(configured, shortfall)
	if balance >= threshold || configured <= 0 {
		return amount
	}

	need := threshold - balance
	if shortfall > 0 {
		need = threshold + shortfall
	}
	if amount >= need {
		return amount
	}
	// smallest multiple of configured that clears the threshold
	return (need + configured - 1) / configured * configured
}
