package compute

// EffectiveExternalAvailability derives the availability to assume for an
// external dependency. Published SLAs are treated with pessimism: the claimed
// unavailability is multiplied by k, so k = 11 turns a claimed 99.99% into
// 99.89%. When both an observation and a published SLA exist the lower of the
// two wins; when neither exists, fallback applies.
func EffectiveExternalAvailability(observed, published *float64, k, fallback float64) float64 {
	var adjusted *float64
	if published != nil {
		v := 1 - (1-*published)*k
		if v < 0 {
			v = 0
		}
		adjusted = &v
	}
	switch {
	case observed != nil && adjusted != nil:
		if *observed < *adjusted {
			return *observed
		}
		return *adjusted
	case observed != nil:
		return *observed
	case adjusted != nil:
		return *adjusted
	default:
		return fallback
	}
}
