package billing

// SubscriptionTier represents the platform subscription level. Values mirror
// database.SubscriptionTier so webhook handlers can map between them directly.
type SubscriptionTier string

const (
	TierFree         SubscriptionTier = "free"
	TierProfessional SubscriptionTier = "professional"
	TierInstitution  SubscriptionTier = "institution"
)

// TierLimits defines the limits for each subscription tier
type TierLimits struct {
	MaxStructures            int
	MaxInvestorsPerStructure int
	MaxNestingLevels         int
	ESignEnabled             bool
	PrioritySupport          bool
}

// GetTierLimits returns the limits for a given tier
func GetTierLimits(tier SubscriptionTier) TierLimits {
	switch tier {
	case TierFree:
		return TierLimits{
			MaxStructures:            1,
			MaxInvestorsPerStructure: 10,
			MaxNestingLevels:         1,
		}
	case TierProfessional:
		return TierLimits{
			MaxStructures:            10,
			MaxInvestorsPerStructure: 100,
			MaxNestingLevels:         3,
			ESignEnabled:             true,
		}
	case TierInstitution:
		return TierLimits{
			MaxStructures:            -1, // Unlimited
			MaxInvestorsPerStructure: -1, // Unlimited
			MaxNestingLevels:         5,
			ESignEnabled:             true,
			PrioritySupport:          true,
		}
	default:
		return GetTierLimits(TierFree)
	}
}

// GetMonthlyFee returns the monthly subscription fee for a tier
func GetMonthlyFee(tier SubscriptionTier) float64 {
	switch tier {
	case TierFree:
		return 0
	case TierProfessional:
		return 199.0
	case TierInstitution:
		return 999.0
	default:
		return 0
	}
}

// ValidTier reports whether t is a known subscription tier
func ValidTier(t SubscriptionTier) bool {
	switch t {
	case TierFree, TierProfessional, TierInstitution:
		return true
	}
	return false
}
