package types

// DuplicateType classifies what kind of duplicate an invoice appears to be.
type DuplicateType string

const (
	DuplicateNone            DuplicateType = "NONE"
	DuplicateExact           DuplicateType = "EXACT"
	DuplicateFuzzy           DuplicateType = "FUZZY"
	DuplicateTemporal        DuplicateType = "TEMPORAL"
	DuplicateSupplierCluster DuplicateType = "SUPPLIER_CLUSTER"
	DuplicateLineItem        DuplicateType = "LINE_ITEM"
	DuplicateCrossSupplier   DuplicateType = "CROSS_SUPPLIER"
	DuplicatePOReference     DuplicateType = "PO_REFERENCE"
	DuplicatePartial         DuplicateType = "PARTIAL"
)

// IsValid checks if the duplicate type value is valid
func (t DuplicateType) IsValid() bool {
	switch t {
	case DuplicateNone, DuplicateExact, DuplicateFuzzy, DuplicateTemporal, DuplicateSupplierCluster,
		DuplicateLineItem, DuplicateCrossSupplier, DuplicatePOReference, DuplicatePartial:
		return true
	}
	return false
}

// RiskLevel is the ordered severity attached to a check result.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
	RiskSevere   RiskLevel = "SEVERE"
)

// Rank orders risk levels from 0 (LOW) to 4 (SEVERE); invalid levels rank -1.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 0
	case RiskMedium:
		return 1
	case RiskHigh:
		return 2
	case RiskCritical:
		return 3
	case RiskSevere:
		return 4
	}
	return -1
}

// IsValid checks if the risk level value is valid
func (r RiskLevel) IsValid() bool {
	return r.Rank() >= 0
}

// Upgrade returns the next tier up. SEVERE stays SEVERE.
func (r RiskLevel) Upgrade() RiskLevel {
	switch r {
	case RiskLow:
		return RiskMedium
	case RiskMedium:
		return RiskHigh
	case RiskHigh:
		return RiskCritical
	case RiskCritical, RiskSevere:
		return RiskSevere
	}
	return r
}

// AtLeast reports whether r is the same tier as other or higher.
func (r RiskLevel) AtLeast(other RiskLevel) bool {
	return r.Rank() >= other.Rank()
}

// MitigationAction is a recommended follow-up for a flagged invoice.
type MitigationAction string

const (
	ActionMonitor                 MitigationAction = "MONITOR"
	ActionFlagForReview           MitigationAction = "FLAG_FOR_REVIEW"
	ActionManualReview            MitigationAction = "MANUAL_REVIEW"
	ActionHoldPayment             MitigationAction = "HOLD_PAYMENT"
	ActionSupplierVerification    MitigationAction = "SUPPLIER_VERIFICATION"
	ActionBlockPayment            MitigationAction = "BLOCK_PAYMENT"
	ActionImmediateEscalation     MitigationAction = "IMMEDIATE_ESCALATION"
	ActionFraudInvestigation      MitigationAction = "FRAUD_INVESTIGATION"
	ActionRegulatoryReporting     MitigationAction = "REGULATORY_REPORTING"
	ActionLawEnforcement          MitigationAction = "LAW_ENFORCEMENT"
	ActionSystemAdminNotification MitigationAction = "SYSTEM_ADMIN_NOTIFICATION"
)

// InvestigationPriority orders how quickly a flagged invoice should be looked at.
type InvestigationPriority string

const (
	PriorityLow       InvestigationPriority = "LOW"
	PriorityMedium    InvestigationPriority = "MEDIUM"
	PriorityHigh      InvestigationPriority = "HIGH"
	PriorityUrgent    InvestigationPriority = "URGENT"
	PriorityImmediate InvestigationPriority = "IMMEDIATE"
)

// Recommendation is the contextual analyzer's advice to the caller.
type Recommendation string

const (
	RecommendProceed            Recommendation = "PROCEED"
	RecommendProceedWithCaution Recommendation = "PROCEED_WITH_CAUTION"
	RecommendManualReview       Recommendation = "MANUAL_REVIEW_REQUIRED"
	RecommendBlock              Recommendation = "BLOCK"
)

// SupplierCategory values recognised by the contextual analyzer. Callers may
// pass other categories; only SupplierCategoryHighRisk changes scoring.
const (
	SupplierCategoryStandard = "STANDARD"
	SupplierCategoryHighRisk = "HIGH_RISK"
)

// UserRiskProfileHigh marks a submitting user whose checks get the high-risk factor.
const UserRiskProfileHigh = "HIGH"
