package deduplication

import (
	"sort"

	"github.com/steveyegge/dupcheck/internal/types"
)

// baseRisk is the risk level of each duplicate type before any upgrade.
func baseRisk(t types.DuplicateType) types.RiskLevel {
	switch t {
	case types.DuplicateExact:
		return types.RiskCritical
	case types.DuplicateCrossSupplier:
		return types.RiskSevere
	case types.DuplicateFuzzy, types.DuplicateSupplierCluster, types.DuplicatePOReference:
		return types.RiskHigh
	case types.DuplicateTemporal:
		return types.RiskMedium
	case types.DuplicateLineItem, types.DuplicatePartial, types.DuplicateNone:
		return types.RiskLow
	}
	return types.RiskLow
}

// riskActions are the default mitigation actions for each risk level.
func riskActions(r types.RiskLevel) []types.MitigationAction {
	switch r {
	case types.RiskLow:
		return []types.MitigationAction{types.ActionMonitor, types.ActionFlagForReview}
	case types.RiskMedium:
		return []types.MitigationAction{types.ActionFlagForReview, types.ActionManualReview}
	case types.RiskHigh:
		return []types.MitigationAction{types.ActionManualReview, types.ActionHoldPayment, types.ActionSupplierVerification}
	case types.RiskCritical:
		return []types.MitigationAction{types.ActionBlockPayment, types.ActionImmediateEscalation, types.ActionFraudInvestigation}
	case types.RiskSevere:
		return []types.MitigationAction{types.ActionBlockPayment, types.ActionImmediateEscalation,
			types.ActionRegulatoryReporting, types.ActionLawEnforcement}
	}
	return nil
}

// typeActions are added on top of the risk defaults for some duplicate types.
func typeActions(t types.DuplicateType) []types.MitigationAction {
	switch t {
	case types.DuplicateCrossSupplier:
		return []types.MitigationAction{types.ActionFraudInvestigation, types.ActionRegulatoryReporting}
	case types.DuplicateExact:
		return []types.MitigationAction{types.ActionBlockPayment}
	}
	return nil
}

// failSafeActions are the mitigation actions of a fail-safe result.
func failSafeActions() []types.MitigationAction {
	return []types.MitigationAction{types.ActionBlockPayment, types.ActionImmediateEscalation, types.ActionSystemAdminNotification}
}

// mitigationFor returns the sorted union of the risk defaults and the type
// additions. NONE results get no actions.
func mitigationFor(r types.RiskLevel, t types.DuplicateType) []types.MitigationAction {
	if t == types.DuplicateNone {
		return nil
	}
	return actionSet(riskActions(r), typeActions(t))
}

func actionSet(lists ...[]types.MitigationAction) []types.MitigationAction {
	seen := make(map[types.MitigationAction]bool)
	var out []types.MitigationAction
	for _, list := range lists {
		for _, a := range list {
			if !seen[a] {
				seen[a] = true
				out = append(out, a)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// priorityFor derives how urgently a result should be investigated.
func priorityFor(r types.RiskLevel, confidence float64) types.InvestigationPriority {
	switch {
	case r == types.RiskSevere || r == types.RiskCritical:
		return types.PriorityImmediate
	case r == types.RiskHigh && confidence >= 0.90:
		return types.PriorityUrgent
	case r == types.RiskHigh:
		return types.PriorityHigh
	case r == types.RiskMedium && confidence >= 0.80:
		return types.PriorityMedium
	}
	return types.PriorityLow
}

func containsAction(actions []types.MitigationAction, a types.MitigationAction) bool {
	for _, x := range actions {
		if x == a {
			return true
		}
	}
	return false
}
