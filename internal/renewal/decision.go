package renewal

import "github.com/tcdsagency/renewals/internal/model"

// decisionStatus is the status a record moves to on each agent decision.
var decisionStatus = map[model.Decision]model.RenewalStatus{
	model.DecisionRenewAsIs:      model.StatusAgentReviewed,
	model.DecisionReshop:         model.StatusRequoteRequested,
	model.DecisionContactCust:    model.StatusAgentReviewed,
	model.DecisionNeedsMoreInfo:  model.StatusWaitingAgentReview,
	model.DecisionNoBetterOption: model.StatusAgentReviewed,
	model.DecisionBoundNewPolicy: model.StatusCompleted,
}

// StatusFor returns the status a decision moves a record to.
func StatusFor(d model.Decision) (model.RenewalStatus, bool) {
	s, ok := decisionStatus[d]
	return s, ok
}

// decidableStatuses are the states in which an agent decision is accepted.
var decidableStatuses = []model.RenewalStatus{
	model.StatusWaitingAgentReview,
	model.StatusAgentReviewed,
	model.StatusRequoteRequested,
	model.StatusQuoteReady,
}

// comparableStatuses are the states in which a comparison may (re)run.
var comparableStatuses = []model.RenewalStatus{
	model.StatusPending,
	model.StatusPendingManualRenewal,
	model.StatusWaitingAgentReview,
}

// reshopOutcomes close a reshop once requoting finishes.
var reshopOutcomes = []model.Decision{model.DecisionNoBetterOption, model.DecisionBoundNewPolicy}

var reshopStatuses = []model.RenewalStatus{model.StatusRequoteRequested, model.StatusQuoteReady}
