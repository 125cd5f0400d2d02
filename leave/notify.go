package leave

// =============================================================================
// NOTIFICATION INTENTS - Who must be told what (delivery is the caller's job)
// =============================================================================

// IntentKind names the message the chat layer should render.
type IntentKind string

const (
	IntentNewRequestForApproval   IntentKind = "new_request_for_approval"
	IntentRequestSubmitted        IntentKind = "request_submitted"
	IntentApprovedByPM            IntentKind = "approved_by_pm"
	IntentRejectedByPM            IntentKind = "rejected_by_pm"
	IntentRequestApproved         IntentKind = "request_approved"
	IntentRequestRejected         IntentKind = "request_rejected"
	IntentRequestCancelled        IntentKind = "request_cancelled"
	IntentDeniedRequestVisibility IntentKind = "denied_request_visibility"
)

// NotificationIntent is a plain value. EmployeeID is set when the recipient
// is a specific person (the requester, the assigned PM); for HR it is empty
// and the chat layer resolves the HR audience itself.
type NotificationIntent struct {
	Recipient  Role
	EmployeeID EmployeeID
	Kind       IntentKind
	Request    VacationRequest
	Extra      map[string]any
}

func toEmployee(req VacationRequest, kind IntentKind) NotificationIntent {
	return NotificationIntent{Recipient: RoleEmployee, EmployeeID: req.EmployeeID, Kind: kind, Request: req}
}

func toPM(req VacationRequest, kind IntentKind) NotificationIntent {
	return NotificationIntent{Recipient: RolePM, EmployeeID: req.PMID, Kind: kind, Request: req}
}

func toHR(req VacationRequest, kind IntentKind, extra map[string]any) NotificationIntent {
	return NotificationIntent{Recipient: RoleHR, Kind: kind, Request: req, Extra: extra}
}

// submittedIntents tells the first approver and acknowledges the requester.
func submittedIntents(req VacationRequest) []NotificationIntent {
	var out []NotificationIntent
	if req.State == StatePendingPM {
		out = append(out, toPM(req, IntentNewRequestForApproval))
	} else {
		out = append(out, toHR(req, IntentNewRequestForApproval, map[string]any{
			"emergency":  req.Kind == KindEmergency,
			"skipped_pm": req.PMID == "" || req.Kind == KindEmergency,
		}))
	}
	return append(out, toEmployee(req, IntentRequestSubmitted))
}

// transitionIntents covers every decision and cancellation. from is the
// state the request left.
func transitionIntents(from State, req VacationRequest) []NotificationIntent {
	switch req.State {
	case StatePendingHR:
		return []NotificationIntent{
			toHR(req, IntentNewRequestForApproval, map[string]any{"approved_by_pm": req.PMID}),
			toEmployee(req, IntentApprovedByPM),
		}
	case StateApproved:
		out := []NotificationIntent{toEmployee(req, IntentRequestApproved)}
		if req.PMID != "" {
			out = append(out, toPM(req, IntentRequestApproved))
		}
		return out
	case StateRejected:
		out := []NotificationIntent{toEmployee(req, IntentRequestRejected)}
		if from == StatePendingPM {
			return append(out, toHR(req, IntentRejectedByPM, nil))
		}
		if req.PMID != "" {
			out = append(out, toPM(req, IntentRequestRejected))
		}
		return out
	case StateCancelled:
		if from == StatePendingPM {
			return []NotificationIntent{toPM(req, IntentRequestCancelled)}
		}
		return []NotificationIntent{toHR(req, IntentRequestCancelled, nil)}
	}
	return nil
}

// deniedIntent gives HR visibility of a submission that never got persisted.
func deniedIntent(req VacationRequest, err error) NotificationIntent {
	return toHR(req, IntentDeniedRequestVisibility, map[string]any{
		"error_kind": KindOf(err),
		"error":      err.Error(),
	})
}
