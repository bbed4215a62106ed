package docsign

import (
	"slices"
)

type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingSignature Status = "pending_signature"
	StatusSigned           Status = "signed"
	StatusRejected         Status = "rejected"
)

var statuses = []Status{StatusDraft, StatusPendingSignature, StatusSigned, StatusRejected}

func (s Status) Valid() bool {
	return slices.Contains(statuses, s)
}

func ParseStatus(s string) (Status, error) {
	status := Status(s)
	if !status.Valid() {
		return "", newError(KindValidation, "parse_status", nil, "unknown status %q, must be one of: %s, %s, %s, %s", s, StatusDraft, StatusPendingSignature, StatusSigned, StatusRejected)
	}
	return status, nil
}

type action string

const (
	actionSubmit action = "submit"
	actionSign   action = "sign"
	actionReject action = "reject"
)

type transition struct {
	from []Status
	to   Status
}

// transitions is consulted by every regular operation. SetStatus bypasses it.
var transitions = map[action]transition{
	actionSubmit: {from: []Status{StatusDraft}, to: StatusPendingSignature},
	actionSign:   {from: []Status{StatusDraft, StatusPendingSignature, StatusSigned, StatusRejected}, to: StatusSigned},
	actionReject: {from: []Status{StatusDraft, StatusPendingSignature, StatusSigned, StatusRejected}, to: StatusRejected},
}

func canTransition(a action, from Status) bool {
	return slices.Contains(transitions[a].from, from)
}

func allowedFrom(a action) []string {
	from := transitions[a].from
	strs := make([]string, len(from))
	for i, status := range from {
		strs[i] = string(status)
	}
	return strs
}

func transitionError(op string, a action, from Status) error {
	return newError(KindConflict, op, nil, "cannot %s a document in status %s", a, from)
}
