package services

import (
	"github.com/reelpost/reelpost-backend/internal/apierr"
	"github.com/reelpost/reelpost-backend/internal/types"
)

// projectEvent is a lifecycle event that may move a project between
// statuses. All status writes in this package go through transition, so the
// legal (status, event) pairs live in exactly one place.
type projectEvent string

const (
	eventAssign         projectEvent = "assign"
	eventAccept         projectEvent = "assignment_accepted"
	eventReject         projectEvent = "assignment_rejected"
	eventInitialPayment projectEvent = "initial_payment"
	eventComplete       projectEvent = "complete"
)

var projectTransitions = map[types.ProjectStatus]map[projectEvent]types.ProjectStatus{
	types.ProjectPendingPayment: {
		eventAssign:         types.ProjectPendingAssignment,
		eventInitialPayment: types.ProjectPendingAssignment,
		eventComplete:       types.ProjectCompleted,
	},
	types.ProjectPendingAssignment: {
		eventAssign:   types.ProjectPendingAssignment,
		eventAccept:   types.ProjectActive,
		eventReject:   types.ProjectPendingAssignment,
		eventComplete: types.ProjectCompleted,
	},
	types.ProjectActive: {
		eventAssign:   types.ProjectPendingAssignment,
		eventComplete: types.ProjectCompleted,
	},
	types.ProjectInReview: {
		eventAssign:   types.ProjectPendingAssignment,
		eventComplete: types.ProjectCompleted,
	},
	types.ProjectApproved: {
		eventComplete: types.ProjectCompleted,
	},
	types.ProjectCompleted: {
		eventComplete: types.ProjectCompleted,
	},
}

func transition(current types.ProjectStatus, ev projectEvent) (types.ProjectStatus, error) {
	if next, ok := projectTransitions[current][ev]; ok {
		return next, nil
	}
	return "", apierr.InvalidState("event %q is not valid for project status %q", ev, current)
}
