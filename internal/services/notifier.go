package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/reelpost/reelpost-backend/internal/sse"
	"github.com/reelpost/reelpost-backend/internal/types"
)

// ProjectNotifier informs listeners of lifecycle transitions. Every call is
// fire-and-forget: a nil notifier, nil emitter, or failed delivery never
// affects the mutation that triggered it.
type ProjectNotifier interface {
	AssignmentOffered(project *types.Project, editorID uuid.UUID)
	AssignmentResponded(project *types.Project, decision types.AssignmentStatus)
	RevisionUploaded(project *types.Project, revision *types.Revision)
	RevisionArchived(projectID, revisionID uuid.UUID)
	CommentAdded(comment *types.Comment, provisionalID string)
	ReplyAdded(comment *types.Comment, reply *types.CommentReply)
	CommentResolved(comment *types.Comment, status types.CommentStatus)
	UnlockRequested(project *types.Project, requesterKey string)
	ProjectCompleted(project *types.Project)
	PaymentCaptured(project *types.Project, amount int64)
}

type projectNotifier struct {
	emit SSEEmitter
}

func NewProjectNotifier(emit SSEEmitter) ProjectNotifier {
	return &projectNotifier{emit: emit}
}

func (n *projectNotifier) send(channel string, event sse.SSEEvent, data map[string]any) {
	if n == nil || n.emit == nil || channel == "" {
		return
	}
	n.emit.Emit(context.Background(), sse.SSEMessage{
		Channel: channel,
		Event:   event,
		Data:    data,
	})
}

func (n *projectNotifier) AssignmentOffered(project *types.Project, editorID uuid.UUID) {
	if project == nil {
		return
	}
	data := map[string]any{"project": project, "editor_id": editorID}
	n.send(project.ID.String(), sse.SSEEventAssignmentOffered, data)
	// The offered editor also hears about it on their own channel.
	n.send(editorID.String(), sse.SSEEventAssignmentOffered, data)
}

func (n *projectNotifier) AssignmentResponded(project *types.Project, decision types.AssignmentStatus) {
	if project == nil {
		return
	}
	event := sse.SSEEventAssignmentAccepted
	if decision == types.AssignmentRejected {
		event = sse.SSEEventAssignmentRejected
	}
	n.send(project.ID.String(), event, map[string]any{
		"project":  project,
		"decision": decision,
	})
}

func (n *projectNotifier) RevisionUploaded(project *types.Project, revision *types.Revision) {
	if project == nil || revision == nil {
		return
	}
	n.send(project.ID.String(), sse.SSEEventRevisionUploaded, map[string]any{
		"project_id": project.ID,
		"revision":   revision,
	})
}

func (n *projectNotifier) RevisionArchived(projectID, revisionID uuid.UUID) {
	n.send(projectID.String(), sse.SSEEventRevisionArchived, map[string]any{
		"project_id":  projectID,
		"revision_id": revisionID,
	})
}

func (n *projectNotifier) CommentAdded(comment *types.Comment, provisionalID string) {
	if comment == nil {
		return
	}
	data := map[string]any{"comment": comment}
	if provisionalID != "" {
		// Echoed verbatim so an optimistic client can reconcile its
		// speculative entry against the authoritative one.
		data["provisional_id"] = provisionalID
	}
	n.send(comment.ProjectID.String(), sse.SSEEventCommentAdded, data)
}

func (n *projectNotifier) ReplyAdded(comment *types.Comment, reply *types.CommentReply) {
	if comment == nil || reply == nil {
		return
	}
	n.send(comment.ProjectID.String(), sse.SSEEventReplyAdded, map[string]any{
		"comment_id": comment.ID,
		"reply":      reply,
	})
}

func (n *projectNotifier) CommentResolved(comment *types.Comment, status types.CommentStatus) {
	if comment == nil {
		return
	}
	n.send(comment.ProjectID.String(), sse.SSEEventCommentResolved, map[string]any{
		"comment_id": comment.ID,
		"status":     status,
	})
}

func (n *projectNotifier) UnlockRequested(project *types.Project, requesterKey string) {
	if project == nil {
		return
	}
	n.send(project.ID.String(), sse.SSEEventUnlockRequested, map[string]any{
		"project_id": project.ID,
		"requester":  requesterKey,
	})
}

func (n *projectNotifier) ProjectCompleted(project *types.Project) {
	if project == nil {
		return
	}
	n.send(project.ID.String(), sse.SSEEventProjectCompleted, map[string]any{
		"project": project,
	})
}

func (n *projectNotifier) PaymentCaptured(project *types.Project, amount int64) {
	if project == nil {
		return
	}
	n.send(project.ID.String(), sse.SSEEventPaymentCaptured, map[string]any{
		"project_id":     project.ID,
		"amount":         amount,
		"payment_status": project.PaymentStatus,
	})
}
