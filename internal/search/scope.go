package search

import (
	"fmt"

	"agentmail-search/internal/logging"
)

// ContactPolicy controls how a sender's messages are visible to agents
// they have no approved contact with.
type ContactPolicy string

const (
	PolicyOpen          ContactPolicy = "open"
	PolicyAuto          ContactPolicy = "auto"
	PolicyContactsOnly  ContactPolicy = "contacts_only"
	PolicyBlockAll      ContactPolicy = "block_all"
)

// Verdict is the outcome of evaluating one row against a viewer's scope.
type Verdict string

const (
	VerdictAllow  Verdict = "allow"
	VerdictRedact Verdict = "redact"
	VerdictDeny   Verdict = "deny"
)

// Reason names why a verdict was reached. Every reason carries a stable
// user-facing explanation via Message().
type Reason string

const (
	ReasonNonMessageEntity   Reason = "non_message_entity"
	ReasonOperatorMode       Reason = "operator_mode"
	ReasonIsSender           Reason = "is_sender"
	ReasonIsRecipient        Reason = "is_recipient"
	ReasonCrossProjectDenied Reason = "cross_project_denied"
	ReasonApprovedContact    Reason = "approved_contact"
	ReasonOpenPolicy         Reason = "open_policy"
	ReasonAutoPolicy         Reason = "auto_policy"
	ReasonContactsOnlyDenied Reason = "contacts_only_denied"
	ReasonBlockAllDenied     Reason = "block_all_denied"
)

// Message returns the stable, user-facing explanation for a reason code.
func (r Reason) Message() string {
	switch r {
	case ReasonNonMessageEntity:
		return "non-message entities are always visible"
	case ReasonOperatorMode:
		return "operator mode: no viewer filtering applied"
	case ReasonIsSender:
		return "viewer is the sender of this message"
	case ReasonIsRecipient:
		return "viewer is a recipient of this message"
	case ReasonCrossProjectDenied:
		return "sender's project is not shared with the viewer and no approved contact exists"
	case ReasonApprovedContact:
		return "viewer has an approved contact with the sender"
	case ReasonOpenPolicy:
		return "sender's contact policy is open"
	case ReasonAutoPolicy:
		return "sender's contact policy is auto"
	case ReasonContactsOnlyDenied:
		return "sender only accepts visibility from approved contacts"
	case ReasonBlockAllDenied:
		return "sender blocks all non-contact visibility"
	default:
		return "unknown reason"
	}
}

// RedactionPolicy selects which fields are cleared on a Redact verdict.
type RedactionPolicy struct {
	RedactBody   bool
	RedactSender bool
	RedactThread bool
}

// DefaultRedactionPolicy redacts body and sender but preserves thread_id.
func DefaultRedactionPolicy() RedactionPolicy {
	return RedactionPolicy{RedactBody: true, RedactSender: true, RedactThread: false}
}

// StrictRedactionPolicy redacts body, sender, and thread.
func StrictRedactionPolicy() RedactionPolicy {
	return RedactionPolicy{RedactBody: true, RedactSender: true, RedactThread: true}
}

const redactedPlaceholder = "[redacted]"

// ScopeContext carries everything the evaluator needs about the current
// viewer. A nil Viewer means operator mode: no filtering is applied.
//
// Sender identity for scope decisions is derived exclusively from the keys
// of SenderPolicies (project_id, agent_id) pairs supplied by the caller; a
// row's cosmetic FromAgent display string is never consulted for identity
// matching, since an unauthenticated display string could otherwise be
// forged to impersonate a sender.
type ScopeContext struct {
	Viewer           *AgentRef
	ViewerProjectIDs []int64
	ApprovedContacts []AgentRef
	SenderPolicies   map[AgentRef]ContactPolicy
	RecipientMap     map[int64][]AgentRef

	// NowTS is the caller-supplied current timestamp (microseconds, from a
	// clock interface) used to evaluate contact link expiry. The scope
	// evaluator and SQL builder never read the wall clock themselves.
	NowTS int64
}

func (c ScopeContext) viewerIsRecipient(messageID int64) bool {
	if c.Viewer == nil {
		return false
	}
	for _, r := range c.RecipientMap[messageID] {
		if r == *c.Viewer {
			return true
		}
	}
	return false
}

func (c ScopeContext) viewerInProject(projectID int64) bool {
	for _, id := range c.ViewerProjectIDs {
		if id == projectID {
			return true
		}
	}
	return false
}

func (c ScopeContext) hasApprovedContact(sender AgentRef) bool {
	for _, a := range c.ApprovedContacts {
		if a == sender {
			return true
		}
	}
	return false
}

// EvaluateScope decides the verdict and reason for one row given a viewer
// context. Non-message doc kinds are always allowed.
func EvaluateScope(ctx ScopeContext, kind DocKind, messageID int64, projectID int64, sender AgentRef) (Verdict, Reason) {
	if kind != DocMessage {
		return VerdictAllow, ReasonNonMessageEntity
	}
	if ctx.Viewer == nil {
		return VerdictAllow, ReasonOperatorMode
	}
	if sender == *ctx.Viewer {
		return VerdictAllow, ReasonIsSender
	}
	if ctx.viewerIsRecipient(messageID) {
		return VerdictAllow, ReasonIsRecipient
	}
	if !ctx.viewerInProject(projectID) && !ctx.hasApprovedContact(sender) {
		return VerdictDeny, ReasonCrossProjectDenied
	}
	if ctx.hasApprovedContact(sender) {
		return VerdictAllow, ReasonApprovedContact
	}
	switch ctx.SenderPolicies[sender] {
	case PolicyOpen:
		return VerdictAllow, ReasonOpenPolicy
	case PolicyAuto:
		return VerdictAllow, ReasonAutoPolicy
	case PolicyContactsOnly:
		return VerdictDeny, ReasonContactsOnlyDenied
	case PolicyBlockAll:
		return VerdictDeny, ReasonBlockAllDenied
	default:
		return VerdictDeny, ReasonContactsOnlyDenied
	}
}

// AuditEntry records one row's verdict without carrying its payload.
type AuditEntry struct {
	ResultID    int64
	DocKind     DocKind
	Verdict     Verdict
	Reason      Reason
	Explanation string
	Viewer      *AgentRef
}

// AuditSummary aggregates the outcome of applying scope to a batch of rows.
type AuditSummary struct {
	TotalBefore int
	Visible     int
	Redacted    int
	Denied      int
	Entries     []AuditEntry
}

// ApplyRedaction mutates a result in place per policy when its verdict is
// Redact, attaching a redaction_note derived from the reason's message.
func ApplyRedaction(res *Result, reason Reason, policy RedactionPolicy) {
	res.Redacted = true
	res.RedactionNote = reason.Message()
	if policy.RedactBody {
		res.Title = redactedPlaceholder
		res.Body = redactedPlaceholder
	}
	if policy.RedactSender {
		res.FromAgent = nil
	}
	if policy.RedactThread {
		res.ThreadID = nil
	}
}

// ApplyScope evaluates every row's scope decision, drops denied rows,
// redacts rows that warrant it, and returns the visible set alongside an
// audit summary. Verdicts never surface visibility failures as errors;
// they only shrink or redact the result set.
func ApplyScope(ctx ScopeContext, policy RedactionPolicy, rows []Result, redactOnDeny bool) ([]Result, AuditSummary) {
	timer := logging.StartTimer(logging.CategoryScope, "ApplyScope")
	defer timer.Stop()

	summary := AuditSummary{TotalBefore: len(rows)}
	visible := make([]Result, 0, len(rows))

	for _, row := range rows {
		var verdict Verdict
		var reason Reason

		if row.DocKind != DocMessage || row.SenderRef == nil || row.ProjectID == nil {
			verdict, reason = VerdictAllow, ReasonNonMessageEntity
		} else {
			verdict, reason = EvaluateScope(ctx, row.DocKind, row.ID, *row.ProjectID, *row.SenderRef)
		}

		entry := AuditEntry{
			ResultID:    row.ID,
			DocKind:     row.DocKind,
			Verdict:     verdict,
			Reason:      reason,
			Explanation: reason.Message(),
			Viewer:      ctx.Viewer,
		}
		summary.Entries = append(summary.Entries, entry)

		switch verdict {
		case VerdictDeny:
			summary.Denied++
			if redactOnDeny {
				redactedRow := row
				ApplyRedaction(&redactedRow, reason, policy)
				visible = append(visible, redactedRow)
				summary.Redacted++
			}
		case VerdictRedact:
			ApplyRedaction(&row, reason, policy)
			visible = append(visible, row)
			summary.Redacted++
		default:
			visible = append(visible, row)
			summary.Visible++
		}
	}

	return visible, summary
}

// BuildScopeSQLClauses produces the push-down OR clause reducing the row
// set before the in-memory evaluator runs: (sender=self) OR (self in
// recipients) OR (sender policy in {open, auto}) OR (approved, unexpired
// link exists between self and sender, evaluated symmetrically). Returns
// ("", nil) in operator mode, since no viewer means no restriction.
func BuildScopeSQLClauses(ctx ScopeContext, table string) (string, []any) {
	if ctx.Viewer == nil {
		return "", nil
	}

	var params []any
	clause := fmt.Sprintf(
		"(%s.sender_agent_id = ?)"+
			" OR %s.id IN (SELECT message_id FROM message_recipients WHERE agent_id = ?)"+
			" OR EXISTS (SELECT 1 FROM agents sender_agent WHERE sender_agent.id = %s.sender_agent_id"+
			" AND sender_agent.contact_policy IN (?, ?))"+
			" OR EXISTS (SELECT 1 FROM agent_links l WHERE l.status = ?"+
			" AND (l.expires_ts IS NULL OR l.expires_ts > ?)"+
			" AND ((l.a_agent_id = ? AND l.b_agent_id = %s.sender_agent_id)"+
			" OR (l.b_agent_id = ? AND l.a_agent_id = %s.sender_agent_id)))",
		table, table, table, table, table,
	)

	params = append(params,
		ctx.Viewer.AgentID,
		ctx.Viewer.AgentID,
		string(PolicyOpen), string(PolicyAuto),
		"approved", ctx.NowTS,
		ctx.Viewer.AgentID,
		ctx.Viewer.AgentID,
	)

	return clause, params
}
