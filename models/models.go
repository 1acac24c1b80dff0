package models

// CaseAction is the kind of moderation action a case records.
type CaseAction int

const (
	CaseActionWarn = CaseAction(iota)
	CaseActionKick
	CaseActionSoftban
	CaseActionBan
	CaseActionUnban
	CaseActionTimeout
	CaseActionTimeoutEnd
)

func (a CaseAction) String() string {
	switch a {
	case CaseActionWarn:
		return "warn"
	case CaseActionKick:
		return "kick"
	case CaseActionSoftban:
		return "softban"
	case CaseActionBan:
		return "ban"
	case CaseActionUnban:
		return "unban"
	case CaseActionTimeout:
		return "timeout"
	case CaseActionTimeoutEnd:
		return "timeout_end"
	default:
		return "<unknown>"
	}
}

// ActionFromString parses the wire name of an action.
func ActionFromString(s string) (CaseAction, bool) {
	for a := CaseActionWarn; a <= CaseActionTimeoutEnd; a++ {
		if a.String() == s {
			return a, true
		}
	}
	return 0, false
}

// Family groups mutually-exclusive actions against one target under a single
// idempotency lock key. Ban and softban contend on the same key. Resolution
// actions get their own keys: the lock set when a timeout was created must
// not block resolving that same timeout within its TTL.
func (a CaseAction) Family() string {
	switch a {
	case CaseActionBan, CaseActionSoftban:
		return "ban"
	case CaseActionUnban:
		return "unban"
	case CaseActionTimeout:
		return "timeout"
	case CaseActionTimeoutEnd:
		return "timeout_end"
	case CaseActionKick:
		return "kick"
	default:
		return "warn"
	}
}

// Punitive reports whether the action is taken against a user, as opposed to
// the resolution of an earlier action. Punitive cases close pending reports.
func (a CaseAction) Punitive() bool {
	switch a {
	case CaseActionUnban, CaseActionTimeoutEnd:
		return false
	default:
		return true
	}
}

type ReportType int

const (
	ReportTypeMessage = ReportType(iota)
	ReportTypeUser
)

func (t ReportType) String() string {
	switch t {
	case ReportTypeMessage:
		return "message"
	case ReportTypeUser:
		return "user"
	default:
		return "<unknown>"
	}
}

// ReportStatus values double as indexes into a guild's ordered status tag
// list (GuildSettings.ReportStatusTags).
type ReportStatus int

const (
	ReportStatusPending = ReportStatus(iota)
	ReportStatusApproved
	ReportStatusRejected
	ReportStatusSpam
)

func (s ReportStatus) String() string {
	switch s {
	case ReportStatusPending:
		return "pending"
	case ReportStatusApproved:
		return "approved"
	case ReportStatusRejected:
		return "rejected"
	case ReportStatusSpam:
		return "spam"
	default:
		return "<unknown>"
	}
}

// Terminal reports whether the status closes a report through the normal
// flow. Moderator overrides may still move a terminal report back to pending.
func (s ReportStatus) Terminal() bool {
	return s != ReportStatusPending
}
