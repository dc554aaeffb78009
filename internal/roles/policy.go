package roles

import "sort"

// Action is a capability gated by role.
type Action string

const (
	ActionCompanyCreate       Action = "company:create"
	ActionCompanyListClients  Action = "company:list-clients"
	ActionUserListAll         Action = "user:list-all"
	ActionUserManage          Action = "user:manage"
	ActionProjectCreate       Action = "project:create"
	ActionProjectGrant        Action = "project:grant"
	ActionAuditCreate         Action = "audit:create"
	ActionAuditPublish        Action = "audit:publish"
	ActionAuditListAll        Action = "audit:list-all"
	ActionAccessRequestReview Action = "access-request:review"
	ActionActivityRead        Action = "activity:read"
	ActionDashboardGlobal     Action = "dashboard:global"
)

// ActionSet is an unordered set of actions.
type ActionSet map[Action]struct{}

// Has reports membership.
func (s ActionSet) Has(a Action) bool {
	_, ok := s[a]
	return ok
}

// Sorted returns the actions in lexical order.
func (s ActionSet) Sorted() []Action {
	out := make([]Action, 0, len(s))
	for a := range s {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func newSet(actions ...Action) ActionSet {
	set := make(ActionSet, len(actions))
	for _, a := range actions {
		set[a] = struct{}{}
	}
	return set
}

var everything = newSet(
	ActionCompanyCreate, ActionCompanyListClients, ActionUserListAll, ActionUserManage,
	ActionProjectCreate, ActionProjectGrant, ActionAuditCreate, ActionAuditPublish,
	ActionAuditListAll, ActionAccessRequestReview, ActionActivityRead, ActionDashboardGlobal,
)

var familyActions = map[Family]ActionSet{
	FamilyOwner: everything,
	FamilyAdmin: everything,
	FamilyStaff: newSet(
		ActionCompanyListClients, ActionProjectCreate, ActionAuditCreate,
		ActionAuditPublish, ActionAuditListAll, ActionDashboardGlobal,
	),
	FamilyPartner: newSet(
		ActionCompanyListClients, ActionUserManage, ActionProjectCreate,
		ActionAuditCreate, ActionAuditListAll, ActionDashboardGlobal,
	),
	FamilyClient: newSet(ActionProjectCreate, ActionAuditCreate, ActionAccessRequestReview),
	FamilyViewer: newSet(),
}

// PermittedActions returns a copy of the actions granted to role.
func PermittedActions(role Role) ActionSet {
	granted := familyActions[role.Family()]
	out := make(ActionSet, len(granted))
	for a := range granted {
		out[a] = struct{}{}
	}
	return out
}

// Can reports whether role is granted action.
func Can(role Role, action Action) bool {
	return familyActions[role.Family()].Has(action)
}

// CanManage decides whether an actor holding actorRole may administer a user
// holding targetRole:
//
//	owner          any role, including owner and admin
//	admin          any role except owner and admin
//	partner family only client_editor
//	anything else  nothing
//
// Unknown roles on either side deny.
func CanManage(actorRole, targetRole Role) bool {
	if !actorRole.Valid() || !targetRole.Valid() {
		return false
	}
	switch actorRole.Family() {
	case FamilyOwner:
		return true
	case FamilyAdmin:
		return targetRole != Owner && targetRole != Admin
	case FamilyPartner:
		return targetRole == ClientEditor
	default:
		return false
	}
}

// Manageable lists the roles actorRole may assign, in authority order.
func Manageable(actorRole Role) []Role {
	var out []Role
	for _, role := range All() {
		if CanManage(actorRole, role) {
			out = append(out, role)
		}
	}
	return out
}
