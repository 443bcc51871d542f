package trust

// Action identifies a protected operation. Every action maps to a required
// trust level in a fixed table; the mapping is never computed at runtime.
type Action string

const (
	ActionReadObject    Action = "object.read"
	ActionWriteObject   Action = "object.write"
	ActionCreateCircle  Action = "circle.create"
	ActionDeleteCircle  Action = "circle.delete"
	ActionAddTrustee    Action = "trustee.add"
	ActionRemoveTrustee Action = "trustee.remove"
	ActionCreateMember  Action = "member.create"
	ActionDeleteMember  Action = "member.delete"
	ActionLogin         Action = "member.login"
)

var requiredLevels = map[Action]Level{
	ActionReadObject:    Read,
	ActionWriteObject:   Write,
	ActionCreateCircle:  Read,
	ActionDeleteCircle:  Admin,
	ActionAddTrustee:    Admin,
	ActionRemoveTrustee: Admin,
	ActionCreateMember:  Sysop,
	ActionDeleteMember:  Sysop,
	ActionLogin:         Read,
}

// RequiredLevel returns the trust level an action demands. Unknown actions
// require Sysop, so a wiring mistake fails closed.
func RequiredLevel(a Action) Level {
	if l, ok := requiredLevels[a]; ok {
		return l
	}
	return Sysop
}
