package model

type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
)

// Principal is the authenticated identity attached to every request.
// Identity issuance lives outside this service; only the role set and the
// capability predicates below are consulted here.
type Principal struct {
	ID    string
	Roles map[Role]struct{}
}

func NewPrincipal(id string, roles ...Role) *Principal {
	set := make(map[Role]struct{}, len(roles))
	for _, r := range roles {
		set[r] = struct{}{}
	}
	return &Principal{ID: id, Roles: set}
}

func (p *Principal) HasRole(role Role) bool {
	_, ok := p.Roles[role]
	return ok
}

// CanSchedule reports whether the principal may create, replace or delete
// availability windows.
func (p *Principal) CanSchedule() bool {
	return p.HasRole(RoleAdmin) || p.HasRole(RoleManager)
}

// CanBookFor reports whether the principal may create an appointment owned by
// patientID. Patients book for themselves; schedulers may book on behalf.
func (p *Principal) CanBookFor(patientID string) bool {
	return p.ID == patientID || p.CanSchedule()
}

// CanCancel reports whether the principal may cancel an appointment owned by
// patientID.
func (p *Principal) CanCancel(patientID string) bool {
	return p.ID == patientID || p.CanSchedule()
}
