package domain

// Role is the access level assigned to a user.
type Role string

const (
	RoleAdmin       Role = "admin"
	RoleOperator    Role = "operator"
	RoleMaintenance Role = "maintenance"
	RoleTechnician  Role = "technician"
	RoleViewer      Role = "viewer"
)

// Capability is a single permission checked by services and middleware.
type Capability string

const (
	CapRecordEvent      Capability = "record_event"
	CapDeleteAnyEvent   Capability = "delete_any_event"
	CapImportHistory    Capability = "import_history"
	CapRecordWellChange Capability = "record_well_change"
	CapViewDeletionLogs Capability = "view_deletion_logs"
)

// rolePermissions is the only place roles are mapped to capabilities.
var rolePermissions = map[Role][]Capability{
	RoleAdmin: {
		CapRecordEvent, CapDeleteAnyEvent, CapImportHistory,
		CapRecordWellChange, CapViewDeletionLogs,
	},
	RoleOperator:    {CapRecordEvent},
	RoleMaintenance: {CapRecordEvent, CapRecordWellChange},
	RoleTechnician:  {CapRecordEvent, CapRecordWellChange},
	RoleViewer:      nil,
}

// Can reports whether the role grants capability c. Unknown roles grant
// nothing.
func (r Role) Can(c Capability) bool {
	for _, granted := range rolePermissions[r] {
		if granted == c {
			return true
		}
	}
	return false
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := rolePermissions[r]
	return ok
}
