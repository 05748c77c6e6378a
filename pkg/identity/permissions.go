package identity

// permissionTable is the single source of truth mapping each role to its
// capability set. Handlers and guards consume DerivePermissions; nothing
// re-derives capabilities inline.
var permissionTable = map[Role]PermissionSet{
	RoleStudioAdmin: {
		CanInviteUsers:           true,
		CanManageProjects:        true,
		CanDeleteProjects:        true,
		CanViewAllClients:        true,
		CanManageTeam:            true,
		CanViewFinancials:        true,
		CanUploadAssets:          true,
		CanCreateTemplates:       true,
		CanAccessStudioDashboard: true,
		CanAccessClientDashboard: true,
	},
	RoleStudioMember: {
		CanManageProjects:        true,
		CanViewAllClients:        true,
		CanUploadAssets:          true,
		CanCreateTemplates:       true,
		CanAccessStudioDashboard: true,
		CanAccessClientDashboard: true,
	},
	RoleClientAdmin: {
		CanInviteUsers:           true,
		CanManageProjects:        true,
		CanManageTeam:            true,
		CanViewFinancials:        true, // gated by is_primary below
		CanUploadAssets:          true,
		CanAccessClientDashboard: true,
	},
	RoleClientMember: {
		CanUploadAssets:          true,
		CanAccessClientDashboard: true,
	},
	RoleGuest: {
		CanAccessClientDashboard: true,
	},
}

// DerivePermissions maps a role plus its membership modifiers to a capability
// set. It is total: an unrecognized role yields the guest set, never an
// error. A role name outside the table indicates a data-integrity problem
// upstream; callers should log it and continue.
func DerivePermissions(role Role, isPrimary, isStudio bool) PermissionSet {
	perms, ok := permissionTable[role]
	if !ok {
		perms = permissionTable[RoleGuest]
	}

	// Only the primary client contact sees financials.
	if role == RoleClientAdmin && !isPrimary {
		perms.CanViewFinancials = false
	}

	// Studio-only capabilities never leak through a client membership row,
	// even if the row carries a studio role name.
	if !isStudio {
		perms.CanAccessStudioDashboard = false
		perms.CanViewAllClients = false
	}

	return perms
}

// IsKnownRole reports whether the role has an entry in the permission table
func IsKnownRole(role Role) bool {
	_, ok := permissionTable[role]
	return ok
}

// Capability names a single boolean in the PermissionSet, for use by route
// guards and handlers that take the required capability as a parameter.
type Capability string

const (
	CapabilityInviteUsers           Capability = "invite_users"
	CapabilityManageProjects        Capability = "manage_projects"
	CapabilityDeleteProjects        Capability = "delete_projects"
	CapabilityViewAllClients        Capability = "view_all_clients"
	CapabilityManageTeam            Capability = "manage_team"
	CapabilityViewFinancials        Capability = "view_financials"
	CapabilityUploadAssets          Capability = "upload_assets"
	CapabilityCreateTemplates       Capability = "create_templates"
	CapabilityAccessStudioDashboard Capability = "access_studio_dashboard"
	CapabilityAccessClientDashboard Capability = "access_client_dashboard"
)

// Has reports whether the capability is granted. Unknown capability names
// are denied.
func (p PermissionSet) Has(c Capability) bool {
	switch c {
	case CapabilityInviteUsers:
		return p.CanInviteUsers
	case CapabilityManageProjects:
		return p.CanManageProjects
	case CapabilityDeleteProjects:
		return p.CanDeleteProjects
	case CapabilityViewAllClients:
		return p.CanViewAllClients
	case CapabilityManageTeam:
		return p.CanManageTeam
	case CapabilityViewFinancials:
		return p.CanViewFinancials
	case CapabilityUploadAssets:
		return p.CanUploadAssets
	case CapabilityCreateTemplates:
		return p.CanCreateTemplates
	case CapabilityAccessStudioDashboard:
		return p.CanAccessStudioDashboard
	case CapabilityAccessClientDashboard:
		return p.CanAccessClientDashboard
	default:
		return false
	}
}
