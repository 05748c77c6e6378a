package identity

// Role represents a named permission tier within the product
type Role string

const (
	RoleStudioAdmin  Role = "studio_admin"  // Administers the studio and all clients
	RoleStudioMember Role = "studio_member" // Works on projects across clients
	RoleClientAdmin  Role = "client_admin"  // Administers a single client organization
	RoleClientMember Role = "client_member" // Collaborates within a single client
	RoleGuest        Role = "guest"         // No membership anywhere
)

// KnownRoles returns all roles the permission table covers
func KnownRoles() []Role {
	return []Role{
		RoleStudioAdmin,
		RoleStudioMember,
		RoleClientAdmin,
		RoleClientMember,
		RoleGuest,
	}
}

// PermissionSet is the fixed capability record derived from a role.
// Every field is derived; nothing here is persisted.
type PermissionSet struct {
	CanInviteUsers           bool `json:"can_invite_users"`
	CanManageProjects        bool `json:"can_manage_projects"`
	CanDeleteProjects        bool `json:"can_delete_projects"`
	CanViewAllClients        bool `json:"can_view_all_clients"`
	CanManageTeam            bool `json:"can_manage_team"`
	CanViewFinancials        bool `json:"can_view_financials"`
	CanUploadAssets          bool `json:"can_upload_assets"`
	CanCreateTemplates       bool `json:"can_create_templates"`
	CanAccessStudioDashboard bool `json:"can_access_studio_dashboard"`
	CanAccessClientDashboard bool `json:"can_access_client_dashboard"`
}

// StudioMembership is a row from studio_members joined to its role name
type StudioMembership struct {
	UserID   int64 `json:"user_id"`
	StudioID int64 `json:"studio_id"`
	Role     Role  `json:"role"`
}

// ClientMembership is a row from client_users joined to its role name
type ClientMembership struct {
	UserID    int64 `json:"user_id"`
	ClientID  int64 `json:"client_id"`
	Role      Role  `json:"role"`
	IsPrimary bool  `json:"is_primary"`
}

// ResolvedIdentity is the cached resolution result for a principal.
// It is computed once per sign-in (or cache miss) and invalidated on
// sign-out.
type ResolvedIdentity struct {
	UserID         int64         `json:"user_id"`
	Role           Role          `json:"role"`
	Permissions    PermissionSet `json:"permissions"`
	IsStudioMember bool          `json:"is_studio_member"`
	StudioID       *int64        `json:"studio_id,omitempty"`
	ClientID       *int64        `json:"client_id,omitempty"`
}

// GuestIdentity returns the most restrictive identity for a user with no
// membership anywhere. This is also the fallback when resolution cannot
// complete.
func GuestIdentity(userID int64) *ResolvedIdentity {
	return &ResolvedIdentity{
		UserID:      userID,
		Role:        RoleGuest,
		Permissions: DerivePermissions(RoleGuest, false, false),
	}
}
