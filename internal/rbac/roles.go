package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	// RoleAdmin can do everything, including launching campaigns.
	RoleAdmin = "admin"
	// RoleOperator launches campaigns and test calls.
	RoleOperator = "operator"
	// RoleViewer reads dashboards only.
	RoleViewer = "viewer"
)

func IsAdmin(role string) bool { return role == RoleAdmin }
