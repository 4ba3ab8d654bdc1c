package rbac

const (
	PermTestsTake       = "tests:take"
	PermResultsViewOwn  = "results:view-own"
	PermResultsViewAll  = "results:view-all"
	PermReportsView     = "reports:view"
	PermUsersList       = "users:list"
	PermUsersBulkUpsert = "users:bulk_upsert"
	PermChangePassword  = "user:change_password"
	PermCatalogSync     = "catalog:sync"
	PermRestartGrant    = "restart:grant"
)

// RolePermissions keys match exam.Role values.
var RolePermissions = map[string][]string{
	"PARTICIPANT": {
		PermTestsTake,
		PermResultsViewOwn,
		PermChangePassword,
	},
	"MANAGER": {
		PermResultsViewAll,
		PermReportsView,
		PermUsersList,
		PermChangePassword,
	},
	"ADMIN": {
		"*",
	},
}
