package rbac

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	"student": {
		"rubric:view",
		"results:view",
		"score:view-own",
		"user:change_password",
	},
	"teacher": {
		"rubric:create",
		"rubric:delete",
		"rubric:view",
		"results:view",
		"students:manage",
		"score:assign",
		"score:view-all",
		"export:csv",
		"users:bulk_upsert",
		"users:list",
	},
	"admin": {
		"*", // everything
	},
}
