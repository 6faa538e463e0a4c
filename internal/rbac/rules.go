package rbac

const (
	PermExamRead       = "exam:read"
	PermExamCreate     = "exam:create"
	PermExamUpdate     = "exam:update"
	PermExamDelete     = "exam:delete"
	PermExamResults    = "exam:results"
	PermSessionStart   = "session:start"
	PermSessionWrite   = "session:write"
	PermSessionMonitor = "session:monitor"
	PermResultSelf     = "result:read:self"
	PermResultAny      = "result:read:any"
	PermUserList       = "user:list"
	PermUserRole       = "user:update_role"
	PermAnalysisRun    = "analysis:run"
)

// RolePermissions is the default policy. A trailing * matches any suffix.
var RolePermissions = map[string][]string{
	"student": {
		PermExamRead,
		PermSessionStart,
		PermSessionWrite,
		PermResultSelf,
	},
	"teacher": {
		PermExamRead,
		PermExamCreate,
		PermExamUpdate,
		PermExamDelete,
		PermExamResults,
		PermSessionMonitor,
		"result:read:*",
		PermUserList,
		PermAnalysisRun,
	},
	"admin": {"*"},
}
