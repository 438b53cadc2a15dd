package user

type Permission string

const (
	// Runs
	PermissionRunView    Permission = "payroll.run.view"
	PermissionRunCompute Permission = "payroll.run.compute"
	PermissionRunReview  Permission = "payroll.run.review"

	// Payslips
	PermissionPayslipViewOwn Permission = "payroll.payslip.view_own"
	PermissionPayslipViewAll Permission = "payroll.payslip.view_all"

	// Events
	PermissionRunEvents Permission = "payroll.run.events"
)

// RolePermissions maps roles to their permissions.
// Workflow transitions are gated separately by the workflow capability table.
var RolePermissions = map[Role][]Permission{
	RoleSystemAdmin: {
		PermissionRunView,
		PermissionRunCompute,
		PermissionRunReview,
		PermissionPayslipViewOwn,
		PermissionPayslipViewAll,
		PermissionRunEvents,
	},
	RolePayrollOfficer: {
		PermissionRunView,
		PermissionRunCompute,
		PermissionPayslipViewOwn,
		PermissionPayslipViewAll,
		PermissionRunEvents,
	},
	RolePayrollChecker: {
		PermissionRunView,
		PermissionRunReview,
		PermissionPayslipViewOwn,
		PermissionPayslipViewAll,
		PermissionRunEvents,
	},
	RolePayrollAdmin: {
		PermissionRunView,
		PermissionRunReview,
		PermissionPayslipViewOwn,
		PermissionPayslipViewAll,
		PermissionRunEvents,
	},
	RoleEmployee: {
		PermissionPayslipViewOwn,
	},
}

// HasPermission checks if a role has a specific permission
func HasPermission(role Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}

	for _, p := range permissions {
		if p == permission {
			return true
		}
	}

	return false
}
