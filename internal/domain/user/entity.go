package user

type Role string

const (
	RolePayrollOfficer Role = "payroll_officer" // Computes payroll runs
	RolePayrollChecker Role = "payroll_checker" // Checks computed runs
	RolePayrollAdmin   Role = "payroll_admin"   // Authorizes and processes runs
	RoleSystemAdmin    Role = "system_admin"    // Full access
	RoleEmployee       Role = "employee"        // Self-service payslips only
)

// ValidRoles lists every role a token may carry
var ValidRoles = []Role{
	RolePayrollOfficer,
	RolePayrollChecker,
	RolePayrollAdmin,
	RoleSystemAdmin,
	RoleEmployee,
}

// IsValid reports whether r is a known role
func (r Role) IsValid() bool {
	for _, v := range ValidRoles {
		if v == r {
			return true
		}
	}
	return false
}

// Identity is the caller as seen through the access token claims.
type Identity struct {
	UserID     string
	Name       string
	EmployeeID *string
	Role       Role
}

// IsZero reports whether no identity was resolved
func (i Identity) IsZero() bool {
	return i.UserID == "" && i.Role == ""
}
