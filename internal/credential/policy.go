// Package credential implements the Credential Service (spec §4.3):
// password policy definition/evaluation and password hashing.
//
// Grounded on the teacher's internal/auth/password.go (PasswordHasher
// interface shape) and on the original policy templates in
// auth-core/src/models/password_policy.rs.
package credential

// Policy mirrors the original password_policy.rs PasswordPolicyRules, with
// field names adapted to Go conventions.
type Policy struct {
	MinLength      int
	MaxLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
	MinSpecial     int
	MinCharClasses int

	DisallowCommon     bool
	DisallowRepeated   bool
	DisallowSequential bool

	MaxAgeDays     int // 0 = no max age
	HistoryCount   int
	MinAgeHours    int // 0 = no minimum age

	LockoutThreshold       int
	LockoutDurationMinutes int

	CustomDictionary []string
}

// Enterprise is the default policy (equivalent to the original's
// PasswordPolicyRules::default, also its "enterprise" template).
func Enterprise() Policy {
	return Policy{
		MinLength: 12, MaxLength: 128,
		RequireUpper: true, RequireLower: true, RequireDigit: true, RequireSpecial: true,
		MinSpecial: 2, MinCharClasses: 3,
		DisallowCommon: true, DisallowRepeated: true, DisallowSequential: true,
		MaxAgeDays: 90, HistoryCount: 12, MinAgeHours: 24,
		LockoutThreshold: 5, LockoutDurationMinutes: 30,
	}
}

// Basic is a reduced policy for low-security environments.
func Basic() Policy {
	return Policy{
		MinLength: 8, MaxLength: 128,
		RequireUpper: true, RequireLower: true, RequireDigit: true, RequireSpecial: false,
		MinSpecial: 0, MinCharClasses: 3,
		DisallowCommon: true, DisallowRepeated: false, DisallowSequential: false,
		MaxAgeDays: 180, HistoryCount: 3, MinAgeHours: 0,
		LockoutThreshold: 10, LockoutDurationMinutes: 15,
	}
}

// HighSecurity tightens every dimension for sensitive environments.
func HighSecurity() Policy {
	return Policy{
		MinLength: 16, MaxLength: 128,
		RequireUpper: true, RequireLower: true, RequireDigit: true, RequireSpecial: true,
		MinSpecial: 3, MinCharClasses: 4,
		DisallowCommon: true, DisallowRepeated: true, DisallowSequential: true,
		MaxAgeDays: 60, HistoryCount: 24, MinAgeHours: 48,
		LockoutThreshold: 3, LockoutDurationMinutes: 60,
	}
}

// Compliance targets regulated industries (HIPAA, PCI-DSS-style tiering).
func Compliance() Policy {
	return Policy{
		MinLength: 14, MaxLength: 128,
		RequireUpper: true, RequireLower: true, RequireDigit: true, RequireSpecial: true,
		MinSpecial: 2, MinCharClasses: 4,
		DisallowCommon: true, DisallowRepeated: true, DisallowSequential: true,
		MaxAgeDays: 90, HistoryCount: 12, MinAgeHours: 24,
		LockoutThreshold: 5, LockoutDurationMinutes: 30,
	}
}

// Template resolves one of the four named policy templates, spec §4.3.
func Template(name string) (Policy, bool) {
	switch name {
	case "basic":
		return Basic(), true
	case "enterprise":
		return Enterprise(), true
	case "high_security":
		return HighSecurity(), true
	case "compliance":
		return Compliance(), true
	default:
		return Policy{}, false
	}
}
