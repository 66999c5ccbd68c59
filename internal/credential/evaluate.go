package credential

import (
	"strings"
	"unicode"

	"github.com/ssocore/platform/internal/apperr"
)

// commonPasswords is a small seed list of widely-breached passwords. A real
// deployment would load a much larger corpus; the core only needs the
// matching mechanism to be correct, not the list to be exhaustive.
var commonPasswords = map[string]struct{}{
	"password": {}, "password1": {}, "123456": {}, "12345678": {},
	"qwerty": {}, "letmein": {}, "admin": {}, "welcome": {},
	"monkey": {}, "dragon": {}, "iloveyou": {}, "football": {},
}

// Evaluation is the spec §4.3 policy-check result.
type Evaluation struct {
	Valid         bool
	Errors        []string
	StrengthScore int // 0..100
}

// Evaluate checks a candidate password against a policy and scores its
// strength, spec §4.3.
func Evaluate(policy Policy, password string) Evaluation {
	var errs []string

	if len(password) < policy.MinLength {
		errs = append(errs, "password is shorter than the minimum length")
	}
	if len(password) > policy.MaxLength {
		errs = append(errs, "password exceeds the maximum length")
	}

	classes := classify(password)
	if policy.RequireUpper && classes.upper == 0 {
		errs = append(errs, "password must contain an uppercase letter")
	}
	if policy.RequireLower && classes.lower == 0 {
		errs = append(errs, "password must contain a lowercase letter")
	}
	if policy.RequireDigit && classes.digit == 0 {
		errs = append(errs, "password must contain a digit")
	}
	if policy.RequireSpecial && classes.special < policy.MinSpecial {
		errs = append(errs, "password does not contain enough special characters")
	}
	if classes.classCount() < policy.MinCharClasses {
		errs = append(errs, "password does not use enough distinct character classes")
	}

	lower := strings.ToLower(password)
	if policy.DisallowCommon {
		if _, found := commonPasswords[lower]; found {
			errs = append(errs, "password is a commonly breached password")
		}
	}
	if policy.DisallowRepeated && hasRepeatedRun(password, 3) {
		errs = append(errs, "password contains a repeated character run")
	}
	if policy.DisallowSequential && hasSequentialRun(lower, 3) {
		errs = append(errs, "password contains a monotonic sequence")
	}
	for _, word := range policy.CustomDictionary {
		if word == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(word)) {
			errs = append(errs, "password contains a disallowed word")
			break
		}
	}

	return Evaluation{
		Valid:         len(errs) == 0,
		Errors:        errs,
		StrengthScore: score(password, classes, lower),
	}
}

type charClasses struct {
	upper, lower, digit, special int
}

func (c charClasses) classCount() int {
	n := 0
	if c.upper > 0 {
		n++
	}
	if c.lower > 0 {
		n++
	}
	if c.digit > 0 {
		n++
	}
	if c.special > 0 {
		n++
	}
	return n
}

func classify(password string) charClasses {
	var c charClasses
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			c.upper++
		case unicode.IsLower(r):
			c.lower++
		case unicode.IsDigit(r):
			c.digit++
		case unicode.IsSpace(r):
			// whitespace counts toward neither class nor penalty
		default:
			c.special++
		}
	}
	return c
}

func hasRepeatedRun(s string, runLen int) bool {
	if len(s) < runLen {
		return false
	}
	run := 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1] {
			run++
			if run >= runLen {
				return true
			}
		} else {
			run = 1
		}
	}
	return false
}

// hasSequentialRun detects ascending or descending monotonic runs of
// adjacent-codepoint characters, e.g. "abc" or "321".
func hasSequentialRun(s string, runLen int) bool {
	if len(s) < runLen {
		return false
	}
	ascend, descend := 1, 1
	for i := 1; i < len(s); i++ {
		if s[i] == s[i-1]+1 {
			ascend++
			descend = 1
		} else if s[i] == s[i-1]-1 {
			descend++
			ascend = 1
		} else {
			ascend, descend = 1, 1
		}
		if ascend >= runLen || descend >= runLen {
			return true
		}
	}
	return false
}

func score(password string, c charClasses, lower string) int {
	s := 0
	s += len(password) * 2
	if c.classCount() >= 1 {
		s += 5 * c.classCount()
	}
	if len(password) >= 16 {
		s += 10
	}
	if len(password) >= 20 {
		s += 10
	}
	if _, found := commonPasswords[lower]; found {
		s -= 40
	}
	if hasRepeatedRun(password, 3) {
		s -= 15
	}
	if hasSequentialRun(lower, 3) {
		s -= 15
	}
	if s < 0 {
		s = 0
	}
	if s > 100 {
		s = 100
	}
	return s
}

// ErrWeakPassword is returned by callers that want a typed sentinel rather
// than inspecting Evaluation.Errors.
var ErrWeakPassword = apperr.New(apperr.KindPasswordPolicyViolation, "password does not satisfy policy")
