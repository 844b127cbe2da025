package domain

import "regexp"

var (
	accountNumberRe = regexp.MustCompile(`^[A-Z0-9]{9}$`)
	customerIDRe    = regexp.MustCompile(`^[0-9]{10}$`)
	branchCodeRe    = regexp.MustCompile(`^[A-Z0-9]{1,10}$`)
)

// ValidAccountNumber reports whether s is 9 uppercase letters or digits.
func ValidAccountNumber(s string) bool { return accountNumberRe.MatchString(s) }

// ValidCustomerID reports whether s is 10 digits.
func ValidCustomerID(s string) bool { return customerIDRe.MatchString(s) }

// ValidBranchCode reports whether s could name a real branch. ALL is a scope, not a branch.
func ValidBranchCode(s string) bool {
	return branchCodeRe.MatchString(s) && !IsAllBranches(s)
}
