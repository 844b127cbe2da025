package domain

// AllBranches is the scope marker for "every branch". It never names a real branch.
const AllBranches = "ALL"

// Branch is an administrative partition of accounts.
type Branch struct {
	Code    string `json:"code"`
	Name    string `json:"name"`
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`
}

// ConnectionTarget names the store that serves a branch.
type ConnectionTarget struct {
	Name string
	DSN  string
}

// IsAllBranches reports whether code is the ALL scope marker.
func IsAllBranches(code string) bool {
	return code == AllBranches
}
