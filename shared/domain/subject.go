package domain

import "strings"

// Subject is the acting identity. It is built from the access token claims and
// never persisted by the engine itself.
type Subject struct {
	Id          SubjectId
	Name        SubjectName
	Permissions Permissions
	SuperAdmin  bool
}

// HasPermission reports whether the subject holds perm, case-insensitively.
func (s Subject) HasPermission(perm string) bool {
	for _, p := range s.Permissions {
		if strings.EqualFold(p, perm) {
			return true
		}
	}
	return false
}

func (s Subject) IsSuperAdmin() bool {
	return s.SuperAdmin
}
