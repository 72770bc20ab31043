package service

import (
	"fmt"

	"github.com/geocoder89/bugzapp/internal/domain/bug"
	"github.com/geocoder89/bugzapp/internal/identity"
)

// Policy decides who may partially update or delete a bug. Status changes
// always require the reporter or an admin.
type Policy string

const (
	// any authenticated caller
	PolicyToken Policy = "token"
	// the reporter or an admin
	PolicyOwnerOrAdmin Policy = "owner_or_admin"
)

func ParsePolicy(raw string) (Policy, error) {
	switch Policy(raw) {
	case PolicyToken, PolicyOwnerOrAdmin:
		return Policy(raw), nil
	case "":
		return PolicyToken, nil
	default:
		return "", fmt.Errorf("unknown bug mutation policy %q", raw)
	}
}

func canModify(who identity.Identity, b bug.BugReport) bool {
	return who.IsAdmin() || b.OwnedBy(who.ID)
}
