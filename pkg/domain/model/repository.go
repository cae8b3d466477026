package model

import (
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/tagrelease/pkg/domain/types"
)

// Repository identifies a GitHub repository
type Repository struct {
	Owner string `json:"owner" firestore:"owner"`
	Name  string `json:"name" firestore:"name"`
}

// ParseRepository parses "owner/name"
func ParseRepository(s string) (Repository, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return Repository{}, goerr.New("repository must be in owner/name form",
			goerr.V("repository", s), goerr.T(types.ErrInvalidConfig))
	}
	return Repository{Owner: owner, Name: name}, nil
}

// FullName returns "owner/name"
func (r Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// IsZero reports whether the repository is unset
func (r Repository) IsZero() bool {
	return r.Owner == "" && r.Name == ""
}

// Same compares repositories case-insensitively, as GitHub does
func (r Repository) Same(other Repository) bool {
	return strings.EqualFold(r.Owner, other.Owner) && strings.EqualFold(r.Name, other.Name)
}
