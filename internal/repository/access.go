package repository

import (
	"slices"

	"golang.org/x/crypto/bcrypt"

	"github.com/syt-tools/syt/internal/entity"
)

// lockedHash is stored for a password that could not be hashed. It is not a
// valid bcrypt hash, so no password matches it.
const lockedHash = "!"

// HashPassword returns the bcrypt hash stored for a user's password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// checkPassword reports whether password matches the stored hash. An empty
// hash accepts any password.
func checkPassword(hash, password string) bool {
	if hash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// effectivePermissions unions the access granted to userID by acl, either
// directly or through any team the user belongs to.
func effectivePermissions(acl entity.ACL, userID string, memberOf func(teamID string) bool) []entity.Permission {
	var perms []entity.Permission
	for _, entry := range acl.Entries {
		if entry.PrincipalID == userID || memberOf(entry.PrincipalID) {
			perms = append(perms, entry.AccessTypes...)
		}
	}
	slices.Sort(perms)
	return slices.Compact(perms)
}
