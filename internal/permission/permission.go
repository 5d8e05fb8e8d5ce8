// Package permission decides whether a user administers a project.
package permission

import (
	"context"
	"errors"
	"sync"

	"github.com/syt-tools/syt/internal/entity"
	"github.com/syt-tools/syt/internal/logging"
	"github.com/syt-tools/syt/internal/repository"
)

type cacheKey struct {
	userID    string
	projectID string
}

// Oracle answers project-admin questions. Answers are cached for the life of
// the Oracle, which is one command invocation.
type Oracle struct {
	repo   repository.Repository
	logger *logging.Logger

	mu    sync.Mutex
	cache map[cacheKey]bool
}

// NewOracle creates an Oracle.
func NewOracle(repo repository.Repository, logger *logging.Logger) *Oracle {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Oracle{repo: repo, logger: logger, cache: make(map[cacheKey]bool)}
}

// IsProjectAdmin reports whether user holds the full administrative
// permission set on project, either directly or through a team listed on the
// project's ACL. A principal that cannot be resolved as a user is treated as
// a team; any other lookup failure is returned.
func (o *Oracle) IsProjectAdmin(ctx context.Context, user entity.UserProfile, project *entity.Entity) (bool, error) {
	key := cacheKey{userID: user.OwnerID, projectID: project.ID}
	o.mu.Lock()
	defer o.mu.Unlock()
	if admin, ok := o.cache[key]; ok {
		return admin, nil
	}

	admin, err := o.isProjectAdmin(ctx, user, project)
	if err != nil {
		return false, err
	}
	o.cache[key] = admin
	o.logger.Debug("resolved project admin", "project_id", project.ID, "user_id", user.OwnerID, "admin", admin)
	return admin, nil
}

func (o *Oracle) isProjectAdmin(ctx context.Context, user entity.UserProfile, project *entity.Entity) (bool, error) {
	perms, err := o.repo.GetPermissions(ctx, project.ID)
	if err != nil {
		return false, repository.Classify("get permissions", project.ID, err)
	}
	if entity.IsAdminSet(perms) {
		return true, nil
	}

	acl, err := o.repo.GetACL(ctx, project.ID)
	if err != nil {
		return false, repository.Classify("get acl", project.ID, err)
	}
	for _, entry := range acl.Entries {
		_, err := o.repo.GetUser(ctx, entry.PrincipalID)
		if err == nil {
			// A user entry; the direct check above already covered it.
			continue
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return false, repository.Classify("get user", entry.PrincipalID, err)
		}
		if !entity.IsAdminSet(entry.AccessTypes) {
			continue
		}

		members, err := o.repo.GetTeamMembers(ctx, entry.PrincipalID)
		if err != nil {
			return false, repository.Classify("get team members", entry.PrincipalID, err)
		}
		for _, m := range members {
			if m.OwnerID == user.OwnerID {
				return true, nil
			}
		}
	}
	return false, nil
}
