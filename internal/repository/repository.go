package repository

import (
	"context"
	"errors"
	"time"

	"github.com/syt-tools/syt/internal/entity"
	"github.com/syt-tools/syt/internal/logging"
)

// Sentinel errors shared by all backends. Backends wrap them with detail, so
// compare with errors.Is.
var (
	// ErrNotFound is returned when an entity, view, user, or team does not exist.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict is returned when a store carries a stale version token.
	ErrVersionConflict = errors.New("version conflict")
	// ErrUnauthenticated is returned when the supplied credentials are rejected.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrUnsupportedScheme is returned by Open for an unknown DSN scheme.
	ErrUnsupportedScheme = errors.New("unsupported repository scheme")
)

// Repository is the remote entity repository. All calls are blocking and
// honour ctx cancellation.
type Repository interface {
	// GetEntity fetches an entity with its current annotations.
	GetEntity(ctx context.Context, id string) (*entity.Entity, error)
	// Store persists e. e.Version must be the version last read; the stored
	// entity with its new version is returned.
	Store(ctx context.Context, e *entity.Entity) (*entity.Entity, error)
	// ListChildren lists the direct children of a container, optionally
	// restricted to kinds.
	ListChildren(ctx context.Context, parentID string, kinds ...entity.Kind) ([]entity.ChildSummary, error)

	// GetView looks up a view by name under a project. A missing view is ErrNotFound.
	GetView(ctx context.Context, projectID, name string) (entity.ViewHandle, error)
	// CreateView creates an index view.
	CreateView(ctx context.Context, spec entity.ViewSpec) (entity.ViewHandle, error)
	// QueryView returns the view rows matching q.
	QueryView(ctx context.Context, viewID string, q entity.ViewQuery) ([]entity.Row, error)

	// GetACL returns the ACL governing an entity.
	GetACL(ctx context.Context, entityID string) (entity.ACL, error)
	// GetPermissions returns the authenticated user's effective permissions on an entity.
	GetPermissions(ctx context.Context, entityID string) ([]entity.Permission, error)
	// GetUser resolves a principal as a user. Teams are ErrNotFound.
	GetUser(ctx context.Context, principalID string) (entity.UserProfile, error)
	// GetTeamMembers lists the members of a team.
	GetTeamMembers(ctx context.Context, teamID string) ([]entity.TeamMember, error)
	// CurrentUser returns the authenticated user.
	CurrentUser(ctx context.Context) (entity.UserProfile, error)

	// Download returns the content of a file entity.
	Download(ctx context.Context, fileID string) ([]byte, error)
	// Upload writes file content, creating the file when req.ID is empty.
	Upload(ctx context.Context, req UploadRequest) (*entity.Entity, error)

	// Close releases connections held by the backend.
	Close() error
}

// UploadRequest describes content to push to a file entity.
type UploadRequest struct {
	ID       string // empty creates a new file under ParentID
	ParentID string
	Name     string
	Content  []byte
}

// ViewRefresh is how local backends keep index views in step with entities.
type ViewRefresh string

const (
	RefreshImmediate ViewRefresh = "immediate"
	RefreshManual    ViewRefresh = "manual"
)

// Options carries credentials and tuning shared by all backends.
type Options struct {
	Username string
	Password string
	Token    string

	// Timeout bounds each request. Zero uses the backend default.
	Timeout time.Duration
	// MaxRetries bounds retries of transient HTTP failures.
	MaxRetries int
	// ViewRefresh applies to the memory and file backends.
	ViewRefresh ViewRefresh

	Logger *logging.Logger
}

func (o Options) logger() *logging.Logger {
	if o.Logger == nil {
		return logging.NopLogger()
	}
	return o.Logger
}
