package checkout

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/gobwas/glob"

	"github.com/syt-tools/syt/internal/contentsync"
	"github.com/syt-tools/syt/internal/entity"
	syterrors "github.com/syt-tools/syt/internal/errors"
	"github.com/syt-tools/syt/internal/logging"
	"github.com/syt-tools/syt/internal/permission"
	"github.com/syt-tools/syt/internal/repository"
	"github.com/syt-tools/syt/internal/session"
	"github.com/syt-tools/syt/internal/view"
	"github.com/syt-tools/syt/internal/walk"
	"github.com/syt-tools/syt/internal/workspace"
)

// Request names the entity a command acts on.
type Request struct {
	EntityID string
	// Path is the local checkout directory used when Sync is set.
	Path  string
	Sync  bool
	Force bool
	// NameGlob limits Show to entities whose name matches.
	NameGlob string
}

// Result is the outcome of a successful Checkout or Checkin.
type Result struct {
	// Entity is the target as stored, with its new version.
	Entity   *entity.Entity
	Project  *entity.Entity
	Warnings []syterrors.Warning
	// Synced lists files downloaded by Checkout or uploaded by Checkin.
	Synced []contentsync.SyncedFile
}

// ShowResult lists the locked entities at or below the target.
type ShowResult struct {
	Entity     *entity.Entity
	Project    *entity.Entity
	CheckedOut []*entity.Entity
}

// Reporter receives progress as an operation runs.
type Reporter interface {
	Progress(msg string)
	Warn(w syterrors.Warning)
}

type nopReporter struct{}

func (nopReporter) Progress(string)        {}
func (nopReporter) Warn(syterrors.Warning) {}

// Service runs lock operations for one session.
type Service struct {
	sess     *session.Session
	logger   *logging.Logger
	views    *view.Manager
	walker   *walk.Walker
	oracle   *permission.Oracle
	syncer   *contentsync.Syncer
	ws       workspace.Workspace
	reporter Reporter
	now      func() time.Time
}

// Option configures a Service.
type Option func(*serviceConfig)

type serviceConfig struct {
	viewName     string
	manifestName string
	ws           workspace.Workspace
	reporter     Reporter
	now          func() time.Time
}

// WithViewName overrides the index view name.
func WithViewName(name string) Option {
	return func(c *serviceConfig) { c.viewName = name }
}

// WithManifestName overrides the manifest file name.
func WithManifestName(name string) Option {
	return func(c *serviceConfig) { c.manifestName = name }
}

// WithWorkspace sets the pointer file conventions.
func WithWorkspace(ws workspace.Workspace) Option {
	return func(c *serviceConfig) { c.ws = ws }
}

// WithReporter sets where progress goes.
func WithReporter(r Reporter) Option {
	return func(c *serviceConfig) {
		if r != nil {
			c.reporter = r
		}
	}
}

// WithClock sets the time source for lock dates.
func WithClock(now func() time.Time) Option {
	return func(c *serviceConfig) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a Service bound to sess.
func New(sess *session.Session, opts ...Option) *Service {
	cfg := serviceConfig{
		ws:       workspace.New("", ""),
		reporter: nopReporter{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := sess.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Service{
		sess:     sess,
		logger:   logger,
		views:    view.NewManager(sess.Repo, cfg.viewName, logger),
		walker:   walk.New(sess.Repo, logger),
		oracle:   permission.NewOracle(sess.Repo, logger),
		syncer:   contentsync.New(sess.Repo, cfg.manifestName, logger),
		ws:       cfg.ws,
		reporter: cfg.reporter,
		now:      cfg.now,
	}
}

// target is the entity an operation acts on, resolved with its project and
// index view.
type target struct {
	entity  *entity.Entity
	project *entity.Entity
	view    entity.ViewHandle
}

func (s *Service) load(ctx context.Context, id string) (*target, error) {
	if s.sess.Closed() {
		return nil, session.ErrClosed
	}
	e, err := s.sess.Repo.GetEntity(ctx, id)
	if err != nil {
		return nil, repository.Classify("get entity", id, err)
	}
	if !e.Kind.Lockable() {
		return nil, syterrors.NewValidationError("only projects, folders, and files can be checked in/out").
			WithEntity(e.ID, e.Name).
			WithField("type").
			WithValue(e.TypeName()).
			WithCause(syterrors.ErrUnsupportedKind)
	}
	project, err := s.walker.Project(ctx, e)
	if err != nil {
		return nil, err
	}
	h, err := s.views.Ensure(ctx, project)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("loaded entity", "entity_id", e.ID, "type", e.TypeName(), "project_id", project.ID)
	return &target{entity: e, project: project, view: h}, nil
}

func (s *Service) requireAdmin(ctx context.Context, t *target, action string) error {
	admin, err := s.oracle.IsProjectAdmin(ctx, s.sess.User, t.project)
	if err != nil {
		return err
	}
	if !admin {
		return syterrors.NewAuthorizationError(syterrors.AuthAdminRequired, action).
			WithEntity(t.entity.ID, t.entity.Name)
	}
	return nil
}

// override reports a conflict. With force it becomes a warning and nil is
// returned; otherwise the conflict is returned.
func (s *Service) override(res *Result, force bool, err error) error {
	if !force {
		return err
	}
	w := syterrors.Downgrade(err)
	res.Warnings = append(res.Warnings, w)
	s.reporter.Warn(w)
	s.logger.Warn("conflict overridden", "entity_id", w.EntityID, "conflict", err.Error())
	return nil
}

func conflict(kind syterrors.ConflictKind, e *entity.Entity) *syterrors.StateConflictError {
	return syterrors.NewStateConflictError(kind).
		WithEntity(e.ID, e.Name).
		WithLocker(e.Annotations.Get(entity.KeyLockerID), e.Annotations.Get(entity.KeyLockerName))
}

// Checkout locks req.EntityID for the session user.
func (s *Service) Checkout(ctx context.Context, req Request) (*Result, error) {
	s.reporter.Progress("Checking out...")
	t, err := s.load(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}
	res := &Result{Entity: t.entity, Project: t.project}
	log := s.logger.WithEntity(t.entity.ID).WithProject(t.project.ID)

	if req.Force {
		if err := s.requireAdmin(ctx, t, "check-out"); err != nil {
			return nil, err
		}
	}

	if t.entity.IsLocked() {
		if err := s.override(res, req.Force, conflict(syterrors.ConflictAlreadyCheckedOut, t.entity)); err != nil {
			return nil, err
		}
	}

	if t.entity.Kind != entity.KindProject {
		s.reporter.Progress("Checking Parent Check-outs...")
		if err := s.checkAncestors(ctx, res, t.entity, req.Force); err != nil {
			return nil, err
		}
	}

	s.reporter.Progress("Checking Child Check-outs...")
	child, err := s.walker.FirstCheckedOutDescendant(ctx, t.view, t.entity)
	if err != nil {
		return nil, err
	}
	if child != nil {
		if err := s.override(res, req.Force, conflict(syterrors.ConflictDescendant, child)); err != nil {
			return nil, err
		}
	}

	if req.Sync {
		s.reporter.Progress("Syncing Folders and Files...")
		synced, err := s.syncer.SyncDown(ctx, t.entity, req.Path)
		if err != nil {
			return nil, err
		}
		res.Synced = synced
		if err := s.ws.WritePointer(req.Path, t.entity.ID); err != nil {
			return nil, syterrors.Wrap(err, "failed to write pointer file")
		}
		log.Info("synced content down", "path", req.Path, "files", len(synced))
	}

	locked := t.entity.Clone()
	locked.ApplyLock(entity.LockRecord{
		LockerID:   s.sess.User.OwnerID,
		LockerName: s.sess.User.UserName,
		LockedAt:   s.now(),
	})
	stored, err := s.sess.Repo.Store(ctx, locked)
	if err != nil {
		return nil, repository.Classify("store lock", t.entity.ID, err)
	}
	res.Entity = stored
	log.Info("checked out", "forced", req.Force, "warnings", len(res.Warnings))
	return res, nil
}

// checkAncestors refuses a check-out below a locked Folder or Project. With
// force every locked ancestor is reported, nearest first.
func (s *Service) checkAncestors(ctx context.Context, res *Result, e *entity.Entity, force bool) error {
	if !force {
		a, err := s.walker.FirstLockedAncestor(ctx, e)
		if err != nil {
			return err
		}
		if a != nil {
			return conflict(syterrors.ConflictAncestor, a)
		}
		return nil
	}
	for a, err := range s.walker.Ancestors(ctx, e, entity.KindProject, entity.KindFolder) {
		if err != nil {
			return err
		}
		if !a.IsLocked() {
			continue
		}
		if err := s.override(res, true, conflict(syterrors.ConflictAncestor, a)); err != nil {
			return err
		}
	}
	return nil
}

// Checkin releases the lock on req.EntityID.
func (s *Service) Checkin(ctx context.Context, req Request) (*Result, error) {
	s.reporter.Progress("Checking in...")
	t, err := s.load(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}
	res := &Result{Entity: t.entity, Project: t.project}
	log := s.logger.WithEntity(t.entity.ID).WithProject(t.project.ID)

	if req.Force {
		if err := s.requireAdmin(ctx, t, "check-in"); err != nil {
			return nil, err
		}
	}

	if !t.entity.IsLocked() {
		if err := s.override(res, req.Force, conflict(syterrors.ConflictNotCheckedOut, t.entity)); err != nil {
			return nil, err
		}
	} else if !t.entity.IsLockedBy(s.sess.User.OwnerID) {
		notOwner := syterrors.NewAuthorizationError(syterrors.AuthNotOwner, "check-in").
			WithEntity(t.entity.ID, t.entity.Name).
			WithLocker(t.entity.Annotations.Get(entity.KeyLockerID), t.entity.Annotations.Get(entity.KeyLockerName))
		if err := s.override(res, req.Force, notOwner); err != nil {
			return nil, err
		}
	}

	current := t.entity
	if req.Sync {
		s.reporter.Progress("Syncing Folders and Files...")
		manifest := s.syncer.ManifestPath(req.Path)
		if _, err := os.Stat(manifest); errors.Is(err, fs.ErrNotExist) {
			w := syterrors.NewWarning("Manifest file not found in: %q. Folder/Files will not be uploaded.", req.Path)
			w.EntityID, w.EntityName = t.entity.ID, t.entity.Name
			res.Warnings = append(res.Warnings, w)
			s.reporter.Warn(w)
			log.Warn("manifest missing, skipping upload", "path", manifest)
		} else {
			synced, err := s.syncer.SyncUp(ctx, manifest)
			if err != nil {
				return nil, err
			}
			res.Synced = synced
			log.Info("synced content up", "path", req.Path, "files", len(synced))
			// Uploading can replace the target's version when it is a file.
			if current, err = s.sess.Repo.GetEntity(ctx, t.entity.ID); err != nil {
				return nil, repository.Classify("get entity", t.entity.ID, err)
			}
		}
	}

	unlocked := current.Clone()
	unlocked.ClearLock()
	stored, err := s.sess.Repo.Store(ctx, unlocked)
	if err != nil {
		return nil, repository.Classify("clear lock", t.entity.ID, err)
	}
	res.Entity = stored
	log.Info("checked in", "forced", req.Force, "warnings", len(res.Warnings))
	return res, nil
}

// Show lists locked entities. For a project this is every locked entity in
// it, the project first; otherwise it is the target when locked followed by
// its locked descendants.
func (s *Service) Show(ctx context.Context, req Request) (*ShowResult, error) {
	var match glob.Glob
	if req.NameGlob != "" {
		g, err := glob.Compile(req.NameGlob)
		if err != nil {
			return nil, syterrors.NewValidationError("invalid name pattern").
				WithField("name").WithValue(req.NameGlob).WithCause(err)
		}
		match = g
	}

	s.reporter.Progress("Loading Check-outs...")
	t, err := s.load(ctx, req.EntityID)
	if err != nil {
		return nil, err
	}
	res := &ShowResult{Entity: t.entity, Project: t.project}
	add := func(e *entity.Entity) {
		if match == nil || match.Match(e.Name) {
			res.CheckedOut = append(res.CheckedOut, e)
		}
	}

	if t.entity.Kind == entity.KindProject {
		for e, err := range s.walker.AllCheckedOut(ctx, t.view, t.entity) {
			if err != nil {
				return nil, err
			}
			add(e)
		}
		return res, nil
	}

	if t.entity.IsLocked() {
		add(t.entity)
	}
	for e, err := range s.walker.CheckedOutDescendants(ctx, t.view, t.entity) {
		if err != nil {
			return nil, err
		}
		add(e)
	}
	return res, nil
}
