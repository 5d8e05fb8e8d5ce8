// Package walk finds lock conflicts in the entity tree.
//
// Ancestors follow parent links one hop at a time and stop at the project.
// Descendants are expanded level by level through the project's index view,
// so a subtree costs one query per container instead of one fetch per entity.
// Every locked entity found through the index is re-read from the repository
// before it is yielded, because the index may lag.
//
// All walks are lazy iter.Seq2 sequences: callers range over them and break
// to stop early. Each sequence is restartable and issues its queries afresh.
package walk

import (
	"context"
	"fmt"
	"iter"
	"slices"

	"github.com/syt-tools/syt/internal/entity"
	syterrors "github.com/syt-tools/syt/internal/errors"
	"github.com/syt-tools/syt/internal/logging"
	"github.com/syt-tools/syt/internal/repository"
)

// Walker runs tree walks against a repository.
type Walker struct {
	repo   repository.Repository
	logger *logging.Logger
}

// New creates a Walker.
func New(repo repository.Repository, logger *logging.Logger) *Walker {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Walker{repo: repo, logger: logger}
}

// Ancestors yields the ancestors of e whose kind is in kinds (all kinds when
// none are given), nearest first. The walk ends at the project, which is
// yielded when requested; a project has no ancestors.
func (w *Walker) Ancestors(ctx context.Context, e *entity.Entity, kinds ...entity.Kind) iter.Seq2[*entity.Entity, error] {
	return func(yield func(*entity.Entity, error) bool) {
		if e.Kind == entity.KindProject {
			return
		}
		seen := map[string]bool{e.ID: true}
		child := e
		for {
			if child.ParentID == "" {
				yield(nil, brokenTree(child, "has no parent"))
				return
			}
			if seen[child.ParentID] {
				yield(nil, brokenTree(child, fmt.Sprintf("parent %s forms a cycle", child.ParentID)))
				return
			}
			parent, err := w.repo.GetEntity(ctx, child.ParentID)
			if err != nil {
				yield(nil, repository.Classify("get parent", child.ParentID, err))
				return
			}
			seen[parent.ID] = true
			if len(kinds) == 0 || slices.Contains(kinds, parent.Kind) {
				if !yield(parent, nil) {
					return
				}
			}
			if parent.Kind == entity.KindProject {
				return
			}
			if !parent.Kind.Container() {
				yield(nil, brokenTree(child, fmt.Sprintf("parent %s is a %s", parent.ID, parent.TypeName())))
				return
			}
			child = parent
		}
	}
}

func brokenTree(e *entity.Entity, detail string) error {
	return syterrors.NewValidationError(fmt.Sprintf("%s %s", e.TypeName(), detail)).
		WithEntity(e.ID, e.Name).
		WithCause(syterrors.ErrBrokenTree)
}

// Project resolves the project that owns e. A project resolves to itself.
func (w *Walker) Project(ctx context.Context, e *entity.Entity) (*entity.Entity, error) {
	if e.Kind == entity.KindProject {
		return e, nil
	}
	for p, err := range w.Ancestors(ctx, e, entity.KindProject) {
		if err != nil {
			return nil, err
		}
		return p, nil
	}
	return nil, brokenTree(e, "is not inside a project")
}

// FirstLockedAncestor returns the nearest locked Folder or Project above e,
// or nil when there is none.
func (w *Walker) FirstLockedAncestor(ctx context.Context, e *entity.Entity) (*entity.Entity, error) {
	for a, err := range w.Ancestors(ctx, e, entity.KindProject, entity.KindFolder) {
		if err != nil {
			return nil, err
		}
		if a.IsLocked() {
			return a, nil
		}
	}
	return nil, nil
}

// CheckedOutDescendants yields the locked Folders and Files strictly below
// root, breadth first.
func (w *Walker) CheckedOutDescendants(ctx context.Context, view entity.ViewHandle, root *entity.Entity) iter.Seq2[*entity.Entity, error] {
	return func(yield func(*entity.Entity, error) bool) {
		if !root.Kind.Container() {
			return
		}
		queue := []string{root.ID}
		seen := map[string]bool{root.ID: true}
		for len(queue) > 0 {
			parentID := queue[0]
			queue = queue[1:]

			rows, err := w.repo.QueryView(ctx, view.ID, entity.ViewQuery{ParentID: parentID})
			if err != nil {
				yield(nil, repository.Classify("query index view", parentID, err))
				return
			}
			for _, row := range rows {
				if row.Locked() {
					e, ok, err := w.confirm(ctx, row)
					if err != nil {
						yield(nil, err)
						return
					}
					if ok && !yield(e, nil) {
						return
					}
				}
				if row.Kind == entity.KindFolder && !seen[row.ID] {
					seen[row.ID] = true
					queue = append(queue, row.ID)
				}
			}
		}
	}
}

// FirstCheckedOutDescendant returns the first locked entity below root in
// breadth-first order, or nil when there is none.
func (w *Walker) FirstCheckedOutDescendant(ctx context.Context, view entity.ViewHandle, root *entity.Entity) (*entity.Entity, error) {
	for d, err := range w.CheckedOutDescendants(ctx, view, root) {
		if err != nil {
			return nil, err
		}
		return d, nil
	}
	return nil, nil
}

// AllCheckedOut yields every locked entity of a project: the project itself
// first when it is locked, then every locked Folder and File found by a single
// index query.
func (w *Walker) AllCheckedOut(ctx context.Context, view entity.ViewHandle, project *entity.Entity) iter.Seq2[*entity.Entity, error] {
	return func(yield func(*entity.Entity, error) bool) {
		// The project has no index row.
		current, err := w.repo.GetEntity(ctx, project.ID)
		if err != nil {
			yield(nil, repository.Classify("get project", project.ID, err))
			return
		}
		if current.IsLocked() && !yield(current, nil) {
			return
		}

		rows, err := w.repo.QueryView(ctx, view.ID, entity.ViewQuery{LockedOnly: true})
		if err != nil {
			yield(nil, repository.Classify("query index view", project.ID, err))
			return
		}
		for _, row := range rows {
			e, ok, err := w.confirm(ctx, row)
			if err != nil {
				yield(nil, err)
				return
			}
			if ok && !yield(e, nil) {
				return
			}
		}
	}
}

// confirm re-reads the entity behind a locked index row. It reports false
// when the lock is already gone, or when the entity was deleted since the
// index was refreshed.
func (w *Walker) confirm(ctx context.Context, row entity.Row) (*entity.Entity, bool, error) {
	e, err := w.repo.GetEntity(ctx, row.ID)
	if err != nil {
		classified := repository.Classify("get entity", row.ID, err)
		var notFound *syterrors.NotFoundError
		if syterrors.As(classified, &notFound) {
			w.logger.Debug("index row has no entity", "entity_id", row.ID)
			return nil, false, nil
		}
		return nil, false, classified
	}
	if !e.IsLocked() {
		w.logger.Debug("index row shows a released lock", "entity_id", row.ID, "locker_id", row.LockerID)
		return nil, false, nil
	}
	return e, true, nil
}
