// Package view manages the per-project index view used for conflict
// detection. The view mirrors every Folder and File of a project together
// with its lock annotations, so that locked descendants can be found with a
// few queries instead of a full tree walk.
package view

import (
	"context"
	"errors"
	"sync"

	"github.com/syt-tools/syt/internal/entity"
	"github.com/syt-tools/syt/internal/logging"
	"github.com/syt-tools/syt/internal/repository"
)

// DefaultName is the name of the index view created under each project.
const DefaultName = "syt"

// Row is one index view row.
type Row = entity.Row

// Columns returns the column set of the index view.
func Columns() []entity.Column {
	return []entity.Column{
		{Name: "id", Type: entity.ColumnEntityID},
		{Name: "parentId", Type: entity.ColumnEntityID},
		{Name: "projectId", Type: entity.ColumnEntityID},
		{Name: "type", Type: entity.ColumnString, MaxLength: 50},
		{Name: "name", Type: entity.ColumnString, MaxLength: 256},
		{Name: entity.KeyLockerID, Type: entity.ColumnString, MaxLength: 256},
		{Name: entity.KeyLockerName, Type: entity.ColumnString, MaxLength: 256},
		{Name: entity.KeyLockedAt, Type: entity.ColumnDate},
	}
}

// Manager finds or creates the index view of a project. Handles are cached
// per project for the lifetime of the Manager.
type Manager struct {
	repo   repository.Repository
	name   string
	logger *logging.Logger

	mu      sync.Mutex
	handles map[string]entity.ViewHandle
}

// NewManager creates a Manager. An empty name uses DefaultName.
func NewManager(repo repository.Repository, name string, logger *logging.Logger) *Manager {
	if name == "" {
		name = DefaultName
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Manager{
		repo:    repo,
		name:    name,
		logger:  logger,
		handles: make(map[string]entity.ViewHandle),
	}
}

// Name returns the view name the manager looks up.
func (m *Manager) Name() string {
	return m.name
}

// Ensure returns the index view of project, creating it when the project has
// none yet. Any lookup failure other than not-found is returned.
func (m *Manager) Ensure(ctx context.Context, project *entity.Entity) (entity.ViewHandle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if h, ok := m.handles[project.ID]; ok {
		return h, nil
	}

	h, err := m.repo.GetView(ctx, project.ID, m.name)
	switch {
	case err == nil:
		m.logger.Debug("found index view", "project_id", project.ID, "view_id", h.ID)
	case errors.Is(err, repository.ErrNotFound):
		h, err = m.repo.CreateView(ctx, entity.ViewSpec{
			Name:      m.name,
			ProjectID: project.ID,
			Scope:     []string{project.ID},
			Kinds:     []entity.Kind{entity.KindFolder, entity.KindFile},
			Columns:   Columns(),
		})
		if err != nil {
			return entity.ViewHandle{}, repository.Classify("create index view", project.ID, err)
		}
		m.logger.Info("created index view", "project_id", project.ID, "view_id", h.ID)
	default:
		return entity.ViewHandle{}, repository.Classify("look up index view", project.ID, err)
	}

	m.handles[project.ID] = h
	return h, nil
}
