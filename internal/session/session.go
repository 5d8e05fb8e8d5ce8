// Package session holds the state shared by one syt invocation: the
// authenticated user, the repository connection, and the logger.
//
// A Session is opened once per command and closed when the command returns.
// Nothing in it is global.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/syt-tools/syt/internal/entity"
	"github.com/syt-tools/syt/internal/logging"
	"github.com/syt-tools/syt/internal/repository"
)

// ErrClosed is returned by operations on a closed Session.
var ErrClosed = errors.New("session closed")

// Session is an authenticated connection to a repository.
type Session struct {
	User   entity.UserProfile
	Repo   repository.Repository
	Logger *logging.Logger

	mu     sync.Mutex
	closed bool
}

// Open authenticates against repo and returns a Session that owns it. repo is
// closed when authentication fails.
func Open(ctx context.Context, repo repository.Repository, logger *logging.Logger) (*Session, error) {
	if logger == nil {
		logger = logging.NopLogger()
	}
	user, err := repo.CurrentUser(ctx)
	if err != nil {
		_ = repo.Close()
		return nil, repository.Classify("log in", "", err)
	}
	logger.Info("session opened", "user_id", user.OwnerID, "user_name", user.UserName)
	return &Session{
		User:   user,
		Repo:   repo,
		Logger: logger.With("user_id", user.OwnerID),
	}, nil
}

// Dial opens the repository named by dsn and authenticates.
func Dial(ctx context.Context, dsn string, opts repository.Options) (*Session, error) {
	repo, err := repository.Open(dsn, opts)
	if err != nil {
		return nil, err
	}
	return Open(ctx, repo, opts.Logger)
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the repository. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.Logger.Debug("session closed")
	return s.Repo.Close()
}
