package backups

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/slok/opstrack/internal/log"
	"github.com/slok/opstrack/internal/model"
)

// Lister knows how to list the server backups.
type Lister interface {
	ListBackups(ctx context.Context) ([]model.Backup, error)
}

// ServiceConfig is the configuration for the backups service.
type ServiceConfig struct {
	API    Lister
	Logger log.Logger
}

func (c *ServiceConfig) defaults() error {
	if c.API == nil {
		return fmt.Errorf("api is required")
	}

	if c.Logger == nil {
		c.Logger = log.Noop
	}

	return nil
}

// Service lists the available backups.
type Service struct {
	api    Lister
	logger log.Logger
}

// NewService creates a new backups service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Service{
		api:    cfg.API,
		logger: cfg.Logger,
	}, nil
}

// Request represents the backups request parameters.
type Request struct {
	// Prefix is an optional name prefix filter.
	Prefix string
}

// Run returns the backups, newest first.
func (s *Service) Run(ctx context.Context, req Request) ([]model.Backup, error) {
	backups, err := s.api.ListBackups(ctx)
	if err != nil {
		return nil, fmt.Errorf("could not list backups: %w", err)
	}

	if req.Prefix != "" {
		filtered := make([]model.Backup, 0, len(backups))
		for _, b := range backups {
			if strings.HasPrefix(b.Name, req.Prefix) {
				filtered = append(filtered, b)
			}
		}
		backups = filtered
	}

	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].CreatedAt.After(backups[j].CreatedAt)
	})

	s.logger.Debugf("found %d backups", len(backups))
	return backups, nil
}
