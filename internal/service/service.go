// ============================================================================
// UWS Core — Service (C7)
// ============================================================================
//
// Package: internal/service
// File: service.go
// Purpose: The root container binding every named JobList to the shared
//          external collaborators (§4.7).
//
// Grounding:
//   Mirrors the teacher's Controller (internal/controller/controller.go):
//   one root type coordinating sub-managers, a crash-recovery Start() that
//   restores from persisted state before accepting new work, and a Stop()
//   that halts scheduling before taking a final snapshot. Here "WAL replay"
//   becomes "restore every persisted JobSnapshot with force=true phase
//   restoration", since the core has no on-disk format of its own — that is
//   BackupManager's contract to fulfill (§4.8).
//
// ============================================================================

package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/gmantele/vollt-uws/internal/contracts"
	"github.com/gmantele/vollt-uws/internal/joblist"
	"github.com/gmantele/vollt-uws/pkg/uws"
)

// Config collects a Service's collaborators and named lists (§4.7).
type Config struct {
	FileManager    contracts.FileManager
	BackupManager  contracts.BackupManager
	UserIdentifier contracts.UserIdentifier
	Logger         contracts.Logger
}

// Service is the root container of every JobList in the application (§4.7).
type Service struct {
	cfg Config

	mu    sync.RWMutex
	lists map[string]*joblist.JobList
}

// New constructs an empty Service.
func New(cfg Config) *Service {
	return &Service{cfg: cfg, lists: make(map[string]*joblist.JobList)}
}

// RegisterList adds a named JobList to the service. Registration must
// happen before Start restores any backed-up jobs into it.
func (s *Service) RegisterList(l *joblist.JobList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lists[l.Name()] = l
}

// JobList returns the named list, or nil if unregistered.
func (s *Service) JobList(name string) *joblist.JobList {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lists[name]
}

// SnapshotsByList returns every registered list's current jobs, keyed by
// list name, for wiring into a BackupManager's snapshot source (§4.8).
func (s *Service) SnapshotsByList() map[string][]uws.JobSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string][]uws.JobSnapshot, len(s.lists))
	for name, l := range s.lists {
		out[name] = l.Snapshots()
	}
	return out
}

// ListNames returns every registered list's name.
func (s *Service) ListNames() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.lists))
	for name := range s.lists {
		out = append(out, name)
	}
	return out
}

// Start restores every previously backed-up job into its list, force-
// restoring whatever phase each was in at backup time (§4.7 recovery
// path). It is a no-op if no BackupManager is configured.
func (s *Service) Start(ctx context.Context) error {
	if s.cfg.BackupManager == nil {
		return nil
	}
	byList, err := s.cfg.BackupManager.RestoreAll(ctx)
	if err != nil {
		return fmt.Errorf("uws: restoring backups: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for listName, snapshots := range byList {
		l, ok := s.lists[listName]
		if !ok {
			s.logWarn("restore", fmt.Sprintf("backup references unknown list %q, skipping %d jobs", listName, len(snapshots)))
			continue
		}
		for _, snap := range snapshots {
			job, err := uws.RestoreJob(snap, nil, l.Controllers())
			if err != nil {
				s.logWarn("restore", fmt.Sprintf("job %s: %v", snap.ID, err))
				continue
			}
			if err := l.AddJob(job); err != nil {
				s.logWarn("restore", fmt.Sprintf("job %s: re-insertion failed: %v", snap.ID, err))
			}
		}
	}
	return nil
}

// Stop halts every list's scheduling and aborts running jobs, then flushes
// a final backup if a BackupManager is configured (§4.7 shutdown path).
func (s *Service) Stop(ctx context.Context) error {
	s.mu.RLock()
	lists := make([]*joblist.JobList, 0, len(s.lists))
	for _, l := range s.lists {
		lists = append(lists, l)
	}
	s.mu.RUnlock()

	for _, l := range lists {
		l.Stop()
	}

	if s.cfg.BackupManager == nil {
		return nil
	}
	if err := s.cfg.BackupManager.SaveAll(ctx); err != nil {
		return fmt.Errorf("uws: final backup: %w", err)
	}
	return nil
}

func (s *Service) logWarn(event, message string) {
	if s.cfg.Logger == nil {
		return
	}
	s.cfg.Logger.Log(contracts.WARNING, event, message, nil)
}
