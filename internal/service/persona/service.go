// Package persona persists custom personas next to the built-in catalogue.
package persona

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zhouzirui/z-mentor/backend/internal/model/persona"
	"github.com/zhouzirui/z-mentor/backend/internal/observability"
	"github.com/zhouzirui/z-mentor/backend/internal/storage/kv"
)

// CustomKey is the collection holding every user-defined persona.
const CustomKey = "personas:custom"

// Service implements persona.Store over a kv.Store.
type Service struct {
	store  kv.Store
	locks  *kv.KeyLocker
	logger *zap.Logger
}

var _ persona.Store = (*Service)(nil)

// NewService 创建persona服务
func NewService(store kv.Store, locks *kv.KeyLocker, logger *zap.Logger) *Service {
	if locks == nil {
		locks = kv.NewKeyLocker()
	}
	return &Service{
		store:  store,
		locks:  locks,
		logger: observability.Named(logger, "persona"),
	}
}

// List returns built-ins in table order followed by custom personas sorted by id.
// A custom persona sharing a built-in id replaces it in place.
func (s *Service) List(ctx context.Context) []persona.Profile {
	custom, err := s.loadCustom(ctx)
	if err != nil {
		s.logger.Warn("failed to load custom personas, serving built-ins only", zap.Error(err))
	}

	byID := make(map[string]persona.Profile, len(custom))
	for _, p := range custom {
		byID[p.ID] = p
	}

	builtins := persona.Seed()
	out := make([]persona.Profile, 0, len(builtins)+len(custom))
	for _, p := range builtins {
		if override, ok := byID[p.ID]; ok {
			out = append(out, override)
			delete(byID, p.ID)
			continue
		}
		out = append(out, p)
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

// Lookup finds id without falling back.
func (s *Service) Lookup(ctx context.Context, id string) (persona.Profile, bool) {
	for _, p := range s.List(ctx) {
		if p.ID == id {
			return p, true
		}
	}
	return persona.Profile{}, false
}

// Get resolves id, then DefaultID, then the first available persona.
func (s *Service) Get(ctx context.Context, id string) persona.Profile {
	all := s.List(ctx)
	for _, want := range []string{id, persona.DefaultID} {
		for _, p := range all {
			if p.ID == want {
				return p
			}
		}
	}
	if id != "" {
		s.logger.Debug("persona not found, using first available", zap.String("persona_id", id))
	}
	return all[0]
}

// Save upserts a custom persona. The stored copy is always marked custom.
func (s *Service) Save(ctx context.Context, profile persona.Profile) (persona.Profile, error) {
	profile.Name = strings.TrimSpace(profile.Name)
	if profile.Name == "" {
		return persona.Profile{}, persona.ErrNameRequired
	}
	profile.ID = strings.TrimSpace(profile.ID)
	if profile.ID == "" {
		profile.ID = uuid.NewString()
	}
	profile.IsCustom = true

	unlock := s.locks.Lock(CustomKey)
	defer unlock()

	custom, err := s.loadCustom(ctx)
	if err != nil {
		return persona.Profile{}, err
	}

	replaced := false
	for i := range custom {
		if custom[i].ID == profile.ID {
			custom[i] = profile
			replaced = true
			break
		}
	}
	if !replaced {
		custom = append(custom, profile)
	}

	if err := kv.SetJSON(ctx, s.store, CustomKey, custom); err != nil {
		return persona.Profile{}, fmt.Errorf("save persona %s: %w", profile.ID, err)
	}
	s.logger.Info("persona saved", zap.String("persona_id", profile.ID), zap.Bool("replaced", replaced))
	return profile, nil
}

// Delete removes a custom persona. Built-ins are protected; unknown ids are a no-op.
func (s *Service) Delete(ctx context.Context, id string) error {
	if persona.IsBuiltin(id) {
		return &persona.ProtectedResourceError{ID: id}
	}

	unlock := s.locks.Lock(CustomKey)
	defer unlock()

	custom, err := s.loadCustom(ctx)
	if err != nil {
		return err
	}

	kept := custom[:0]
	for _, p := range custom {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(custom) {
		return nil
	}

	if err := kv.SetJSON(ctx, s.store, CustomKey, kept); err != nil {
		return fmt.Errorf("delete persona %s: %w", id, err)
	}
	s.logger.Info("persona deleted", zap.String("persona_id", id))
	return nil
}

func (s *Service) loadCustom(ctx context.Context) ([]persona.Profile, error) {
	var custom []persona.Profile
	if _, err := kv.GetJSON(ctx, s.store, CustomKey, &custom); err != nil {
		return nil, fmt.Errorf("load custom personas: %w", err)
	}
	return custom, nil
}
