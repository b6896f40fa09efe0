// Package handlertest wires in-memory services for HTTP handler tests.
package handlertest

import (
	"context"
	"sync"

	"github.com/zhouzirui/z-mentor/backend/internal/service/ai"
	chatService "github.com/zhouzirui/z-mentor/backend/internal/service/chat"
	"github.com/zhouzirui/z-mentor/backend/internal/service/memory"
	personaService "github.com/zhouzirui/z-mentor/backend/internal/service/persona"
	plannerService "github.com/zhouzirui/z-mentor/backend/internal/service/planner"
	profileService "github.com/zhouzirui/z-mentor/backend/internal/service/profile"
	"github.com/zhouzirui/z-mentor/backend/internal/storage/kv"
)

// Completer returns a fixed reply or error and counts calls.
type Completer struct {
	mu    sync.Mutex
	Reply string
	Err   error
	calls int
}

func (c *Completer) Complete(context.Context, ai.CompletionRequest) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.Reply, c.Err
}

func (c *Completer) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type Fixture struct {
	Store     *kv.MemoryStore
	Chat      *chatService.Service
	Personas  *personaService.Service
	Planner   *plannerService.Service
	Profiles  *profileService.Service
	Completer *Completer
}

// New builds the full service graph over an in-memory store.
func New(reply string) *Fixture {
	store := kv.NewMemoryStore()
	locks := kv.NewKeyLocker()
	completer := &Completer{Reply: reply}

	personas := personaService.NewService(store, locks, nil)
	mem := memory.NewService(store, locks, memory.Config{}, nil, nil)
	plans := plannerService.NewService(store, locks, nil, nil)
	profiles := profileService.NewService(store, locks, completer, profileService.Config{}, nil, nil)

	chat := chatService.NewService(chatService.Dependencies{
		Store:     store,
		Locks:     locks,
		Personas:  personas,
		Memory:    mem,
		Retriever: memory.NewRetriever(mem, memory.ScopeGlobal),
		Completer: completer,
		Planner:   plans,
		Profiles:  profiles,
	}, chatService.Config{})

	return &Fixture{
		Store:     store,
		Chat:      chat,
		Personas:  personas,
		Planner:   plans,
		Profiles:  profiles,
		Completer: completer,
	}
}
