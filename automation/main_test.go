package automation

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/jinzhu/gorm/dialects/postgres"

	C "crmhub/config"
	"crmhub/model/model"
	"crmhub/model/store/memstore"
)

var errTest = errors.New("downstream unavailable")

func setupTestStore(t *testing.T) *memstore.MemStore {
	// Init fails when another test already initialized the config; the
	// shared memory-store configuration is identical either way.
	_ = C.Init(&C.Configuration{
		AppName:   "automation_test",
		Env:       C.DEVELOPMENT,
		StoreType: C.StoreTypeMemory,
	})

	ms := memstore.GetInstance()
	ms.Reset()
	return ms
}

func jsonb(raw string) *postgres.Jsonb {
	return &postgres.Jsonb{RawMessage: []byte(raw)}
}

// countingHandler records every execution and fails the first
// failuresBeforeSuccess attempts per (rule, event) pair.
type countingHandler struct {
	mu                    sync.Mutex
	calls                 int
	entityIDs             []string
	failuresBeforeSuccess int
	failPermanently       bool
}

func (h *countingHandler) Execute(ctx context.Context, config *postgres.Jsonb, event *model.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.calls++
	h.entityIDs = append(h.entityIDs, event.EntityID)

	if h.failPermanently {
		return NewPermanentActionError(errTest)
	}
	if h.calls <= h.failuresBeforeSuccess {
		return NewTransientActionError(errTest)
	}
	return nil
}

func (h *countingHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.calls
}
