package engine

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"furnace/material"
	"furnace/model"
)

// Registry is the in-process face of the four UI operations: submit, poll,
// cancel, fetch. Every run gets its own Engine; the registry itself only
// maps ids to engines.
type Registry struct {
	mu   sync.RWMutex
	runs map[string]*Engine

	lib  *material.Library
	opts Options
}

func NewRegistry(lib *material.Library, opts Options) *Registry {
	return &Registry{
		runs: make(map[string]*Engine),
		lib:  lib,
		opts: opts,
	}
}

// Submit validates the config, registers a run and starts it in the
// background. Invalid input fails synchronously before any computation.
func (r *Registry) Submit(cfg model.SimulationConfig) (string, error) {
	e, err := New(cfg, r.lib, r.opts)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	e.ID = id

	r.mu.Lock()
	r.runs[id] = e
	r.mu.Unlock()

	e.Start()
	log.WithField("run", id).Info("run submitted")
	return id, nil
}

func (r *Registry) get(id string) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.runs[id]
	if !ok {
		return nil, model.ErrRunNotFound
	}
	return e, nil
}

// Engine exposes a run for progress streaming.
func (r *Registry) Engine(id string) (*Engine, error) { return r.get(id) }

// PollProgress returns last-known progress and state; safe at any time.
func (r *Registry) PollProgress(id string) (model.Progress, model.RunState, error) {
	e, err := r.get(id)
	if err != nil {
		return model.Progress{}, "", err
	}
	p, s := e.Progress()
	return p, s, nil
}

// Cancel requests a cooperative stop; idempotent, also after termination.
func (r *Registry) Cancel(id string) error {
	e, err := r.get(id)
	if err != nil {
		return err
	}
	e.Cancel()
	return nil
}

// Delete evicts a terminal run and its retained snapshot series, so a
// long-lived server does not accumulate finished runs forever. Active runs
// are refused: cancel first and wait for the terminal state.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.runs[id]
	if !ok {
		return model.ErrRunNotFound
	}
	if _, state := e.Progress(); !state.Terminal() {
		return fmt.Errorf("%w: %s is %s", model.ErrRunActive, id, state)
	}
	delete(r.runs, id)
	log.WithField("run", id).Info("run deleted")
	return nil
}

// FetchResults returns the terminal result, or ErrResultPending while the
// run is still going.
func (r *Registry) FetchResults(id string) (*model.SimulationResult, error) {
	e, err := r.get(id)
	if err != nil {
		return nil, err
	}
	return e.Result()
}
