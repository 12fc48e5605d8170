// Package cluster provides the consensus substrate facade: a single-writer
// apply loop over the versioned cluster state, and gossip-based membership.
package cluster

import (
	"context"
	"errors"
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/driftsearch/snaprestore/internal/model"
)

// ErrStateServiceStopped is returned for submissions after Stop
var ErrStateServiceStopped = errors.New("state service stopped")

// Transformation computes the next cluster state from the current one. It
// must be deterministic and side-effect free; returning an error leaves the
// state untouched.
type Transformation func(current model.ClusterState) (model.ClusterState, error)

// Applier is notified after every applied state change
type Applier interface {
	ApplyClusterState(old, new model.ClusterState)
}

type submission struct {
	name   string
	fn     Transformation
	result chan submissionResult
}

type submissionResult struct {
	state model.ClusterState
	err   error
}

// StateService serializes all cluster state mutations through one apply
// goroutine: no two transformations ever observe the same current state
// concurrently, which is what makes the plan builder's all-or-nothing
// semantics hold without locks.
type StateService struct {
	logger *zap.Logger

	mu       sync.RWMutex
	current  model.ClusterState
	appliers []Applier

	submissions chan submission
	stopOnce    sync.Once
	stopped     chan struct{}
	done        chan struct{}
}

// NewStateService creates a state service seeded with the initial state and
// starts its apply loop.
func NewStateService(initial model.ClusterState, logger *zap.Logger) *StateService {
	s := &StateService{
		logger:      logger,
		current:     initial,
		submissions: make(chan submission, 64),
		stopped:     make(chan struct{}),
		done:        make(chan struct{}),
	}
	go s.applyLoop()
	return s
}

// State returns the latest applied cluster state
func (s *StateService) State() model.ClusterState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// AddApplier registers a component to be notified after each applied change.
// Appliers run on the apply goroutine and must not submit synchronously.
func (s *StateService) AddApplier(a Applier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appliers = append(s.appliers, a)
}

// SubmitStateTransformation queues fn for serialized application and waits
// for its outcome. The transformation receives a deep copy of the current
// state, so a failed or abandoned attempt can never leak partial mutations.
func (s *StateService) SubmitStateTransformation(ctx context.Context, name string, fn Transformation) (model.ClusterState, error) {
	sub := submission{name: name, fn: fn, result: make(chan submissionResult, 1)}
	select {
	case s.submissions <- sub:
	case <-s.stopped:
		return model.ClusterState{}, ErrStateServiceStopped
	case <-ctx.Done():
		return model.ClusterState{}, ctx.Err()
	}
	select {
	case res := <-sub.result:
		return res.state, res.err
	case <-ctx.Done():
		return model.ClusterState{}, ctx.Err()
	}
}

// Stop shuts down the apply loop and waits for it to drain
func (s *StateService) Stop() {
	s.stopOnce.Do(func() { close(s.stopped) })
	<-s.done
}

func (s *StateService) applyLoop() {
	defer close(s.done)
	for {
		select {
		case sub := <-s.submissions:
			s.apply(sub)
		case <-s.stopped:
			// Drain anything already queued so submitters are not left
			// waiting forever.
			for {
				select {
				case sub := <-s.submissions:
					sub.result <- submissionResult{err: ErrStateServiceStopped}
				default:
					return
				}
			}
		}
	}
}

func (s *StateService) apply(sub submission) {
	old := s.State()
	next, err := sub.fn(old.Clone())
	if err != nil {
		s.logger.Debug("State transformation rejected",
			zap.String("task", sub.name),
			zap.Error(err))
		sub.result <- submissionResult{err: err}
		return
	}

	// A transformation that returns its input unchanged must not publish a
	// new state version.
	if reflect.DeepEqual(old, next) {
		sub.result <- submissionResult{state: old}
		return
	}

	next.Version = old.Version + 1
	s.mu.Lock()
	s.current = next
	appliers := append([]Applier(nil), s.appliers...)
	s.mu.Unlock()

	s.logger.Debug("State transformation applied",
		zap.String("task", sub.name),
		zap.Int64("version", next.Version))

	for _, a := range appliers {
		a.ApplyClusterState(old, next)
	}
	sub.result <- submissionResult{state: next}
}
