// Package mutation performs single create, update and delete calls against
// the products API on behalf of an explicit session.
//
// A dispatcher moves idle → submitting → success|failed and is back to idle
// when its method returns, whatever the outcome. Dispatchers report through
// callbacks and never refresh the product list themselves.
package mutation

import (
	"context"
	"sync"

	"quantum-stock/internal/auth"
	"quantum-stock/internal/domain"
	"quantum-stock/internal/repository"
	"quantum-stock/internal/validation"

	"go.uber.org/zap"
)

// State of a dispatcher
type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateSuccess
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateSubmitting:
		return "submitting"
	case StateSuccess:
		return "success"
	case StateFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Result is passed to OnSuccess: the saved product, or the deleted id
type Result struct {
	Product *domain.Product
	ID      domain.ProductID
}

// Callbacks receive the outcome of a dispatch
type Callbacks struct {
	OnSuccess     func(Result)
	OnError       func(error)
	OnStateChange func(State)
}

type dispatcher struct {
	op        repository.Operation
	repo      repository.ProductRepository
	session   auth.Session
	callbacks Callbacks
	logger    *zap.Logger

	mu    sync.Mutex
	state State
}

func newDispatcher(op repository.Operation, repo repository.ProductRepository, session auth.Session, callbacks Callbacks, logger *zap.Logger) dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return dispatcher{
		op:        op,
		repo:      repo,
		session:   session,
		callbacks: callbacks,
		logger:    logger,
	}
}

// State returns the current dispatcher state
func (d *dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// IsSubmitting reports whether a call is in flight
func (d *dispatcher) IsSubmitting() bool {
	return d.State() == StateSubmitting
}

func (d *dispatcher) setState(s State) {
	d.mu.Lock()
	d.state = s
	d.mu.Unlock()
	if d.callbacks.OnStateChange != nil {
		d.callbacks.OnStateChange(s)
	}
}

func (d *dispatcher) requireToken() *Error {
	if !d.session.Authenticated() {
		return preconditionError(d.op, KindAuth, MsgTokenRequired)
	}
	return nil
}

// fail reports a local failure without touching the network
func (d *dispatcher) fail(err *Error) bool {
	d.logger.Debug("Mutation rejected before submission",
		zap.String("op", string(d.op)),
		zap.String("kind", string(err.Kind)),
	)
	if d.callbacks.OnError != nil {
		d.callbacks.OnError(err)
	}
	return false
}

// submit runs call and reports its outcome. The state is reset to idle on
// every exit path.
func (d *dispatcher) submit(call func() (Result, error)) (ok bool) {
	d.setState(StateSubmitting)
	defer d.setState(StateIdle)

	result, err := call()
	if err != nil {
		mapped := mapError(d.op, err)
		d.logger.Error("Mutation failed",
			zap.String("op", string(d.op)),
			zap.String("kind", string(mapped.Kind)),
			zap.Int("status", mapped.Status),
			zap.Error(err),
		)
		d.setState(StateFailed)
		if d.callbacks.OnError != nil {
			d.callbacks.OnError(mapped)
		}
		return false
	}

	d.logger.Info("Mutation succeeded",
		zap.String("op", string(d.op)),
		zap.String("product_id", result.ID.String()),
	)
	d.setState(StateSuccess)
	if d.callbacks.OnSuccess != nil {
		d.callbacks.OnSuccess(result)
	}
	return true
}

// Creator creates products
type Creator struct {
	dispatcher
}

// NewCreator creates a Creator acting for session
func NewCreator(repo repository.ProductRepository, session auth.Session, callbacks Callbacks, logger *zap.Logger) *Creator {
	return &Creator{dispatcher: newDispatcher(repository.OpCreate, repo, session, callbacks, logger)}
}

// Create validates input and posts it
func (c *Creator) Create(ctx context.Context, input domain.ProductInput) bool {
	if err := validation.Product(input); err != nil {
		return c.fail(validationError(c.op, err))
	}
	if err := c.requireToken(); err != nil {
		return c.fail(err)
	}

	return c.submit(func() (Result, error) {
		product, err := c.repo.Create(ctx, c.session.Token, input.Normalized())
		if err != nil {
			return Result{}, err
		}
		return Result{Product: product, ID: product.ID}, nil
	})
}

// Updater updates products
type Updater struct {
	dispatcher
}

// NewUpdater creates an Updater acting for session
func NewUpdater(repo repository.ProductRepository, session auth.Session, callbacks Callbacks, logger *zap.Logger) *Updater {
	return &Updater{dispatcher: newDispatcher(repository.OpUpdate, repo, session, callbacks, logger)}
}

// Update validates input and replaces product id
func (u *Updater) Update(ctx context.Context, id domain.ProductID, input domain.ProductInput) bool {
	if err := u.requireToken(); err != nil {
		return u.fail(err)
	}
	if id == "" {
		return u.fail(preconditionError(u.op, KindRequest, MsgUpdateIDRequired))
	}
	if err := validation.Product(input); err != nil {
		return u.fail(validationError(u.op, err))
	}

	return u.submit(func() (Result, error) {
		product, err := u.repo.Update(ctx, u.session.Token, id, input.Normalized())
		if err != nil {
			return Result{}, err
		}
		return Result{Product: product, ID: id}, nil
	})
}

// Deleter deletes products; only admins may
type Deleter struct {
	dispatcher
}

// NewDeleter creates a Deleter acting for session
func NewDeleter(repo repository.ProductRepository, session auth.Session, callbacks Callbacks, logger *zap.Logger) *Deleter {
	return &Deleter{dispatcher: newDispatcher(repository.OpDelete, repo, session, callbacks, logger)}
}

// Delete removes product id
func (d *Deleter) Delete(ctx context.Context, id domain.ProductID) bool {
	if err := d.requireToken(); err != nil {
		return d.fail(err)
	}
	if !d.session.IsAdmin() {
		return d.fail(preconditionError(d.op, KindPermission, MsgDeleteForbidden))
	}
	if id == "" {
		return d.fail(preconditionError(d.op, KindRequest, MsgDeleteIDRequired))
	}

	return d.submit(func() (Result, error) {
		if err := d.repo.Delete(ctx, d.session.Token, id); err != nil {
			return Result{}, err
		}
		return Result{ID: id}, nil
	})
}
