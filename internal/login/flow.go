package login

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/domain"
	"github.com/boddenberg/zillo-assist-go/internal/infra/observability"
	"github.com/boddenberg/zillo-assist-go/internal/service"
	"github.com/boddenberg/zillo-assist-go/internal/session"

	"go.uber.org/zap"
)

// ErrBusy is returned when a step is requested while a remote check is in flight.
var ErrBusy = errors.New("login: a check is already in progress")

// Authenticator is what the wizard needs from the auth client.
type Authenticator interface {
	IdentifyCompany(ctx context.Context, cnpj string) (*domain.IdentifyResult, error)
	CheckUsername(ctx context.Context, cnpj, username string) (*domain.CheckUserResult, error)
	Authenticate(ctx context.Context, cnpj, username, password string) (*domain.AuthResult, error)
}

// Snapshot is a copy of the wizard state plus the pending navigation, if any.
type Snapshot struct {
	State    State
	Redirect *Navigate
}

// Flow runs one client's wizard. It is safe for concurrent use; at most one
// remote check runs at a time.
type Flow struct {
	mu       sync.Mutex
	state    State
	redirect *Navigate

	auth          Authenticator
	sessions      *session.Store
	redirectDelay time.Duration
	metrics       *observability.Metrics
	logger        *zap.Logger
}

// FlowOption configures a Flow.
type FlowOption func(*Flow)

// WithRedirectDelay overrides the delay reported with the success navigation.
func WithRedirectDelay(d time.Duration) FlowOption {
	return func(f *Flow) { f.redirectDelay = d }
}

// WithMetrics records stage advances and rejections.
func WithMetrics(m *observability.Metrics) FlowOption {
	return func(f *Flow) { f.metrics = m }
}

// WithFlowLogger sets the logger.
func WithFlowLogger(l *zap.Logger) FlowOption {
	return func(f *Flow) { f.logger = l }
}

// NewFlow starts a wizard at the CNPJ stage, pre-filled from the client's
// remembered credentials.
func NewFlow(ctx context.Context, auth Authenticator, sessions *session.Store, opts ...FlowOption) *Flow {
	f := &Flow{
		auth:          auth,
		sessions:      sessions,
		redirectDelay: SuccessDelay,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.state, _ = Transition(State{}, Reset{Prefill: f.remembered(ctx)})
	return f
}

// Snapshot returns the current state.
func (f *Flow) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshotLocked()
}

// Input sets a field.
func (f *Flow) Input(field Field, value string) (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Busy {
		return f.snapshotLocked(), ErrBusy
	}
	f.state, _ = Transition(f.state, Input{Field: field, Value: value})
	return f.snapshotLocked(), nil
}

// Back returns to the previous stage without any remote call.
func (f *Flow) Back() (Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state.Busy {
		return f.snapshotLocked(), ErrBusy
	}
	f.state, _ = Transition(f.state, Back{})
	return f.snapshotLocked(), nil
}

// Reset starts over. Any check still in flight is ignored when it returns.
func (f *Flow) Reset(ctx context.Context) Snapshot {
	prefill := f.remembered(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.state, _ = Transition(f.state, Reset{Prefill: prefill})
	f.redirect = nil
	return f.snapshotLocked()
}

// Forward validates the current stage locally and, if that passes, runs
// the remote check and applies its result. The lock is not held during
// the remote call.
func (f *Flow) Forward(ctx context.Context) (Snapshot, error) {
	f.mu.Lock()
	if f.state.Busy {
		snap := f.snapshotLocked()
		f.mu.Unlock()
		return snap, ErrBusy
	}
	stage := f.state.Stage
	var effects []Effect
	f.state, effects = Transition(f.state, Forward{})
	if len(effects) == 0 {
		if f.state.Error != "" {
			f.recordStage(stage, false)
		}
		snap := f.snapshotLocked()
		f.mu.Unlock()
		return snap, nil
	}
	f.mu.Unlock()

	result := f.check(ctx, effects[0])

	f.mu.Lock()
	defer f.mu.Unlock()

	if result.Generation == f.state.Generation && f.state.Busy {
		f.recordStage(stage, result.OK)
	}
	f.state, effects = Transition(f.state, result)
	f.run(ctx, effects)
	return f.snapshotLocked(), nil
}

// check executes a remote effect and turns its outcome into a Result.
func (f *Flow) check(ctx context.Context, eff Effect) Result {
	switch e := eff.(type) {
	case Identify:
		res, err := f.auth.IdentifyCompany(ctx, e.CNPJ)
		if err != nil {
			f.logger.Warn("login: identify failed", zap.Error(err))
		}
		return Result{Generation: e.Generation, Stage: StageCNPJ, OK: err == nil && res != nil && res.Exists}

	case CheckUser:
		res, err := f.auth.CheckUsername(ctx, e.CNPJ, e.Username)
		if err != nil {
			f.logger.Warn("login: check user failed", zap.Error(err))
		}
		return Result{Generation: e.Generation, Stage: StageUsername, OK: err == nil && res != nil && res.Exists}

	case Authenticate:
		res, err := f.auth.Authenticate(ctx, e.CNPJ, e.Username, e.Password)
		if err != nil || res == nil || res.Token == "" {
			msg := MsgInvalidPassword
			var unauth *domain.ErrUnauthorized
			if errors.As(err, &unauth) && unauth.Message != "" {
				msg = unauth.Message
			} else if err != nil {
				f.logger.Warn("login: authenticate failed", zap.Error(err))
			}
			return Result{Generation: e.Generation, Stage: StagePassword, Message: msg}
		}
		return Result{Generation: e.Generation, Stage: StagePassword, OK: true, Auth: res}
	}
	return Result{}
}

// run executes local effects. Called with the lock held.
func (f *Flow) run(ctx context.Context, effects []Effect) {
	for _, eff := range effects {
		switch e := eff.(type) {
		case PersistSession:
			sess := service.DeriveSession(e.Auth, e.CNPJ, e.Username)
			if err := f.sessions.Save(ctx, sess); err != nil {
				f.logger.Error("login: session save failed", zap.Error(err))
				f.state, _ = Transition(f.state, PersistFailed{Generation: e.Generation})
				return
			}
			f.logger.Info("login: session started",
				zap.String("company_cnpj", sess.CompanyCNPJ),
				zap.String("user", e.Username),
				zap.String("role", string(sess.UserRole)),
			)

		case Remember:
			if err := f.sessions.SaveRememberedCredentials(ctx, e.CNPJ, e.Username); err != nil {
				f.logger.Warn("login: remember credentials failed", zap.Error(err))
			}

		case Forget:
			if err := f.sessions.ClearRememberedCredentials(ctx); err != nil {
				f.logger.Warn("login: forget credentials failed", zap.Error(err))
			}

		case Navigate:
			nav := e
			nav.After = f.redirectDelay
			f.redirect = &nav
		}
	}
}

func (f *Flow) remembered(ctx context.Context) *domain.RememberedCredentials {
	if f.sessions == nil {
		return nil
	}
	creds, ok := f.sessions.RememberedCredentials(ctx)
	if !ok {
		return nil
	}
	return &creds
}

func (f *Flow) recordStage(stage Stage, advanced bool) {
	if f.metrics == nil {
		return
	}
	outcome := "reject"
	if advanced {
		outcome = "advance"
	}
	f.metrics.IncrStageTransition(stage.String(), outcome)
}

func (f *Flow) snapshotLocked() Snapshot {
	snap := Snapshot{State: f.state}
	if f.redirect != nil {
		nav := *f.redirect
		snap.Redirect = &nav
	}
	return snap
}
