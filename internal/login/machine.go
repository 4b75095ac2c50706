// Package login is the staged login wizard: CNPJ, then username, then
// password. Transition is a pure function from (state, event) to (state,
// effects); Flow executes the effects against the auth client and the
// session store.
package login

import (
	"strings"
	"time"

	"github.com/boddenberg/zillo-assist-go/internal/cnpj"
	"github.com/boddenberg/zillo-assist-go/internal/domain"
)

// Stage is the wizard step.
type Stage int

const (
	StageCNPJ Stage = iota
	StageUsername
	StagePassword
	StageSuccess
)

func (s Stage) String() string {
	switch s {
	case StageCNPJ:
		return "cnpj"
	case StageUsername:
		return "username"
	case StagePassword:
		return "password"
	case StageSuccess:
		return "success"
	default:
		return "unknown"
	}
}

// User-facing messages.
const (
	MsgInvalidCNPJ       = "CNPJ inválido."
	MsgCompanyNotFound   = "CNPJ não encontrado."
	MsgMissingUsername   = "Informe o usuário."
	MsgUserNotFound      = "Usuário não encontrado para este CNPJ."
	MsgMissingPassword   = "Informe a senha."
	MsgInvalidPassword   = "Credenciais inválidas"
	MsgSessionSaveFailed = "Não foi possível salvar a sessão. Tente novamente."
)

// SuccessPath is where a completed login navigates to, after SuccessDelay.
const (
	SuccessPath  = "/dashboard"
	SuccessDelay = 1500 * time.Millisecond
)

// State is the whole wizard state. CNPJ holds the masked text as typed.
type State struct {
	Stage      Stage
	CNPJ       string
	Username   string
	Password   string
	Remember   bool
	Error      string
	Busy       bool
	Generation uint64
}

// Field names an input of the wizard.
type Field string

const (
	FieldCNPJ     Field = "cnpj"
	FieldUsername Field = "username"
	FieldPassword Field = "password"
	FieldRemember Field = "remember"
)

// ============================================================
// Events
// ============================================================

// Event is something that happened to the wizard.
type Event interface{ event() }

// Input sets a field. The CNPJ is masked as it is typed.
type Input struct {
	Field Field
	Value string
}

// Forward asks to advance from the current stage.
type Forward struct{}

// Back returns to the previous stage.
type Back struct{}

// Reset starts over, optionally pre-filled from remembered credentials.
type Reset struct {
	Prefill *domain.RememberedCredentials
}

// Result is the outcome of a remote check started by an effect.
type Result struct {
	Generation uint64
	Stage      Stage
	OK         bool
	Message    string
	Auth       *domain.AuthResult
}

// PersistFailed reports that the session could not be written.
type PersistFailed struct {
	Generation uint64
}

func (Input) event()         {}
func (Forward) event()       {}
func (Back) event()          {}
func (Reset) event()         {}
func (Result) event()        {}
func (PersistFailed) event() {}

// ============================================================
// Effects
// ============================================================

// Effect is work the interpreter must do.
type Effect interface{ effect() }

// Identify checks the company.
type Identify struct {
	Generation uint64
	CNPJ       string
}

// CheckUser checks the username within the company.
type CheckUser struct {
	Generation uint64
	CNPJ       string
	Username   string
}

// Authenticate performs the login.
type Authenticate struct {
	Generation uint64
	CNPJ       string
	Username   string
	Password   string
}

// PersistSession writes the session derived from Auth.
type PersistSession struct {
	Generation uint64
	Auth       *domain.AuthResult
	CNPJ       string
	Username   string
}

// Remember saves the pre-fill credentials.
type Remember struct {
	CNPJ     string
	Username string
}

// Forget drops the pre-fill credentials.
type Forget struct{}

// Navigate sends the client to To after a delay.
type Navigate struct {
	To    string
	After time.Duration
}

func (Identify) effect()       {}
func (CheckUser) effect()      {}
func (Authenticate) effect()   {}
func (PersistSession) effect() {}
func (Remember) effect()       {}
func (Forget) effect()         {}
func (Navigate) effect()       {}

// ============================================================
// Transition
// ============================================================

// Transition computes the next state and the effects to run. While Busy,
// only Result, Reset and PersistFailed are processed.
func Transition(s State, ev Event) (State, []Effect) {
	switch e := ev.(type) {
	case Input:
		if s.Busy || s.Stage == StageSuccess {
			return s, nil
		}
		return applyInput(s, e), nil

	case Forward:
		if s.Busy {
			return s, nil
		}
		return forward(s)

	case Back:
		if s.Busy {
			return s, nil
		}
		if s.Stage == StageUsername || s.Stage == StagePassword {
			s.Stage--
			s.Error = ""
		}
		return s, nil

	case Reset:
		next := State{Generation: s.Generation + 1}
		if p := e.Prefill; p != nil && p.Remember {
			next.CNPJ = cnpj.Format(p.CNPJ)
			next.Username = p.Username
			next.Remember = true
		}
		return next, nil

	case Result:
		if !s.Busy || e.Generation != s.Generation || e.Stage != s.Stage {
			return s, nil
		}
		return applyResult(s, e)

	case PersistFailed:
		if e.Generation != s.Generation || s.Stage != StageSuccess {
			return s, nil
		}
		s.Stage = StagePassword
		s.Error = MsgSessionSaveFailed
		return s, nil
	}
	return s, nil
}

func applyInput(s State, e Input) State {
	switch e.Field {
	case FieldCNPJ:
		s.CNPJ = cnpj.Format(e.Value)
	case FieldUsername:
		s.Username = e.Value
	case FieldPassword:
		s.Password = e.Value
	case FieldRemember:
		s.Remember = e.Value == "true" || e.Value == "on" || e.Value == "1"
	default:
		return s
	}
	s.Error = ""
	return s
}

func forward(s State) (State, []Effect) {
	switch s.Stage {
	case StageCNPJ:
		if !cnpj.Validate(s.CNPJ) {
			s.Error = MsgInvalidCNPJ
			return s, nil
		}
		s = startCall(s)
		return s, []Effect{Identify{Generation: s.Generation, CNPJ: cnpj.Normalize(s.CNPJ)}}

	case StageUsername:
		username := strings.TrimSpace(s.Username)
		if username == "" {
			s.Error = MsgMissingUsername
			return s, nil
		}
		s = startCall(s)
		return s, []Effect{CheckUser{Generation: s.Generation, CNPJ: cnpj.Normalize(s.CNPJ), Username: username}}

	case StagePassword:
		if s.Password == "" {
			s.Error = MsgMissingPassword
			return s, nil
		}
		s = startCall(s)
		return s, []Effect{Authenticate{
			Generation: s.Generation,
			CNPJ:       cnpj.Normalize(s.CNPJ),
			Username:   strings.TrimSpace(s.Username),
			Password:   s.Password,
		}}
	}
	return s, nil
}

func startCall(s State) State {
	s.Busy = true
	s.Error = ""
	s.Generation++
	return s
}

func applyResult(s State, e Result) (State, []Effect) {
	s.Busy = false

	if !e.OK {
		s.Error = e.Message
		if s.Error == "" {
			s.Error = rejectMessage(s.Stage)
		}
		return s, nil
	}

	s.Error = ""
	switch s.Stage {
	case StageCNPJ:
		s.Stage = StageUsername
		return s, nil
	case StageUsername:
		s.Stage = StagePassword
		return s, nil
	}

	// StagePassword
	canonical := cnpj.Normalize(s.CNPJ)
	username := strings.TrimSpace(s.Username)
	s.Stage = StageSuccess
	s.Password = ""

	effects := []Effect{PersistSession{Generation: s.Generation, Auth: e.Auth, CNPJ: canonical, Username: username}}
	if s.Remember {
		effects = append(effects, Remember{CNPJ: canonical, Username: username})
	} else {
		effects = append(effects, Forget{})
	}
	effects = append(effects, Navigate{To: SuccessPath, After: SuccessDelay})
	return s, effects
}

func rejectMessage(stage Stage) string {
	switch stage {
	case StageCNPJ:
		return MsgCompanyNotFound
	case StageUsername:
		return MsgUserNotFound
	default:
		return MsgInvalidPassword
	}
}
