package payroll

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/payroll"
	"github.com/cmlabs-hris/payrun-backend-go/internal/domain/user"
)

// Variant selects which transitions a deployment registers
type Variant string

const (
	VariantFourStage Variant = "four_stage"
	VariantTwoStage  Variant = "two_stage"
)

// Transition is one row of the state table
type Transition struct {
	From   payroll.RunStatus
	Action payroll.Action
	To     payroll.RunStatus
}

// FourStageTransitions is compute, check, authorize, process
var FourStageTransitions = []Transition{
	{From: payroll.RunStatusNone, Action: payroll.ActionCompute, To: payroll.RunStatusComputed},
	{From: payroll.RunStatusComputed, Action: payroll.ActionCheckApprove, To: payroll.RunStatusChecked},
	{From: payroll.RunStatusComputed, Action: payroll.ActionCheckReject, To: payroll.RunStatusRejected},
	{From: payroll.RunStatusChecked, Action: payroll.ActionAuthorizeApprove, To: payroll.RunStatusAuthorized},
	{From: payroll.RunStatusChecked, Action: payroll.ActionAuthorizeReject, To: payroll.RunStatusRejected},
	{From: payroll.RunStatusAuthorized, Action: payroll.ActionProcess, To: payroll.RunStatusProcessed},
}

// TwoStageTransitions drops the check step for deployments with two approval roles
var TwoStageTransitions = []Transition{
	{From: payroll.RunStatusNone, Action: payroll.ActionCompute, To: payroll.RunStatusComputed},
	{From: payroll.RunStatusComputed, Action: payroll.ActionAuthorizeApprove, To: payroll.RunStatusAuthorized},
	{From: payroll.RunStatusComputed, Action: payroll.ActionAuthorizeReject, To: payroll.RunStatusRejected},
	{From: payroll.RunStatusAuthorized, Action: payroll.ActionProcess, To: payroll.RunStatusProcessed},
}

// TwoStageChains lets one request authorize and process in sequence
var TwoStageChains = map[payroll.Action][]payroll.Action{
	payroll.ActionAuthorizeAndProcess: {payroll.ActionAuthorizeApprove, payroll.ActionProcess},
}

// Capabilities maps an action to the roles allowed to perform it
type Capabilities map[payroll.Action][]user.Role

// DefaultCapabilities returns the stock role assignment
func DefaultCapabilities() Capabilities {
	compute := []user.Role{user.RolePayrollOfficer, user.RoleSystemAdmin}
	check := []user.Role{user.RolePayrollChecker, user.RoleSystemAdmin}
	authorize := []user.Role{user.RolePayrollAdmin, user.RoleSystemAdmin}

	return Capabilities{
		payroll.ActionCompute:             compute,
		payroll.ActionCheckApprove:        check,
		payroll.ActionCheckReject:         check,
		payroll.ActionAuthorizeApprove:    authorize,
		payroll.ActionAuthorizeReject:     authorize,
		payroll.ActionProcess:             authorize,
		payroll.ActionAuthorizeAndProcess: authorize,
	}
}

// ParseCapabilities overrides the defaults from "action:role|role;action:role".
// Actions not named keep their default roles.
func ParseCapabilities(raw string) (Capabilities, error) {
	caps := DefaultCapabilities()
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return caps, nil
	}

	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, roleList, ok := strings.Cut(entry, ":")
		if !ok {
			return nil, fmt.Errorf("invalid capability entry %q: expected action:role|role", entry)
		}

		action := payroll.Action(strings.TrimSpace(name))
		if _, known := caps[action]; !known {
			return nil, fmt.Errorf("invalid capability entry %q: %w", entry, payroll.ErrInvalidAction)
		}

		var roles []user.Role
		for _, r := range strings.Split(roleList, "|") {
			role := user.Role(strings.TrimSpace(r))
			if !role.IsValid() {
				return nil, fmt.Errorf("invalid capability entry %q: %w: %s", entry, user.ErrInvalidRole, role)
			}
			roles = append(roles, role)
		}
		caps[action] = roles
	}
	return caps, nil
}

// Allows reports whether role may perform action
func (c Capabilities) Allows(action payroll.Action, role user.Role) bool {
	for _, r := range c[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Command is a requested transition on a run
type Command struct {
	Action payroll.Action
	Actor  payroll.Actor
	Reason string
}

// Workflow is the run state machine. It is built once from a transition table
// and never changes afterwards.
type Workflow struct {
	variant      Variant
	transitions  map[payroll.Action]map[payroll.RunStatus]payroll.RunStatus
	chains       map[payroll.Action][]payroll.Action
	capabilities Capabilities
}

// NewWorkflow registers the transitions of variant, gated by caps
func NewWorkflow(variant Variant, caps Capabilities) (*Workflow, error) {
	var table []Transition
	var chains map[payroll.Action][]payroll.Action

	switch variant {
	case VariantFourStage, "":
		variant = VariantFourStage
		table = FourStageTransitions
	case VariantTwoStage:
		table = TwoStageTransitions
		chains = TwoStageChains
	default:
		return nil, fmt.Errorf("unknown workflow variant %q", variant)
	}

	if caps == nil {
		caps = DefaultCapabilities()
	}

	w := &Workflow{
		variant:      variant,
		transitions:  make(map[payroll.Action]map[payroll.RunStatus]payroll.RunStatus),
		chains:       chains,
		capabilities: caps,
	}
	for _, t := range table {
		if w.transitions[t.Action] == nil {
			w.transitions[t.Action] = make(map[payroll.RunStatus]payroll.RunStatus)
		}
		if _, dup := w.transitions[t.Action][t.From]; dup {
			return nil, fmt.Errorf("duplicate transition %s from %q", t.Action, t.From)
		}
		w.transitions[t.Action][t.From] = t.To
	}
	return w, nil
}

func (w *Workflow) Variant() Variant {
	return w.variant
}

// Authorize checks the capability table. It does not look at run state.
func (w *Workflow) Authorize(action payroll.Action, role user.Role) error {
	if !w.capabilities.Allows(action, role) {
		return fmt.Errorf("%w: role %q cannot %s", payroll.ErrUnauthorized, role, action)
	}
	return nil
}

// Steps expands a chained action into the single-step actions it performs.
// A plain action is its own single step.
func (w *Workflow) Steps(action payroll.Action) []payroll.Action {
	if steps, ok := w.chains[action]; ok {
		return steps
	}
	return []payroll.Action{action}
}

// IsChain reports whether action is a registered chain
func (w *Workflow) IsChain(action payroll.Action) bool {
	_, ok := w.chains[action]
	return ok
}

// Next returns the status action leads to from the given status
func (w *Workflow) Next(from payroll.RunStatus, action payroll.Action) (payroll.RunStatus, error) {
	if steps, ok := w.chains[action]; ok {
		status := from
		for _, step := range steps {
			next, err := w.Next(status, step)
			if err != nil {
				return "", err
			}
			status = next
		}
		return status, nil
	}

	to, ok := w.transitions[action][from]
	if !ok {
		if from == payroll.RunStatusNone {
			return "", fmt.Errorf("%w: %s is not allowed on a new run", payroll.ErrInvalidTransition, action)
		}
		if from.IsTerminal() {
			return "", fmt.Errorf("%w: run is %s and terminal", payroll.ErrInvalidTransition, from)
		}
		return "", fmt.Errorf("%w: %s is not allowed from %s", payroll.ErrInvalidTransition, action, from)
	}
	return to, nil
}

// Apply validates cmd against run and returns the advanced run together with
// the audit entry it appended. The input run is not modified.
//
// Checks run in order: role, state, then reason.
func (w *Workflow) Apply(run payroll.Run, cmd Command, now time.Time) (payroll.Run, payroll.AuditEntry, error) {
	if w.IsChain(cmd.Action) {
		return payroll.Run{}, payroll.AuditEntry{}, fmt.Errorf("%w: %s must be applied step by step", payroll.ErrInvalidAction, cmd.Action)
	}
	if err := w.Authorize(cmd.Action, cmd.Actor.Role); err != nil {
		return payroll.Run{}, payroll.AuditEntry{}, err
	}

	to, err := w.Next(run.Status, cmd.Action)
	if err != nil {
		return payroll.Run{}, payroll.AuditEntry{}, err
	}

	reason := strings.TrimSpace(cmd.Reason)
	if cmd.Action.IsReject() && reason == "" {
		return payroll.Run{}, payroll.AuditEntry{}, payroll.ErrMissingReason
	}

	entry := newAuditEntry(run, cmd.Action, to, cmd.Actor, reason, now)
	return appendEntry(run, entry), entry, nil
}

// RecordAttempt appends a process-attempt entry that leaves the status as is
func (w *Workflow) RecordAttempt(run payroll.Run, actor payroll.Actor, remarks string, now time.Time) (payroll.Run, payroll.AuditEntry) {
	entry := newAuditEntry(run, payroll.ActionProcessAttempt, run.Status, actor, remarks, now)
	return appendEntry(run, entry), entry
}

// PendingStatuses returns the statuses awaiting the given stage under this variant
func (w *Workflow) PendingStatuses(stage payroll.Stage) []payroll.RunStatus {
	var action payroll.Action
	switch stage {
	case payroll.StageCheck:
		action = payroll.ActionCheckApprove
	case payroll.StageAuthorize:
		action = payroll.ActionAuthorizeApprove
	case payroll.StageProcess:
		action = payroll.ActionProcess
	default:
		return nil
	}

	var statuses []payroll.RunStatus
	for from := range w.transitions[action] {
		statuses = append(statuses, from)
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i] < statuses[j] })
	return statuses
}

func newAuditEntry(run payroll.Run, action payroll.Action, to payroll.RunStatus, actor payroll.Actor, remarks string, now time.Time) payroll.AuditEntry {
	// Audit time never goes backwards even if the clock does
	at := now.UTC()
	if last, ok := run.LastAudit(); ok && at.Before(last.At) {
		at = last.At
	}

	entry := payroll.AuditEntry{
		RunID:      run.ID,
		Action:     action,
		FromStatus: run.Status,
		ToStatus:   to,
		ActorID:    actor.ID,
		ActorName:  actor.Name,
		ActorRole:  actor.Role,
		At:         at,
	}
	if remarks != "" {
		entry.Remarks = &remarks
	}
	return entry
}

func appendEntry(run payroll.Run, entry payroll.AuditEntry) payroll.Run {
	next := run
	next.Audit = make([]payroll.AuditEntry, len(run.Audit), len(run.Audit)+1)
	copy(next.Audit, run.Audit)
	next.Audit = append(next.Audit, entry)

	next.Status = entry.ToStatus
	next.Locked = entry.ToStatus == payroll.RunStatusProcessed
	next.UpdatedAt = entry.At
	return next
}
