package checks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/user/workspace-audit/pkg/controlmap"
	"github.com/user/workspace-audit/pkg/engine"
	"github.com/user/workspace-audit/pkg/logging"
)

var ErrUnknownCheck = errors.New("unknown check")

// Env is what a check runs against.
type Env struct {
	Domain    string
	Directory Directory
	Controls  *controlmap.ControlMap
	Log       *logging.Logger
	Now       func() time.Time
}

func (e *Env) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Env) log() *logging.Logger {
	if e.Log == nil {
		return logging.NewTestLog()
	}
	return e.Log
}

// isExternal reports whether an address is outside the audited domain.
func (e *Env) isExternal(email string) bool {
	return !strings.HasSuffix(strings.ToLower(email), "@"+strings.ToLower(e.Domain))
}

// Check is one audit step. Live checks read the directory, the rest describe what an
// administrator has to verify by hand.
type Check struct {
	ID          string
	Description string
	Area        string
	Live        bool
	// OnlyFor restricts the check to audits that include this framework.
	OnlyFor controlmap.Framework
	// FailureMessage replaces the raw error in the payload when the check fails.
	FailureMessage string

	run func(ctx context.Context, env *Env) (*engine.RawFinding, error)
}

// Run executes the check. The payload always starts with domain and compliance
// mappings.
func (c Check) Run(ctx context.Context, env *Env) (*engine.RawFinding, error) {
	return c.run(ctx, env)
}

// ErrorPayload is what the report receives for a check that could not complete.
func (c Check) ErrorPayload(env *Env, err error) *engine.RawFinding {
	msg := c.FailureMessage
	if msg == "" {
		msg = fmt.Sprintf("Check failed: %v", err)
	}
	return newPayload(env, c.ID).Set("error", msg)
}

// AppliesTo reports whether the check belongs in an audit of frameworks.
func (c Check) AppliesTo(frameworks []controlmap.Framework) bool {
	return c.OnlyFor == "" || lo.Contains(frameworks, c.OnlyFor)
}

func newPayload(env *Env, checkID string) *engine.RawFinding {
	p := engine.NewRawFinding().Set("domain", env.Domain)
	m, _ := env.Controls.Lookup(checkID)
	return p.Set("compliance_mappings", m)
}

const (
	AreaAccessControl    = "Access Control"
	AreaAuthentication   = "Authentication"
	AreaAudit            = "Audit & Accountability"
	AreaSystemProtection = "System Protection"
	AreaMSPOperations    = "MSP Operations"
)

// Registry holds the checks in audit order.
type Registry struct {
	checks []Check
}

// auditOrder is the order checks run and appear in, grouped by area.
var auditOrder = []string{
	"check_2fa_status",
	"check_admin_roles",
	"check_session_settings",
	"check_external_sharing",
	"check_api_access",
	"check_groups_external_members",
	"check_password_policy",
	"check_inactive_accounts",
	"check_audit_log_settings",
	"check_suspicious_activity",
	"check_mobile_devices",
	"check_email_authentication",
	"check_email_forwarding",
	"check_calendar_sharing",
	"check_data_regions",
	"check_shared_drives",
	"check_license_utilization",
	"check_storage_usage",
	"check_baa_status",
}

// NewRegistry returns the built-in checks.
func NewRegistry() *Registry {
	byID := lo.KeyBy(append(liveChecks(), manualChecks()...), func(c Check) string { return c.ID })
	r := &Registry{}
	for _, id := range auditOrder {
		if c, ok := byID[id]; ok {
			r.checks = append(r.checks, c)
		}
	}
	return r
}

func (r *Registry) All() []Check {
	return append([]Check(nil), r.checks...)
}

func (r *Registry) Get(id string) (Check, error) {
	c, ok := lo.Find(r.checks, func(c Check) bool { return c.ID == id })
	if !ok {
		return Check{}, fmt.Errorf("%w: %s", ErrUnknownCheck, id)
	}
	return c, nil
}

// ForFrameworks returns the checks that apply to an audit of frameworks.
func (r *Registry) ForFrameworks(frameworks []controlmap.Framework) []Check {
	return lo.Filter(r.checks, func(c Check, _ int) bool { return c.AppliesTo(frameworks) })
}

// Select returns the named checks in registry order.
func (r *Registry) Select(ids []string) ([]Check, error) {
	for _, id := range ids {
		if _, err := r.Get(id); err != nil {
			return nil, err
		}
	}
	return lo.Filter(r.checks, func(c Check, _ int) bool { return lo.Contains(ids, c.ID) }), nil
}

// ByArea groups checks by their area in registry order.
func (r *Registry) ByArea(checks []Check) ([]string, map[string][]Check) {
	areas := lo.Uniq(lo.Map(checks, func(c Check, _ int) string { return c.Area }))
	return areas, lo.GroupBy(checks, func(c Check) string { return c.Area })
}
