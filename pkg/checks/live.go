package checks

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/user/workspace-audit/pkg/engine"
)

const (
	inactiveAfter      = 90 * 24 * time.Hour
	suspiciousWindow   = 7 * 24 * time.Hour
	detailLimit        = 10
	licenseCostPerUser = 12
	bytesPerGB         = 1 << 30
)

var suspiciousEvents = []string{"login_failure", "suspicious_login", "account_disabled_suspicious_activity"}

func liveChecks() []Check {
	return []Check{
		{
			ID:          "check_2fa_status",
			Description: "Check 2-Step Verification enrollment for all users",
			Area:        AreaAccessControl,
			Live:        true,
			run:         check2FA,
		},
		{
			ID:          "check_admin_roles",
			Description: "List super and delegated administrators and their 2SV status",
			Area:        AreaAccessControl,
			Live:        true,
			run:         checkAdminRoles,
		},
		{
			ID:          "check_groups_external_members",
			Description: "Find groups that contain members outside the domain",
			Area:        AreaAccessControl,
			Live:        true,
			run:         checkGroupsExternal,
		},
		{
			ID:          "check_inactive_accounts",
			Description: "Find active accounts with no login in 90 days",
			Area:        AreaAuthentication,
			Live:        true,
			run:         checkInactiveAccounts,
		},
		{
			ID:             "check_suspicious_activity",
			Description:    "Look for failed and suspicious logins in the last 7 days",
			Area:           AreaAudit,
			Live:           true,
			FailureMessage: "Unable to retrieve security events. May require additional API permissions.",
			run:            checkSuspiciousActivity,
		},
		{
			ID:             "check_mobile_devices",
			Description:    "Check mobile device approval and encryption",
			Area:           AreaSystemProtection,
			Live:           true,
			FailureMessage: "Unable to access mobile devices. Verify mobile device management API is enabled.",
			run:            checkMobileDevices,
		},
		{
			ID:             "check_shared_drives",
			Description:    "Find shared drives with users outside the domain",
			Area:           AreaMSPOperations,
			Live:           true,
			FailureMessage: "Unable to access shared drives. Verify Drive API scope is enabled.",
			run:            checkSharedDrives,
		},
		{
			ID:          "check_license_utilization",
			Description: "Estimate license spend and savings from inactive accounts",
			Area:        AreaMSPOperations,
			Live:        true,
			run:         checkLicenseUtilization,
		},
		{
			ID:          "check_storage_usage",
			Description: "Report storage consumption and the top consumers",
			Area:        AreaMSPOperations,
			Live:        true,
			run:         checkStorageUsage,
		},
	}
}

func check2FA(ctx context.Context, env *Env) (*engine.RawFinding, error) {
	users, err := env.Directory.Users(ctx)
	if err != nil {
		return nil, err
	}
	without := lo.Filter(users, func(u User, _ int) bool { return !u.EnrolledIn2SV })
	admins := lo.CountBy(without, func(u User) bool { return u.IsAdmin })

	rec := "All users have 2FA enabled. Consider requiring hardware security keys for privileged accounts."
	if len(without) > 0 {
		rec = "Enable 2FA enforcement for all users. Require hardware security keys for admin accounts."
	}
	return newPayload(env, "check_2fa_status").
		Set("total_users", len(users)).
		Set("mfa_enforced", len(without) == 0).
		Set("users_without_mfa", len(without)).
		Set("admin_accounts_without_mfa", admins).
		Set("recommendation", rec).
		Set("licensing_note", "2FA is included in all Google Workspace editions."), nil
}

func checkAdminRoles(ctx context.Context, env *Env) (*engine.RawFinding, error) {
	users, err := env.Directory.Users(ctx)
	if err != nil {
		return nil, err
	}
	admins := lo.Filter(users, func(u User, _ int) bool { return u.IsAdmin || u.IsDelegatedAdmin })
	accounts := lo.Map(admins, func(u User, _ int) *engine.RawFinding {
		return engine.NewRawFinding().
			Set("email", u.Email).
			Set("name", u.Name).
			Set("is_super_admin", u.IsAdmin && !u.IsDelegatedAdmin).
			Set("has_2fa", u.EnrolledIn2SV).
			Set("suspended", u.Suspended)
	})

	rec := "Admin account count is reasonable. Ensure all admins have hardware security keys."
	if len(admins) > 2 {
		rec = "Review admin access. Limit super admin privileges to essential personnel only."
	}
	return newPayload(env, "check_admin_roles").
		Set("total_admin_users", len(admins)).
		Set("super_admins", lo.CountBy(admins, func(u User) bool { return u.IsAdmin && !u.IsDelegatedAdmin })).
		Set("delegated_admins", lo.CountBy(admins, func(u User) bool { return u.IsDelegatedAdmin })).
		Set("admin_accounts", accounts).
		Set("recommendation", rec).
		Set("licensing_note", "Admin role management is included in all Google Workspace editions."), nil
}

func checkGroupsExternal(ctx context.Context, env *Env) (*engine.RawFinding, error) {
	groups, err := env.Directory.Groups(ctx)
	if err != nil {
		return nil, err
	}
	details := []*engine.RawFinding{}
	for _, g := range groups {
		members, err := env.Directory.GroupMembers(ctx, g.Email)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			env.log().WithField("group", g.Email).Debugf("skipping group: %v", err)
			continue
		}
		external := lo.Filter(members, func(m Member, _ int) bool { return env.isExternal(m.Email) })
		if len(external) == 0 {
			continue
		}
		details = append(details, engine.NewRawFinding().
			Set("group_email", g.Email).
			Set("group_name", g.Name).
			Set("external_member_count", len(external)).
			Set("external_members", lo.Map(external, func(m Member, _ int) string { return m.Email })))
	}

	rec := "No groups found with external members."
	if len(details) > 0 {
		rec = "Review groups with external members. Ensure external access is authorized and necessary. Remove external members from groups that handle CUI or PHI."
	}
	return newPayload(env, "check_groups_external_members").
		Set("total_groups", len(groups)).
		Set("groups_with_external_members", len(details)).
		Set("external_access_details", details).
		Set("recommendation", rec).
		Set("licensing_note", "Group management included in all Google Workspace editions."), nil
}

// inactive returns the unsuspended users with no login since cutoff.
func inactive(users []User, cutoff time.Time) []User {
	return lo.Filter(users, func(u User, _ int) bool {
		return !u.Suspended && (u.LastLogin.IsZero() || u.LastLogin.Before(cutoff))
	})
}

func checkInactiveAccounts(ctx context.Context, env *Env) (*engine.RawFinding, error) {
	users, err := env.Directory.Users(ctx)
	if err != nil {
		return nil, err
	}
	now := env.now()
	stale := inactive(users, now.Add(-inactiveAfter))
	details := lo.Map(stale, func(u User, _ int) *engine.RawFinding {
		d := engine.NewRawFinding().Set("email", u.Email).Set("name", u.Name)
		if u.LastLogin.IsZero() {
			d.Set("last_login", "Never").Set("days_since_login", "N/A")
		} else {
			d.Set("last_login", u.LastLogin.UTC().Format(time.RFC3339)).
				Set("days_since_login", int(now.Sub(u.LastLogin).Hours()/24))
		}
		return d.Set("is_admin", u.IsAdmin)
	})

	rec := "No inactive accounts found."
	if len(stale) > 0 {
		rec = fmt.Sprintf("Found %d inactive accounts. Suspend or remove accounts that are no longer needed. This reduces security risk and may save on licensing costs.", len(stale))
	}
	return newPayload(env, "check_inactive_accounts").
		Set("total_users", len(users)).
		Set("inactive_accounts", len(stale)).
		Set("inactive_account_details", details).
		Set("recommendation", rec).
		Set("licensing_note", "Inactive accounts still consume licenses and cost money.").
		Set("msp_value", "Potential cost savings: ~$6-12/month per inactive license removed."), nil
}

func checkSuspiciousActivity(ctx context.Context, env *Env) (*engine.RawFinding, error) {
	events, err := env.Directory.LoginEvents(ctx, env.now().Add(-suspiciousWindow))
	if err != nil {
		return nil, err
	}
	flagged := lo.Filter(events, func(e LoginEvent, _ int) bool {
		return len(lo.Intersect(e.Events, suspiciousEvents)) > 0
	})
	details := lo.Map(lo.Slice(flagged, 0, detailLimit), func(e LoginEvent, _ int) *engine.RawFinding {
		d := engine.NewRawFinding().Set("user", e.Actor)
		if len(e.Events) > 0 {
			d.Set("event_type", e.Events[0])
		}
		return d.Set("timestamp", e.Time).Set("ip_address", e.IPAddress)
	})

	rec := "No suspicious activity detected in the last 7 days."
	if len(flagged) > 0 {
		rec = "Review suspicious login attempts. Investigate failed logins and implement account lockout policies if needed."
	}
	return newPayload(env, "check_suspicious_activity").
		Set("check_period", "Last 7 days").
		Set("suspicious_events_found", len(flagged)).
		Set("event_details", details).
		Set("recommendation", rec).
		Set("licensing_note", "Security alerts included in all editions."), nil
}

func checkMobileDevices(ctx context.Context, env *Env) (*engine.RawFinding, error) {
	devices, err := env.Directory.MobileDevices(ctx)
	if err != nil {
		return nil, err
	}
	approved := lo.CountBy(devices, func(d MobileDevice) bool { return d.Status == "APPROVED" })
	unencrypted := lo.Filter(devices, func(d MobileDevice, _ int) bool {
		return d.EncryptionStatus == "" || d.EncryptionStatus == "NOT_ENCRYPTED"
	})
	details := lo.Map(lo.Slice(unencrypted, 0, detailLimit), func(d MobileDevice, _ int) *engine.RawFinding {
		return engine.NewRawFinding().
			Set("model", lo.Ternary(d.Model == "", "Unknown", d.Model)).
			Set("os", lo.Ternary(d.OS == "", "Unknown", d.OS)).
			Set("type", d.Type).
			Set("email", d.Email).
			Set("last_sync", d.LastSync).
			Set("device_id", d.ResourceID)
	})

	unapproved := len(devices) - approved
	rec := "All mobile devices are approved and encrypted."
	if unapproved > 0 || len(unencrypted) > 0 {
		rec = "Review and approve all devices. Enforce encryption on all mobile devices accessing company data."
	}
	return newPayload(env, "check_mobile_devices").
		Set("total_mobile_devices", len(devices)).
		Set("approved_devices", approved).
		Set("unapproved_devices", unapproved).
		Set("unencrypted_devices", len(unencrypted)).
		Set("unencrypted_device_details", details).
		Set("recommendation", rec).
		Set("licensing_note", "Mobile device management is included in all Google Workspace editions."), nil
}

func checkSharedDrives(ctx context.Context, env *Env) (*engine.RawFinding, error) {
	drives, err := env.Directory.SharedDrives(ctx)
	if err != nil {
		return nil, err
	}
	details := []*engine.RawFinding{}
	for _, d := range drives {
		perms, err := env.Directory.DrivePermissions(ctx, d.ID)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			env.log().WithField("drive", d.ID).Debugf("skipping drive: %v", err)
			continue
		}
		external := lo.Filter(perms, func(p Permission, _ int) bool {
			return p.Type == "user" && p.EmailAddress != "" && env.isExternal(p.EmailAddress)
		})
		if len(external) == 0 {
			continue
		}
		details = append(details, engine.NewRawFinding().
			Set("drive_name", d.Name).
			Set("drive_id", d.ID).
			Set("external_users", len(external)).
			Set("external_emails", lo.Map(external, func(p Permission, _ int) string { return p.EmailAddress })))
	}

	rec := "No shared drives found with external access."
	if len(details) > 0 {
		rec = "Review shared drives with external access. Remove external users from drives containing sensitive data (CUI/PHI)."
	}
	return newPayload(env, "check_shared_drives").
		Set("total_shared_drives", len(drives)).
		Set("drives_with_external_access", len(details)).
		Set("external_access_details", details).
		Set("recommendation", rec).
		Set("licensing_note", "Shared drives available in Business Standard and above."), nil
}

func checkLicenseUtilization(ctx context.Context, env *Env) (*engine.RawFinding, error) {
	users, err := env.Directory.Users(ctx)
	if err != nil {
		return nil, err
	}
	suspended := lo.CountBy(users, func(u User) bool { return u.Suspended })
	active := len(users) - suspended
	idle := len(inactive(users, env.now().Add(-inactiveAfter)))
	wasted := idle * licenseCostPerUser

	rec := "License utilization is optimal."
	if idle > 0 {
		rec = fmt.Sprintf("Remove or suspend %d inactive licenses to save approximately $%d/month.", idle, wasted)
	}
	return newPayload(env, "check_license_utilization").
		Set("total_users", len(users)).
		Set("active_users", active).
		Set("suspended_users", suspended).
		Set("inactive_but_licensed", idle).
		Set("estimated_monthly_cost", fmt.Sprintf("$%d", active*licenseCostPerUser)).
		Set("potential_savings", fmt.Sprintf("$%d/month", wasted)).
		Set("msp_recommendation", rec).
		Set("licensing_note", "All users with accounts consume licenses, even if inactive."), nil
}

func checkStorageUsage(ctx context.Context, env *Env) (*engine.RawFinding, error) {
	users, err := env.Directory.Users(ctx)
	if err != nil {
		return nil, err
	}
	usage, err := env.Directory.StorageUsage(ctx)
	if err != nil {
		return nil, err
	}
	names := lo.SliceToMap(users, func(u User) (string, string) { return u.Email, u.Name })
	usage = append([]StorageUsage(nil), usage...)
	sort.SliceStable(usage, func(i, j int) bool { return usage[i].BytesUsed > usage[j].BytesUsed })

	var total int64
	for _, u := range usage {
		total += u.BytesUsed
	}
	top := lo.Map(lo.Slice(usage, 0, detailLimit), func(u StorageUsage, _ int) *engine.RawFinding {
		return engine.NewRawFinding().
			Set("email", u.Email).
			Set("name", names[u.Email]).
			Set("storage_used_bytes", u.BytesUsed).
			Set("storage_used_gb", gigabytes(u.BytesUsed, 1))
	})

	avg := "0.00"
	if len(users) > 0 {
		avg = gigabytes(total, len(users))
	}
	return newPayload(env, "check_storage_usage").
		Set("total_users", len(users)).
		Set("total_storage_used_gb", gigabytes(total, 1)).
		Set("average_per_user_gb", avg).
		Set("top_storage_consumers", top).
		Set("msp_recommendation", "Monitor storage growth. Consider archival policies for users approaching quota limits.").
		Set("licensing_note", "Storage quotas vary by edition: Business Starter (30GB/user), Business Standard (2TB/user), Business Plus/Enterprise (5TB+ pooled)."), nil
}

func gigabytes(bytes int64, per int) string {
	return fmt.Sprintf("%.2f", float64(bytes)/float64(per)/bytesPerGB)
}
