package checks

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2/google"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
	admin "google.golang.org/api/admin/directory/v1"
	reports "google.golang.org/api/admin/reports/v1"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/user/workspace-audit/pkg/logging"
)

const (
	DefaultCustomer     = "my_customer"
	DefaultRequestDelay = 100 * time.Millisecond
	usersPageSize       = 500
	storageReportLag    = 3 * 24 * time.Hour
)

// Scopes are the read-only scopes the service account must be granted through
// domain-wide delegation.
var Scopes = []string{
	admin.AdminDirectoryUserReadonlyScope,
	admin.AdminDirectoryRolemanagementReadonlyScope,
	admin.AdminDirectoryGroupReadonlyScope,
	admin.AdminDirectoryDeviceMobileReadonlyScope,
	reports.AdminReportsAuditReadonlyScope,
	reports.AdminReportsUsageReadonlyScope,
	drive.DriveReadonlyScope,
}

// GoogleConfig configures access to the Admin SDK and Drive APIs.
type GoogleConfig struct {
	CredentialsFile string
	AdminEmail      string
	Customer        string
	RequestDelay    time.Duration
	// Options are appended to the client options, mainly for tests.
	Options []option.ClientOption
}

// GoogleDirectory reads the tenant through the Google APIs. Every request, from any
// goroutine, waits on one shared limiter so pages are spaced by RequestDelay.
type GoogleDirectory struct {
	dir      *admin.Service
	reports  *reports.Service
	drive    *drive.Service
	customer string
	limiter  *rate.Limiter
	log      *logging.Logger
	now      func() time.Time

	sf    singleflight.Group
	mu    sync.Mutex
	users []User
}

// NewGoogleDirectory builds the API clients. The service account key is only read
// and forwarded; it impersonates AdminEmail.
func NewGoogleDirectory(ctx context.Context, cfg GoogleConfig, log *logging.Logger) (*GoogleDirectory, error) {
	opts := append([]option.ClientOption{}, cfg.Options...)
	if cfg.CredentialsFile != "" {
		data, err := os.ReadFile(cfg.CredentialsFile)
		if err != nil {
			return nil, fmt.Errorf("reading credentials: %w", err)
		}
		creds, err := google.CredentialsFromJSONWithParams(ctx, data, google.CredentialsParams{
			Scopes:  Scopes,
			Subject: cfg.AdminEmail,
		})
		if err != nil {
			return nil, fmt.Errorf("parsing credentials: %w", err)
		}
		opts = append(opts, option.WithCredentials(creds))
	} else if len(cfg.Options) == 0 {
		return nil, errors.New("no credentials file configured")
	}

	dirSvc, err := admin.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating directory client: %w", err)
	}
	reportsSvc, err := reports.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating reports client: %w", err)
	}
	driveSvc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating drive client: %w", err)
	}

	customer := cfg.Customer
	if customer == "" {
		customer = DefaultCustomer
	}
	delay := cfg.RequestDelay
	if delay <= 0 {
		delay = DefaultRequestDelay
	}
	if log == nil {
		log = logging.NewTestLog()
	}
	return &GoogleDirectory{
		dir:      dirSvc,
		reports:  reportsSvc,
		drive:    driveSvc,
		customer: customer,
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
		log:      log,
		now:      time.Now,
	}, nil
}

func (g *GoogleDirectory) wait(ctx context.Context) error {
	return g.limiter.Wait(ctx)
}

// Users lists every user once per directory; later calls reuse the first result.
func (g *GoogleDirectory) Users(ctx context.Context) ([]User, error) {
	g.mu.Lock()
	cached := g.users
	g.mu.Unlock()
	if cached != nil {
		return cached, nil
	}

	v, err, _ := g.sf.Do("users", func() (interface{}, error) {
		users, err := g.fetchUsers(ctx)
		if err != nil {
			return nil, err
		}
		g.mu.Lock()
		g.users = users
		g.mu.Unlock()
		return users, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]User), nil
}

func (g *GoogleDirectory) fetchUsers(ctx context.Context) ([]User, error) {
	users := []User{}
	token := ""
	for page := 1; ; page++ {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := g.dir.Users.List().Customer(g.customer).MaxResults(usersPageSize).
			PageToken(token).Context(ctx).Do()
		if err != nil {
			return nil, apiError("listing users", err)
		}
		for _, u := range resp.Users {
			users = append(users, convertUser(u))
		}
		g.log.Debugf("users page %d: %d users", page, len(resp.Users))
		if token = resp.NextPageToken; token == "" {
			return users, nil
		}
	}
}

func convertUser(u *admin.User) User {
	out := User{
		Email:            u.PrimaryEmail,
		IsAdmin:          u.IsAdmin,
		IsDelegatedAdmin: u.IsDelegatedAdmin,
		EnrolledIn2SV:    u.IsEnrolledIn2Sv,
		Suspended:        u.Suspended,
		LastLogin:        parseLoginTime(u.LastLoginTime),
	}
	if u.Name != nil {
		out.Name = u.Name.FullName
	}
	return out
}

// parseLoginTime maps the API's epoch placeholder and bad values to zero.
func parseLoginTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil || t.Year() <= 1970 {
		return time.Time{}
	}
	return t
}

func (g *GoogleDirectory) Groups(ctx context.Context) ([]Group, error) {
	groups := []Group{}
	token := ""
	for {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := g.dir.Groups.List().Customer(g.customer).MaxResults(200).
			PageToken(token).Context(ctx).Do()
		if err != nil {
			return nil, apiError("listing groups", err)
		}
		for _, gr := range resp.Groups {
			groups = append(groups, Group{Email: gr.Email, Name: gr.Name})
		}
		if token = resp.NextPageToken; token == "" {
			return groups, nil
		}
	}
}

func (g *GoogleDirectory) GroupMembers(ctx context.Context, groupKey string) ([]Member, error) {
	members := []Member{}
	token := ""
	for {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := g.dir.Members.List(groupKey).MaxResults(200).PageToken(token).Context(ctx).Do()
		if err != nil {
			return nil, apiError("listing members of "+groupKey, err)
		}
		for _, m := range resp.Members {
			members = append(members, Member{Email: m.Email, Type: m.Type})
		}
		if token = resp.NextPageToken; token == "" {
			return members, nil
		}
	}
}

func (g *GoogleDirectory) MobileDevices(ctx context.Context) ([]MobileDevice, error) {
	devices := []MobileDevice{}
	token := ""
	for {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := g.dir.Mobiledevices.List(g.customer).MaxResults(100).PageToken(token).Context(ctx).Do()
		if err != nil {
			return nil, apiError("listing mobile devices", err)
		}
		for _, d := range resp.Mobiledevices {
			dev := MobileDevice{
				ResourceID:       d.ResourceId,
				Model:            d.Model,
				OS:               d.Os,
				Type:             d.Type,
				Status:           d.Status,
				EncryptionStatus: d.EncryptionStatus,
				LastSync:         d.LastSync,
			}
			if len(d.Email) > 0 {
				dev.Email = d.Email[0]
			}
			devices = append(devices, dev)
		}
		if token = resp.NextPageToken; token == "" {
			return devices, nil
		}
	}
}

func (g *GoogleDirectory) LoginEvents(ctx context.Context, since time.Time) ([]LoginEvent, error) {
	events := []LoginEvent{}
	token := ""
	for {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := g.reports.Activities.List("all", "login").StartTime(since.UTC().Format(time.RFC3339)).
			MaxResults(1000).PageToken(token).Context(ctx).Do()
		if err != nil {
			return nil, apiError("listing login activity", err)
		}
		for _, a := range resp.Items {
			ev := LoginEvent{IPAddress: a.IpAddress}
			if a.Actor != nil {
				ev.Actor = a.Actor.Email
			}
			if a.Id != nil {
				ev.Time = a.Id.Time
			}
			for _, e := range a.Events {
				ev.Events = append(ev.Events, e.Name)
			}
			events = append(events, ev)
		}
		if token = resp.NextPageToken; token == "" {
			return events, nil
		}
	}
}

func (g *GoogleDirectory) SharedDrives(ctx context.Context) ([]SharedDrive, error) {
	drives := []SharedDrive{}
	token := ""
	for {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := g.drive.Drives.List().PageSize(100).PageToken(token).Context(ctx).Do()
		if err != nil {
			return nil, apiError("listing shared drives", err)
		}
		for _, d := range resp.Drives {
			drives = append(drives, SharedDrive{ID: d.Id, Name: d.Name})
		}
		if token = resp.NextPageToken; token == "" {
			return drives, nil
		}
	}
}

func (g *GoogleDirectory) DrivePermissions(ctx context.Context, driveID string) ([]Permission, error) {
	perms := []Permission{}
	token := ""
	for {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := g.drive.Permissions.List(driveID).SupportsAllDrives(true).
			Fields(googleapi.Field("nextPageToken,permissions(emailAddress,type,role,domain)")).
			PageToken(token).Context(ctx).Do()
		if err != nil {
			return nil, apiError("listing permissions of drive "+driveID, err)
		}
		for _, p := range resp.Permissions {
			perms = append(perms, Permission{Type: p.Type, Role: p.Role, EmailAddress: p.EmailAddress, Domain: p.Domain})
		}
		if token = resp.NextPageToken; token == "" {
			return perms, nil
		}
	}
}

// StorageUsage reads per-user quota use from the usage report of a few days ago,
// the most recent date the report is reliably available for.
func (g *GoogleDirectory) StorageUsage(ctx context.Context) ([]StorageUsage, error) {
	date := g.now().Add(-storageReportLag).Format("2006-01-02")
	usage := []StorageUsage{}
	token := ""
	for {
		if err := g.wait(ctx); err != nil {
			return nil, err
		}
		resp, err := g.reports.UserUsageReport.Get("all", date).Parameters("accounts:used_quota_in_mb").
			PageToken(token).Context(ctx).Do()
		if err != nil {
			return nil, apiError("reading usage report", err)
		}
		for _, r := range resp.UsageReports {
			if r.Entity == nil {
				continue
			}
			u := StorageUsage{Email: r.Entity.UserEmail}
			for _, p := range r.Parameters {
				if p.Name == "accounts:used_quota_in_mb" {
					u.BytesUsed = p.IntValue * 1024 * 1024
				}
			}
			usage = append(usage, u)
		}
		if token = resp.NextPageToken; token == "" {
			return usage, nil
		}
	}
}

// apiError adds a hint for the failures an operator can fix in the admin console.
func apiError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch gerr.Code {
		case http.StatusForbidden, http.StatusUnauthorized:
			return fmt.Errorf("%s: %w (check API enablement and domain-wide delegation scopes: %s)",
				op, err, strings.Join(Scopes, " "))
		case http.StatusTooManyRequests:
			return fmt.Errorf("%s: rate limited: %w", op, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
