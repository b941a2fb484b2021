package checks

import (
	"context"
	"time"
)

// Directory is the read-only view of a Workspace tenant the checks need.
type Directory interface {
	Users(ctx context.Context) ([]User, error)
	Groups(ctx context.Context) ([]Group, error)
	GroupMembers(ctx context.Context, groupKey string) ([]Member, error)
	MobileDevices(ctx context.Context) ([]MobileDevice, error)
	LoginEvents(ctx context.Context, since time.Time) ([]LoginEvent, error)
	SharedDrives(ctx context.Context) ([]SharedDrive, error)
	DrivePermissions(ctx context.Context, driveID string) ([]Permission, error)
	StorageUsage(ctx context.Context) ([]StorageUsage, error)
}

type User struct {
	Email            string
	Name             string
	IsAdmin          bool
	IsDelegatedAdmin bool
	EnrolledIn2SV    bool
	Suspended        bool
	// LastLogin is zero for accounts that never signed in.
	LastLogin time.Time
}

type Group struct {
	Email string
	Name  string
}

type Member struct {
	Email string
	Type  string
}

type MobileDevice struct {
	ResourceID       string
	Model            string
	OS               string
	Type             string
	Email            string
	Status           string
	EncryptionStatus string
	LastSync         string
}

// LoginEvent is one login audit activity with the names of its events.
type LoginEvent struct {
	Actor     string
	Events    []string
	Time      string
	IPAddress string
}

type SharedDrive struct {
	ID   string
	Name string
}

type Permission struct {
	Type         string
	Role         string
	EmailAddress string
	Domain       string
}

// StorageUsage is the storage a user consumes, in bytes.
type StorageUsage struct {
	Email     string
	BytesUsed int64
}
