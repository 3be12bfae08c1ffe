package models

import "time"

// Default class parameters applied when an administrator does not override
// them. The limits mirror what WIMS servers accept at class creation.
const (
	// DefaultClassLimit is the default maximum number of students per class.
	DefaultClassLimit = 150
	// MinClassLimit is the smallest accepted class size limit.
	MinClassLimit = 5
	// MaxClassLimit is the largest accepted class size limit.
	MaxClassLimit = 500
	// DefaultClassExpirationDays is the default class lifetime before expiration.
	DefaultClassExpirationDays = 365
)

// Provider represents a WIMS server classes are provisioned on.
//
// Ident, Passwd and RClass authenticate this service against the WIMS
// adm/raw API, see https://wimsapi.readthedocs.io/#configuration for
// more information.
type Provider struct {
	// ID is the unique identifier for the provider.
	ID uint64 `gorm:"primaryKey"`
	// Name is the display name of the WIMS server.
	Name string `gorm:"size:2048;not null"`
	// URL points to the WIMS server's CGI, including scheme,
	// e.g. 'https://wims.example.org/wims/wims.cgi'. Unique.
	URL string `gorm:"size:2048;uniqueIndex;not null"`
	// ClassLimit is the default maximum number of students used at class
	// creation, bounded to [MinClassLimit, MaxClassLimit]. It can later be
	// changed per class on the WIMS server by the supervisor.
	ClassLimit uint `gorm:"not null;default:150"`
	// ExpirationDays is the default class duration in days used at class
	// creation before the class expires on the WIMS server.
	ExpirationDays uint `gorm:"not null;default:365"`
	// Ident is the identifier of this service on the WIMS server.
	Ident string `gorm:"size:2048;not null"`
	// Passwd is the password of this service on the WIMS server.
	Passwd string `gorm:"size:2048;not null"`
	// RClass is the identifier used for each class created on this WIMS server.
	RClass string `gorm:"size:2048;not null"`
	// AllowedConsumers is the allow-list of LMS instances that may
	// provision classes on this WIMS server.
	AllowedConsumers []Consumer `gorm:"many2many:provider_consumers"`
	// CreatedAt is the timestamp when the provider was created (managed by GORM).
	CreatedAt time.Time
	// UpdatedAt is the timestamp when the provider was last updated (managed by GORM).
	UpdatedAt time.Time
}

// TableName specifies the database table name for the Provider model.
func (Provider) TableName() string {
	return "providers"
}
