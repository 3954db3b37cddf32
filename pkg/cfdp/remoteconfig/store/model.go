package store

import "time"

// Model is the GORM-mapped representation of one remote entity
// configuration row. Table, the in-memory representation handlers
// consult, never imports this package; only LoadInto and the
// control-plane API's write path do.
type Model struct {
	EntityID uint64 `gorm:"primaryKey"`

	DefaultTransmissionMode int  `gorm:"not null;default:0"`
	DefaultClosureRequested bool `gorm:"not null;default:false"`
	DefaultChecksumType     int  `gorm:"not null;default:1"`
	ACKTimeoutMS            int  `gorm:"not null;default:10000"`
	ACKLimit                int `gorm:"not null;default:3"`
	NAKTimeoutMS            int `gorm:"not null;default:10000"`
	NAKLimit                int `gorm:"not null;default:3"`
	KeepAliveIntervalMS     int `gorm:"not null;default:30000"`
	CheckLimit              int `gorm:"not null;default:3"`
	InactivityTimeoutMS     int `gorm:"not null;default:60000"`
	DeferredNAKEnabled      bool `gorm:"not null;default:true"`
	ImmediateNAKEnabled     bool `gorm:"not null;default:true"`
	MaxFileSegmentLen       int  `gorm:"not null;default:1024"`
	MaxPacketLen            int  `gorm:"not null;default:1024"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName pins the GORM table name rather than relying on
// pluralization of "Model", which would collide across packages.
func (Model) TableName() string {
	return "remote_configs"
}

// AllModels lists every model this package migrates, mirroring the
// donor's models.AllModels() call site in GormStore's constructor.
func AllModels() []any {
	return []any{&Model{}}
}
