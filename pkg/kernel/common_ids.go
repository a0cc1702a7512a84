// Package kernel holds the small set of types shared by every bounded
// context: tenant/job identifiers, the request-scoped auth context, and
// generic pagination containers.
package kernel

// TenantID identifies the account entity that owns API keys, jobs and credits.
type TenantID string

func NewTenantID(id string) TenantID { return TenantID(id) }
func (t TenantID) String() string    { return string(t) }
func (t TenantID) IsEmpty() bool     { return string(t) == "" }

// UserID identifies a dashboard user.
type UserID string

func NewUserID(id string) UserID { return UserID(id) }
func (u UserID) String() string  { return string(u) }
func (u UserID) IsEmpty() bool   { return string(u) == "" }

// JobID identifies a capture or render job.
type JobID string

func NewJobID(id string) JobID { return JobID(id) }
func (j JobID) String() string { return string(j) }
func (j JobID) IsEmpty() bool  { return string(j) == "" }
