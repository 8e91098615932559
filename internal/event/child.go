package event

import (
	"fmt"
	"time"
)

// Child is a tracked child profile.
//
// UID is remote-assigned and stable; profile metadata (name, birthdate)
// may be refreshed on sync. Children are created on first sync and never
// deleted while the account is configured.
type Child struct {
	UID       string
	Name      string
	Birthdate time.Time
}

// Validate checks the structural invariants of the child.
func (c Child) Validate() error {
	if c.UID == "" {
		return fmt.Errorf("child missing uid")
	}
	if c.Name == "" {
		return fmt.Errorf("child %s: missing name", c.UID)
	}
	return nil
}
