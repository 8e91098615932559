package gateway

import (
	"fmt"
	"time"

	"github.com/roach88/naptrack/internal/event"
)

// CommandType enumerates the remote mutations the engine can issue.
// The set is closed: one value per dispatcher operation.
type CommandType string

const (
	CmdStartSleep      CommandType = "start_sleep"
	CmdPauseSleep      CommandType = "pause_sleep"
	CmdResumeSleep     CommandType = "resume_sleep"
	CmdCancelSleep     CommandType = "cancel_sleep"
	CmdCompleteSleep   CommandType = "complete_sleep"
	CmdStartFeeding    CommandType = "start_feeding"
	CmdPauseFeeding    CommandType = "pause_feeding"
	CmdResumeFeeding   CommandType = "resume_feeding"
	CmdCancelFeeding   CommandType = "cancel_feeding"
	CmdCompleteFeeding CommandType = "complete_feeding"
	CmdSwitchSide      CommandType = "switch_side"
	CmdLogDiaper       CommandType = "log_diaper"
	CmdLogGrowth       CommandType = "log_growth"
	CmdLogBottle       CommandType = "log_bottle"
)

// Kind returns the activity kind the command belongs to.
func (t CommandType) Kind() event.Kind {
	switch t {
	case CmdStartSleep, CmdPauseSleep, CmdResumeSleep, CmdCancelSleep, CmdCompleteSleep:
		return event.KindSleep
	case CmdStartFeeding, CmdPauseFeeding, CmdResumeFeeding, CmdCancelFeeding, CmdCompleteFeeding,
		CmdSwitchSide, CmdLogBottle:
		return event.KindFeeding
	case CmdLogDiaper:
		return event.KindDiaper
	case CmdLogGrowth:
		return event.KindGrowth
	}
	return ""
}

// SessionCommand reports whether the command drives an activity state
// machine. Logging commands (diaper, growth, bottle) are one-shot and do
// not touch activity state.
func (t CommandType) SessionCommand() bool {
	switch t {
	case CmdLogDiaper, CmdLogGrowth, CmdLogBottle:
		return false
	}
	return t != ""
}

// BottleDetails is the payload of a CmdLogBottle command.
type BottleDetails struct {
	Amount float64
	Units  string
	Type   string
}

// Command is one remote mutation request.
//
// Token is a locally generated correlation id (UUIDv7) so mutations can be
// traced through logs. At carries the caller-supplied timestamp for
// complete/log commands; zero means "now" as decided by the backend.
type Command struct {
	Type     CommandType
	ChildUID string
	Token    string
	At       time.Time

	// Payloads, set per Type.
	Side   event.Side           // start_feeding, switch_side
	Diaper *event.DiaperDetails // log_diaper
	Growth *event.GrowthDetails // log_growth
	Bottle *BottleDetails       // log_bottle
}

// Validate checks that the command carries the payload its type requires.
func (c Command) Validate() error {
	if c.ChildUID == "" {
		return fmt.Errorf("command %s: missing child uid", c.Type)
	}
	switch c.Type {
	case CmdLogDiaper:
		if c.Diaper == nil {
			return fmt.Errorf("command %s: missing diaper payload", c.Type)
		}
		if !c.Diaper.Mode.Valid() {
			return fmt.Errorf("command %s: unknown diaper mode %q", c.Type, c.Diaper.Mode)
		}
	case CmdLogGrowth:
		if c.Growth == nil || c.Growth.Empty() {
			return fmt.Errorf("command %s: missing growth measurements", c.Type)
		}
	case CmdLogBottle:
		if c.Bottle == nil || c.Bottle.Amount <= 0 {
			return fmt.Errorf("command %s: missing bottle amount", c.Type)
		}
	case CmdStartFeeding:
		if c.Side == "" {
			return fmt.Errorf("command %s: missing side", c.Type)
		}
	case "":
		return fmt.Errorf("command missing type")
	}
	return nil
}
