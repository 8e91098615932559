package gateway

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/naptrack/internal/event"
)

func TestCommand_Validate(t *testing.T) {
	require.NoError(t, Command{Type: CmdStartSleep, ChildUID: "mia"}.Validate())
	require.NoError(t, Command{
		Type: CmdStartFeeding, ChildUID: "mia", Side: event.SideLeft,
	}.Validate())

	assert.ErrorContains(t, Command{Type: CmdStartSleep}.Validate(), "missing child uid")
	assert.ErrorContains(t, Command{ChildUID: "mia"}.Validate(), "missing type")
	assert.ErrorContains(t, Command{Type: CmdStartFeeding, ChildUID: "mia"}.Validate(), "missing side")
	assert.ErrorContains(t, Command{Type: CmdLogDiaper, ChildUID: "mia"}.Validate(), "missing diaper payload")
	assert.ErrorContains(t, Command{
		Type: CmdLogDiaper, ChildUID: "mia",
		Diaper: &event.DiaperDetails{Mode: "soggy"},
	}.Validate(), "unknown diaper mode")
	assert.ErrorContains(t, Command{Type: CmdLogGrowth, ChildUID: "mia", Growth: &event.GrowthDetails{}}.Validate(), "missing growth measurements")
	assert.ErrorContains(t, Command{Type: CmdLogBottle, ChildUID: "mia", Bottle: &BottleDetails{}}.Validate(), "missing bottle amount")
}

func TestCommandType_Kind(t *testing.T) {
	assert.Equal(t, event.KindSleep, CmdPauseSleep.Kind())
	assert.Equal(t, event.KindFeeding, CmdSwitchSide.Kind())
	assert.Equal(t, event.KindFeeding, CmdLogBottle.Kind())
	assert.Equal(t, event.KindDiaper, CmdLogDiaper.Kind())
	assert.Equal(t, event.KindGrowth, CmdLogGrowth.Kind())
}

func TestCommandType_SessionCommand(t *testing.T) {
	assert.True(t, CmdStartSleep.SessionCommand())
	assert.True(t, CmdSwitchSide.SessionCommand())
	assert.False(t, CmdLogBottle.SessionCommand())
	assert.False(t, CmdLogDiaper.SessionCommand())
	assert.False(t, CommandType("").SessionCommand())
}

func TestUnavailable_FailsEverything(t *testing.T) {
	ctx := context.Background()
	var gw Unavailable

	_, err := gw.Subscribe(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = gw.Mutate(ctx, Command{Type: CmdStartSleep, ChildUID: "mia"})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = gw.FetchRange(ctx, "mia", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrUnavailable)
	_, err = gw.Children(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}
