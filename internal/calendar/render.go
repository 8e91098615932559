package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/naptrack/internal/event"
)

// RenderedEvent is the calendar presentation of one event.
type RenderedEvent struct {
	Summary     string    `json:"summary"`
	Description string    `json:"description"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
}

// Render produces the calendar summary and description for an event.
// Instantaneous events render with End = Start; a session still in
// progress renders with End = Start as well, marked in the summary.
func Render(ev event.Event) RenderedEvent {
	r := RenderedEvent{Start: ev.Start, End: ev.EffectiveEnd()}

	switch ev.Kind {
	case event.KindSleep:
		r.Summary, r.Description = renderSleep(ev)
	case event.KindFeeding:
		r.Summary, r.Description = renderFeeding(ev)
	case event.KindDiaper:
		r.Summary, r.Description = renderDiaper(ev)
	case event.KindGrowth:
		r.Summary, r.Description = renderGrowth(ev)
	}
	return r
}

// RenderAll renders a slice of events in order.
func RenderAll(evs []event.Event) []RenderedEvent {
	out := make([]RenderedEvent, len(evs))
	for i, ev := range evs {
		out[i] = Render(ev)
	}
	return out
}

func renderSleep(ev event.Event) (summary, description string) {
	if ev.End == nil {
		return "Sleep (in progress)", "Sleep in progress"
	}
	d := formatDuration(ev.Duration())
	return fmt.Sprintf("Sleep (%s)", d), fmt.Sprintf("Sleep duration: %s", d)
}

func renderFeeding(ev event.Event) (summary, description string) {
	f := ev.Feeding
	if f == nil {
		return "Feed", "Feeding"
	}

	if f.Side == event.SideBottle {
		parts := []string{fmt.Sprintf("%g", f.BottleAmount)}
		if f.BottleUnits != "" {
			parts = append(parts, f.BottleUnits)
		}
		if f.BottleType != "" {
			parts = append(parts, f.BottleType)
		}
		bottle := strings.Join(parts, " ")
		return fmt.Sprintf("Bottle (%s)", bottle), fmt.Sprintf("Bottle feed: %s", bottle)
	}

	left := int(f.LeftDuration.Round(time.Minute) / time.Minute)
	right := int(f.RightDuration.Round(time.Minute) / time.Minute)
	total := left + right

	sides := []string{}
	if left > 0 {
		sides = append(sides, fmt.Sprintf("L:%dm", left))
	}
	if right > 0 {
		sides = append(sides, fmt.Sprintf("R:%dm", right))
	}
	sidesStr := strings.Join(sides, " ")
	if sidesStr == "" {
		sidesStr = fmt.Sprintf("%dm", total)
	}

	summary = fmt.Sprintf("Feed (%s)", sidesStr)
	description = fmt.Sprintf("Feeding - Total: %d minutes", total)
	if left > 0 {
		description += fmt.Sprintf("\nLeft: %d minutes", left)
	}
	if right > 0 {
		description += fmt.Sprintf("\nRight: %d minutes", right)
	}
	return summary, description
}

func renderDiaper(ev event.Event) (summary, description string) {
	d := ev.Diaper
	if d == nil {
		return "Diaper", "Diaper change"
	}

	summary = fmt.Sprintf("Diaper (%s)", capitalize(string(d.Mode)))
	description = fmt.Sprintf("Diaper change: %s", d.Mode)
	if d.PooColor != "" {
		description += fmt.Sprintf("\nColor: %s", d.PooColor)
	}
	if d.PooConsistency != "" {
		description += fmt.Sprintf("\nConsistency: %s", d.PooConsistency)
	}
	if d.Amount != "" {
		description += fmt.Sprintf("\nAmount: %s", d.Amount)
	}
	return summary, description
}

func renderGrowth(ev event.Event) (summary, description string) {
	summary = "Growth Measurement"
	description = "Growth tracking:"

	g := ev.Growth
	if g == nil {
		return summary, description
	}
	if g.Weight != nil {
		description += fmt.Sprintf("\nWeight: %g", *g.Weight)
	}
	if g.Height != nil {
		description += fmt.Sprintf("\nHeight: %g", *g.Height)
	}
	if g.HeadCircumference != nil {
		description += fmt.Sprintf("\nHead: %g", *g.HeadCircumference)
	}
	return summary, description
}

// formatDuration renders a duration as "2h 15m", "2h", or "45m".
func formatDuration(d time.Duration) string {
	minutes := int(d.Round(time.Minute) / time.Minute)
	if minutes >= 60 {
		h, m := minutes/60, minutes%60
		if m > 0 {
			return fmt.Sprintf("%dh %dm", h, m)
		}
		return fmt.Sprintf("%dh", h)
	}
	return fmt.Sprintf("%dm", minutes)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
