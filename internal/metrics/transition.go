package metrics

import "time"

// Alert names used on the wire and in storage.
const (
	AlertLowBlinkRate     = "low_blink_rate"
	AlertTooCloseToScreen = "too_close_to_screen"
	AlertPoorPosture      = "poor_posture"
)

// AlertChange records a change of the derived alert set.
type AlertChange struct {
	At        time.Time `json:"at"`
	SessionID string    `json:"session_id,omitempty"`
	Previous  Alerts    `json:"previous"`
	Current   Alerts    `json:"current"`
}

func (a Alerts) names() map[string]bool {
	return map[string]bool{
		AlertLowBlinkRate:     a.LowBlinkRate,
		AlertTooCloseToScreen: a.TooCloseToScreen,
		AlertPoorPosture:      a.PoorPosture,
	}
}

// Raised lists the alerts that turned on, in a fixed order.
func (c AlertChange) Raised() []string {
	return diff(c.Current, c.Previous)
}

// Cleared lists the alerts that turned off.
func (c AlertChange) Cleared() []string {
	return diff(c.Previous, c.Current)
}

func diff(on, off Alerts) []string {
	a, b := on.names(), off.names()
	var out []string
	for _, n := range []string{AlertLowBlinkRate, AlertTooCloseToScreen, AlertPoorPosture} {
		if a[n] && !b[n] {
			out = append(out, n)
		}
	}
	return out
}
