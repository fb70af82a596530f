package cassa

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const minutesPerDay = 24 * 60

type Verdict string

const (
	VerdictOpen        Verdict = "open"
	VerdictClosingSoon Verdict = "closing_soon"
	VerdictClosed      Verdict = "closed"
)

// StoreHoursConfig describes the daily ordering window in local wall-clock
// time. CloseTime earlier than OpenTime means the window runs past midnight.
type StoreHoursConfig struct {
	OpenTime      string
	CloseTime     string
	Timezone      string
	ClosingBuffer time.Duration
	// ManuallyClosed refuses every order regardless of the clock.
	ManuallyClosed bool
}

type StoreStatus struct {
	IsOpen    bool    `json:"is_open"`
	Verdict   Verdict `json:"verdict"`
	Message   string  `json:"message,omitempty"`
	OpenTime  string  `json:"open_time"`
	CloseTime string  `json:"close_time"`
}

const storeHoursUnknownMsg = "Unable to verify store hours. Please try again later."

// Evaluate resolves now in the configured timezone and classifies it against
// the ordering window. Any resolution failure yields Closed.
func (c StoreHoursConfig) Evaluate(now time.Time) StoreStatus {
	status := StoreStatus{
		Verdict:   VerdictClosed,
		OpenTime:  c.OpenTime,
		CloseTime: c.CloseTime,
	}

	if c.ManuallyClosed {
		status.Message = "Store is currently closed. Please try again later."
		return status
	}

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		status.Message = storeHoursUnknownMsg
		return status
	}
	open, err := parseClock(c.OpenTime)
	if err != nil {
		status.Message = storeHoursUnknownMsg
		return status
	}
	closing, err := parseClock(c.CloseTime)
	if err != nil {
		status.Message = storeHoursUnknownMsg
		return status
	}

	local := now.In(loc)
	current := local.Hour()*60 + local.Minute()
	buffer := int(c.ClosingBuffer / time.Minute)

	status.Verdict = classify(current, open, closing, buffer)
	switch status.Verdict {
	case VerdictOpen:
		status.IsOpen = true
	case VerdictClosingSoon:
		status.Message = fmt.Sprintf("Store stops accepting orders %d minutes before closing. Please place your order earlier.", buffer)
	default:
		if beforeOpening(current, open, closing) {
			status.Message = fmt.Sprintf("Store is not open yet. Opens at %s", c.OpenTime)
		} else {
			status.Message = fmt.Sprintf("Store is closed. Hours: %s - %s", c.OpenTime, c.CloseTime)
		}
	}
	return status
}

// classify works in minutes elapsed since opening so that a window running
// past midnight needs no special casing. The window is [open, close-buffer]
// open, (close-buffer, close) closing soon, and closed from close until the
// next opening.
func classify(current, open, closing, buffer int) Verdict {
	elapsed := mod(current-open, minutesPerDay)
	length := mod(closing-open, minutesPerDay)
	if closing >= open {
		// same-day window; open == close means no window at all
		length = closing - open
		if current < open {
			return VerdictClosed
		}
		elapsed = current - open
	}

	switch {
	case length == 0:
		return VerdictClosed
	case elapsed <= length-buffer:
		return VerdictOpen
	case elapsed < length:
		return VerdictClosingSoon
	default:
		return VerdictClosed
	}
}

// beforeOpening reports whether a closed instant is waiting for the next
// opening rather than past today's close. Overnight windows are closed only
// between close and open, which always precedes an opening.
func beforeOpening(current, open, closing int) bool {
	if closing >= open {
		return current < open
	}
	return current >= closing && current < open
}

func parseClock(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("invalid clock %q", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return h*60 + m, nil
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
