package session

import "time"

// Targets names the pages and page elements the workflow drives. They are
// configuration, consumed here and owned by the deployment; the defaults
// match the council leisure site the system was built against.
type Targets struct {
	LoginURL  string
	BasketURL string

	PrivacyAcceptSelector string
	EmailField            string
	PasswordField         string
	LoginButton           string
	LoggedInSelector      string
	LoginErrorSelector    string

	DateTitleSelector     string
	NextWeekSelector      string
	SlotSelectorFmt       string // expanded with the HHMM slot time
	BookedConfirmSelector string

	BasketItemSelector      string
	CheckoutConfirmSelector string
	LogoutSelector          string
}

// DefaultTargets returns the production element map.
func DefaultTargets() Targets {
	return Targets{
		LoginURL:  "https://camdenactive.camden.gov.uk/security/login.aspx",
		BasketURL: "https://camdenactive.camden.gov.uk/basket/",

		PrivacyAcceptSelector: "#rtPrivacyBannerAccept",
		EmailField:            "input#loginEmail",
		PasswordField:         "input#loginPassword",
		LoginButton:           "a.button-primary",
		LoggedInSelector:      "a[href*='logout']",
		LoginErrorSelector:    ".validation-summary-errors",

		DateTitleSelector:     "h4.timetable-title",
		NextWeekSelector:      "a.next-week",
		SlotSelectorFmt:       "a[data-time='%s']",
		BookedConfirmSelector: ".basket-added",

		BasketItemSelector:      ".basket-item",
		CheckoutConfirmSelector: "button#confirm-checkout",
		LogoutSelector:          "a[href*='logout']",
	}
}

// Timing bounds the workflow's waits. Probe timeouts stay sub-second so
// the polling loop tracks the release instant closely; the booking action
// and acquisition get longer budgets.
type Timing struct {
	InitTimeout     time.Duration // browser acquisition
	LoginTimeout    time.Duration // logged-in marker wait
	ProbeTimeout    time.Duration // each date-reachable check
	ActionTimeout   time.Duration // booking click + confirmation
	BookingDeadline time.Duration // wall-clock window after the release instant
}

// DefaultTiming returns production timing.
func DefaultTiming() Timing {
	return Timing{
		InitTimeout:     30 * time.Second,
		LoginTimeout:    15 * time.Second,
		ProbeTimeout:    800 * time.Millisecond,
		ActionTimeout:   10 * time.Second,
		BookingDeadline: 2 * time.Minute,
	}
}
