package kyc

import "fmt"

// Action is a next-step link on the status page.
type Action struct {
	Label string `json:"label"`
	Href  string `json:"href"`
	Kind  string `json:"kind"` // primary | secondary
}

// StatusPage is what the provider sees for a verification state.
type StatusPage struct {
	Status      Status   `json:"status"`
	Title       string   `json:"title"`
	Message     string   `json:"message"`
	Badge       string   `json:"badge"`
	Actions     []Action `json:"actions"`
	ShowSupport bool     `json:"showSupport"`
}

const (
	hrefSubmit    = "/provider/kyc"
	hrefStatus    = "/provider/kyc/status"
	hrefMembers   = "/provider/members"
	hrefDashboard = "/provider/dashboard"
)

// PageFor returns the status page of s.
func PageFor(s Status) (StatusPage, error) {
	switch s {
	case StatusNoSubmission:
		return StatusPage{
			Status:  s,
			Title:   "Complete your verification",
			Message: "Submit your KYC details and documents to start collecting fees.",
			Badge:   "neutral",
			Actions: []Action{
				{Label: "Start verification", Href: hrefSubmit, Kind: "primary"},
				{Label: "Back to dashboard", Href: hrefDashboard, Kind: "secondary"},
			},
		}, nil
	case StatusProcessing:
		return StatusPage{
			Status:  s,
			Title:   "Verification in progress",
			Message: "We are reviewing your documents. This usually takes 1-2 business days.",
			Badge:   "info",
			Actions: []Action{
				{Label: "Back to dashboard", Href: hrefDashboard, Kind: "primary"},
			},
		}, nil
	case StatusPending:
		return StatusPage{
			Status:  s,
			Title:   "Action required",
			Message: "Some details need your attention. Please review the remarks and resubmit.",
			Badge:   "warning",
			Actions: []Action{
				{Label: "Update and resubmit", Href: hrefSubmit, Kind: "primary"},
				{Label: "Back to dashboard", Href: hrefDashboard, Kind: "secondary"},
			},
			ShowSupport: true,
		}, nil
	case StatusVerified:
		return StatusPage{
			Status:  s,
			Title:   "Verification complete",
			Message: "Your organization is verified. You can now manage members and collect fees.",
			Badge:   "success",
			Actions: []Action{
				{Label: "View members", Href: hrefMembers, Kind: "primary"},
				{Label: "Back to dashboard", Href: hrefDashboard, Kind: "secondary"},
			},
		}, nil
	case StatusRejected:
		return StatusPage{
			Status:  s,
			Title:   "Verification rejected",
			Message: "Your submission could not be verified. Please correct the details and resubmit.",
			Badge:   "danger",
			Actions: []Action{
				{Label: "Resubmit documents", Href: hrefSubmit, Kind: "primary"},
				{Label: "Back to dashboard", Href: hrefDashboard, Kind: "secondary"},
			},
			ShowSupport: true,
		}, nil
	}
	return StatusPage{}, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}
