// internal/workers/admission/update-application-status/models.go
package updateapplicationstatus

type Input struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	Actor         string `json:"actor,omitempty"`
}

type Output struct {
	ApplicationID     string `json:"applicationId"`
	PreviousStatus    string `json:"previousStatus"`
	ApplicationStatus string `json:"applicationStatus"`
	UpdatedAt         string `json:"updatedAt"` // ISO 8601
}

const (
	StatusSubmitted   = "submitted"
	StatusUnderReview = "under_review"
	StatusAccepted    = "accepted"
	StatusRejected    = "rejected"
	StatusWaitlisted  = "waitlisted"
	StatusWithdrawn   = "withdrawn"
)

// transitions lists the statuses each status may move to. Decided
// applications are final.
var transitions = map[string][]string{
	StatusSubmitted:   {StatusUnderReview, StatusRejected, StatusWithdrawn},
	StatusUnderReview: {StatusAccepted, StatusRejected, StatusWaitlisted, StatusWithdrawn},
	StatusWaitlisted:  {StatusAccepted, StatusRejected, StatusWithdrawn},
}
