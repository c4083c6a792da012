// internal/services/applications/submit-application/models.go
package submitapplication

import "admissions-portal/internal/form/formdata"

type Input struct {
	Data      formdata.Data `json:"data"`
	DraftID   string        `json:"draftId,omitempty"`
	ProgramID string        `json:"programId,omitempty"`
	CourseID  string        `json:"courseId,omitempty"`
}

type Output struct {
	ApplicationID      string `json:"applicationId"`
	ApplicationStatus  string `json:"applicationStatus"`
	CreatedAt          string `json:"createdAt"` // ISO 8601
	ProcessInstanceKey int64  `json:"processInstanceKey,omitempty"`
	Notification       string `json:"notification,omitempty"`
}

const StatusSubmitted = "submitted"
