// internal/services/applications/send-confirmation/models.go
package sendconfirmation

type Input struct {
	ApplicationID string `json:"applicationId"`
	Email         string `json:"email"`
	Phone         string `json:"phone,omitempty"`
	FirstName     string `json:"firstName"`
	ProgramID     string `json:"programId"`
	ProgramTitle  string `json:"programTitle,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	EmailStatus    string `json:"emailStatus"` // "sent", "failed", "disabled"
	SMSStatus      string `json:"smsStatus"`   // "sent", "failed", "disabled"
	SentAt         string `json:"sentAt"`      // ISO 8601
}

const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)
