// internal/workers/admission/send-application-confirmation/models.go
package sendapplicationconfirmation

type Input struct {
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID  string `json:"applicationId"`
	NotificationID string `json:"notificationId"`
	EmailStatus    string `json:"emailStatus"`
	SMSStatus      string `json:"smsStatus"`
	SentAt         string `json:"sentAt"`
}
