// internal/services/applications/save-draft/models.go
package savedraft

type Input struct {
	DraftID string                 `json:"draftId,omitempty"`
	Data    map[string]interface{} `json:"data"`
}

type Output struct {
	DraftID   string `json:"draftId"`
	Created   bool   `json:"created"`
	UpdatedAt string `json:"updatedAt"` // ISO 8601
}

type Draft struct {
	DraftID   string                 `json:"draftId"`
	Data      map[string]interface{} `json:"data"`
	UpdatedAt string                 `json:"updatedAt"`
}
