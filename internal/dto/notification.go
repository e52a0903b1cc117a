package dto

// NotificationListRequest GET /notifications
type NotificationListRequest struct {
	PaginationRequest
}

// NotificationResponse in-app notification
type NotificationResponse struct {
	ID           string `json:"id"`
	InternshipID string `json:"internship_id,omitempty"`
	Title        string `json:"title"`
	Body         string `json:"body"`
	Status       string `json:"status"`
	IsRead       bool   `json:"is_read"`
	CreatedAt    string `json:"created_at"`
}
