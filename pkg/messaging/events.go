package messaging

// Recipient is one addressee of a bulk e-mail with its template data.
type Recipient struct {
	Email       string            `json:"email"`
	Name        string            `json:"name,omitempty"`
	DynamicData map[string]string `json:"dynamicData"`
}

// BulkEmailEvent asks a mail worker to render TemplateID for every recipient.
type BulkEmailEvent struct {
	FromEmail    string      `json:"fromEmail"`
	FromName     string      `json:"fromName"`
	ReplyToEmail string      `json:"replyToEmail,omitempty"`
	Subject      string      `json:"subject"`
	TemplateID   string      `json:"templateId"`
	Recipients   []Recipient `json:"recipients"`
}
