package models

// Recipient is one addressee of a bulk call with its substitution data.
type Recipient struct {
	Email       string            `json:"email"`
	Name        string            `json:"name,omitempty"`
	DynamicData map[string]string `json:"dynamicData"`
}

// Envelope is the data shared by every recipient of a bulk call.
type Envelope struct {
	FromEmail    string `json:"fromEmail"`
	FromName     string `json:"fromName"`
	ReplyToEmail string `json:"replyToEmail,omitempty"`
	ReplyToName  string `json:"replyToName,omitempty"`
	Subject      string `json:"subject"`
	TemplateID   string `json:"templateId"`
}

// Delivery is a schedule admitted into the dispatch batch.
type Delivery struct {
	Schedule  Schedule
	Content   ContentItem
	Recipient Recipient
}
