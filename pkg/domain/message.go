package domain

import "time"

// MessageAction is what following a message does
type MessageAction string

const (
	MessageActionNone        MessageAction = "none"
	MessageActionWebsite     MessageAction = "website"
	MessageActionDeepLink    MessageAction = "deep-link"
	MessageActionLandingPage MessageAction = "landing-page"
)

// Message is an inbox entry
type Message struct {
	ID        string        `json:"id"`
	Title     string        `json:"title,omitempty"`
	Text      string        `json:"text,omitempty"`
	Action    MessageAction `json:"action,omitempty"`
	URL       string        `json:"url,omitempty"`
	Read      bool          `json:"read"`
	Saved     bool          `json:"saved"`
	Timestamp time.Time     `json:"timestamp,omitempty"`

	LandingPage *Screen `json:"landing_page,omitempty"`
}

// Screen is the content of a landing page
type Screen struct {
	ID    string                   `json:"id,omitempty"`
	Title string                   `json:"title,omitempty"`
	Rows  []map[string]interface{} `json:"rows,omitempty"`
}
