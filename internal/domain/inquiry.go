package domain

import "time"

// InquiryRecord is the structured capture of a conversation flagged as a
// sales inquiry. It is built once per detected inquiry, transmitted to the
// capture webhook and the local ledger, and not retained in memory.
type InquiryRecord struct {
	ID           string    `json:"id"`
	Recipient    string    `json:"recipient"`
	MessageText  string    `json:"message_text"`
	ImageURL     string    `json:"image_url,omitempty"`
	ProfileViews int       `json:"profile_views"`
	InquiryCount int       `json:"inquiry_count"`
	RFQCount     int       `json:"rfq_count"`
	LoginDays    int       `json:"login_days"`
	SpamCount    int       `json:"spam_count"`
	Blacklisted  int       `json:"blacklist_count"`
	VisitedAt    time.Time `json:"visited_at"`
	FollowUpDate time.Time `json:"follow_up_date"`
}
