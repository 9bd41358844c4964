// Package model contains the request-scoped entities shared across packages.
// Nothing here survives a request; durable state lives only in the object
// store and the operator's inbox.
package model

// SubmissionFields holds the text portion of a registration form. All fields
// except PromoTag must be non-empty before any processing starts.
type SubmissionFields struct {
	BusinessName string `json:"business_name"`
	Address      string `json:"address"`
	Phone        string `json:"phone"`
	DiscountRate string `json:"discount_rate"`
	MapLink      string `json:"map_link"`
	Description  string `json:"description"`
	PromoTag     string `json:"promo_tag,omitempty"`
}

// UploadedFile is one raw photo as received from the multipart form. The core
// treats it as read-only.
type UploadedFile struct {
	OriginalName string
	Data         []byte
}

// StoredImage describes one object that made it into the store. URL is empty
// when the object was stored but presigning failed afterwards.
type StoredImage struct {
	Key  string
	URL  string
	Size int64
}

// UploadOutcome records what happened to one uploaded file. Exactly one of
// Stored/SkipReason is set; a skip never aborts the remaining files.
type UploadOutcome struct {
	OriginalName string
	Stored       *StoredImage
	SkipReason   string
}

// Skipped reports whether the file was dropped from the notification.
func (o UploadOutcome) Skipped() bool {
	return o.Stored == nil
}

// Notification is the composed message handed to the dispatcher. Built once
// per request, never persisted.
type Notification struct {
	Recipient string
	Subject   string
	HTMLBody  string
}
