package kafka

// UploadCompletePayload is the notification published by the storage layer
// once a signed direct upload lands in the bucket. UserID and Key come from
// the object metadata stamped into the signed form.
type UploadCompletePayload struct {
	UserID string `json:"userId"`
	Key    string `json:"key"`
	URL    string `json:"url"`
}
