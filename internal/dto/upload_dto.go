package dto

// UploadResponse describes an asset stored on the media host.
type UploadResponse struct {
	URL      string  `json:"url"`
	PublicID string  `json:"publicId"`
	Format   string  `json:"format,omitempty"`
	Size     int     `json:"size"`
	Width    int     `json:"width,omitempty"`
	Height   int     `json:"height,omitempty"`
	Duration float64 `json:"duration,omitempty"`
	FileName string  `json:"filename,omitempty"`
	MimeType string  `json:"mimeType"`
}
