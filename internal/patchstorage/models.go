package patchstorage

// PatchSummary is one catalog entry from the patch list endpoint.
type PatchSummary struct {
	ID    int    `json:"id"`
	Slug  string `json:"slug"`
	Title string `json:"title"`
	Link  string `json:"link"`
}

// Patch is the full record from the patch detail endpoint.
type Patch struct {
	ID      int    `json:"id"`
	URL     string `json:"url"`
	Slug    string `json:"slug"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Files   []File `json:"files"`
}

// File is one downloadable artifact attached to a patch.
type File struct {
	ID       int    `json:"id"`
	URL      string `json:"url"`
	Filesize int64  `json:"filesize"`
	Filename string `json:"filename"`
}

// ErrorResponse is the error body the API returns on failures.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
