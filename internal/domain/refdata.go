package domain

// Celebrity is one entry of the admin-authored celebrities dataset. The JSON
// tags are a contract with the externally authored celebrities.json; unknown
// extra fields in the file are tolerated and dropped.
type Celebrity struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Profession  string `json:"profession"`
	Image       string `json:"image"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
}

// Template is one entry of the templates dataset. Prompt carries a
// {{celeb_name}} placeholder substituted at generation time.
type Template struct {
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Prompt      string   `json:"prompt"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	Sample      string   `json:"sample,omitempty"`
}
