package browser

// PageMap represents the analyzed structure of a web page
type PageMap struct {
	URL      string    `json:"url"`
	Title    string    `json:"title"`
	Controls []Control `json:"elements"`
}

// Control represents an interactive element on the page
type Control struct {
	Selector    string `json:"selector"`
	Type        string `json:"type"` // button, input type, link, select, textarea
	Role        string `json:"role,omitempty"`
	Label       string `json:"label,omitempty"`
	Text        string `json:"text,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
}

// Has reports whether selector belongs to one of the snapshot's controls.
func (m *PageMap) Has(selector string) bool {
	for _, c := range m.Controls {
		if c.Selector == selector {
			return true
		}
	}
	return false
}
