package domain

import "strings"

// Category classifies a card. Rendering rules (modal labels, hover styles) key off it.
type Category string

const (
	CategoryProject       Category = "Project"
	CategoryExperience    Category = "Experience"
	CategoryEducation     Category = "Education"
	CategoryCertification Category = "Certification"
	CategorySkill         Category = "Skill"
	CategoryContact       Category = "Contact"
	CategoryProfile       Category = "Profile"
)

var allCategories = []Category{
	CategoryProject,
	CategoryExperience,
	CategoryEducation,
	CategoryCertification,
	CategorySkill,
	CategoryContact,
	CategoryProfile,
}

// ParseCategory resolves a category name case-insensitively. The empty string is a
// valid "no category" value.
func ParseCategory(raw string) (Category, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", true
	}
	for _, c := range allCategories {
		if strings.EqualFold(string(c), trimmed) {
			return c, true
		}
	}
	return "", false
}

// GenreOngoing marks cards whose match score is a learning progress percentage.
const GenreOngoing = "Ongoing"

// Card is a single display record shown in a row, the skills grid, the hero or the modal.
type Card struct {
	ID          string   `json:"id" yaml:"id"`
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	ImageURL    string   `json:"imageUrl" yaml:"imageUrl"`
	VideoURL    string   `json:"videoUrl,omitempty" yaml:"videoUrl,omitempty"`
	TechStack   []string `json:"techStack" yaml:"techStack"`
	Match       int      `json:"match" yaml:"match"`
	Year        string   `json:"year" yaml:"year"`
	Duration    string   `json:"duration,omitempty" yaml:"duration,omitempty"`
	Genre       []string `json:"genre" yaml:"genre"`
	Category    Category `json:"category,omitempty" yaml:"category,omitempty"`
	Link        string   `json:"link,omitempty" yaml:"link,omitempty"`
	Icon        string   `json:"icon,omitempty" yaml:"icon,omitempty"`
	Color       string   `json:"color,omitempty" yaml:"color,omitempty"`
}

// HasGenre reports whether the card carries the given genre label.
func (c *Card) HasGenre(genre string) bool {
	for _, g := range c.Genre {
		if strings.EqualFold(g, genre) {
			return true
		}
	}
	return false
}

func (c *Card) IsOngoing() bool {
	return c.HasGenre(GenreOngoing)
}

func (c *Card) IsContact() bool {
	return c.Category == CategoryContact
}

// Clone returns a deep copy so callers can adjust a card (e.g. the hero video)
// without touching the shared catalog.
func (c *Card) Clone() *Card {
	if c == nil {
		return nil
	}
	cp := *c
	cp.TechStack = append([]string(nil), c.TechStack...)
	cp.Genre = append([]string(nil), c.Genre...)
	return &cp
}
