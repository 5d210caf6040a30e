package domain

// RowKind selects how a row is laid out on the page.
type RowKind string

const (
	RowKindRow  RowKind = "row"
	RowKindGrid RowKind = "grid"
)

// Row is a titled group of cards rendered as a horizontal scroller or a grid.
type Row struct {
	ID     string  `json:"id" yaml:"id"`
	Title  string  `json:"title" yaml:"title"`
	Anchor string  `json:"anchor,omitempty" yaml:"anchor,omitempty"`
	Kind   RowKind `json:"kind" yaml:"kind"`
	Cards  []*Card `json:"cards" yaml:"cards"`
}

// CardDetail is the modal view of a card.
type CardDetail struct {
	Card            *Card  `json:"card"`
	PrimaryLabel    string `json:"primaryLabel"`
	ShowPrimary     bool   `json:"showPrimary"`
	ShowMoreInfo    bool   `json:"showMoreInfo"`
	TagsHeading     string `json:"tagsHeading"`
	Stars           int    `json:"stars"`
	ProgressPercent int    `json:"progressPercent,omitempty"`
	MaturityRating  string `json:"maturityRating"`
	MaturityNote    string `json:"maturityNote"`
}

// RatedSkill pairs a skill card with its five-star rating.
type RatedSkill struct {
	*Card
	Stars int `json:"stars"`
}
