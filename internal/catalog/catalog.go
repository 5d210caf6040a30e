package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kapu/netfolio/internal/constants"
	"github.com/kapu/netfolio/internal/domain"
	"github.com/kapu/netfolio/internal/util"
	"github.com/kapu/netfolio/pkg/errors"
)

//go:embed data/catalog.yaml
var defaultData []byte

// Row ids used by the page layout and the chat context.
const (
	RowExperience     = "experience"
	RowEducation      = "education"
	RowCertifications = "certifications"
	RowOngoing        = "ongoing"
	RowSkills         = "skills"
	RowSoftware       = "software"
	RowHardware       = "hardware"
	RowContact        = "contact"
)

// Document is the on-disk YAML shape of a catalog.
type Document struct {
	Owner         string             `yaml:"owner"`
	SiteName      string             `yaml:"siteName"`
	CopyrightYear string             `yaml:"copyrightYear"`
	Profiles      []domain.Profile   `yaml:"profiles"`
	HeroVideos    []domain.HeroVideo `yaml:"heroVideos"`
	Hero          *domain.Card       `yaml:"hero"`
	About         *domain.Card       `yaml:"about"`
	Rows          []*domain.Row      `yaml:"rows"`
}

// Catalog is an immutable, validated set of display records.
type Catalog struct {
	doc     Document
	cards   map[string]*domain.Card
	rowByID map[string]*domain.Row
}

// HeroView is the hero card paired with the selected background video.
type HeroView struct {
	Card  *domain.Card     `json:"card"`
	Video domain.HeroVideo `json:"video"`
}

// Default returns the catalog compiled into the binary.
func Default() *Catalog {
	c, err := Load(bytes.NewReader(defaultData))
	if err != nil {
		panic(fmt.Sprintf("embedded catalog is invalid: %v", err))
	}
	return c
}

// Load decodes and validates a YAML catalog.
func Load(r io.Reader) (*Catalog, error) {
	var doc Document
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		return nil, errors.NewValidationError("catalog YAML could not be decoded", "catalog", nil).WithCause(err)
	}
	return New(doc)
}

// New validates doc and indexes it. doc is not retained; New works on a copy.
func New(doc Document) (*Catalog, error) {
	doc = cloneDocument(doc)

	if len(doc.Profiles) == 0 {
		return nil, errors.NewValidationError("catalog needs at least one profile", "profiles", nil)
	}
	if len(doc.HeroVideos) == 0 {
		return nil, errors.NewValidationError("catalog needs at least one hero video", "heroVideos", nil)
	}

	c := &Catalog{
		cards:   make(map[string]*domain.Card),
		rowByID: make(map[string]*domain.Row, len(doc.Rows)),
	}

	for _, card := range []*domain.Card{doc.Hero, doc.About} {
		if card == nil {
			continue
		}
		if err := c.addCard(card); err != nil {
			return nil, err
		}
	}

	for _, row := range doc.Rows {
		if row == nil || strings.TrimSpace(row.ID) == "" {
			return nil, errors.NewValidationError("row id is required", "rows.id", nil)
		}
		if _, dup := c.rowByID[row.ID]; dup {
			return nil, errors.NewValidationError("duplicate row id", "rows.id", row.ID)
		}
		switch row.Kind {
		case "":
			row.Kind = domain.RowKindRow
		case domain.RowKindRow, domain.RowKindGrid:
		default:
			return nil, errors.NewValidationError("unknown row kind", "rows.kind", row.Kind)
		}
		for _, card := range row.Cards {
			if err := c.addCard(card); err != nil {
				return nil, err
			}
		}
		c.rowByID[row.ID] = row
	}

	c.doc = doc
	return c, nil
}

func (c *Catalog) addCard(card *domain.Card) error {
	if card == nil || strings.TrimSpace(card.ID) == "" {
		return errors.NewValidationError("card id is required", "cards.id", nil)
	}
	if _, dup := c.cards[card.ID]; dup {
		return errors.NewValidationError("duplicate card id", "cards.id", card.ID)
	}
	category, ok := domain.ParseCategory(string(card.Category))
	if !ok {
		return errors.NewValidationError("unknown card category", "cards.category", card.Category)
	}
	card.Category = category
	card.Match = clamp(card.Match, 0, 100)
	c.cards[card.ID] = card
	return nil
}

// WithRowCards returns a new catalog whose row cards come from cards, keyed by row id.
// Rows missing from cards end up empty. Profiles, hero and row titles are kept.
func (c *Catalog) WithRowCards(cards map[string][]*domain.Card) (*Catalog, error) {
	doc := c.Document()
	for _, row := range doc.Rows {
		row.Cards = cards[row.ID]
	}
	return New(doc)
}

// Document returns a copy of the catalog in its serialisable form.
func (c *Catalog) Document() Document {
	return cloneDocument(c.doc)
}

func (c *Catalog) Owner() string         { return c.doc.Owner }
func (c *Catalog) SiteName() string      { return c.doc.SiteName }
func (c *Catalog) CopyrightYear() string { return c.doc.CopyrightYear }

func (c *Catalog) Profiles() []domain.Profile {
	return append([]domain.Profile(nil), c.doc.Profiles...)
}

func (c *Catalog) ProfileByID(id string) (*domain.Profile, error) {
	for i := range c.doc.Profiles {
		if c.doc.Profiles[i].ID == id {
			p := c.doc.Profiles[i]
			return &p, nil
		}
	}
	return nil, errors.NewNotFoundError("profile", id)
}

func (c *Catalog) HeroVideos() []domain.HeroVideo {
	return append([]domain.HeroVideo(nil), c.doc.HeroVideos...)
}

// Hero returns the hero card playing videoID. An empty id selects the first preset.
func (c *Catalog) Hero(videoID string) (*HeroView, error) {
	if c.doc.Hero == nil {
		return nil, errors.NewNotFoundError("hero", "")
	}

	video := c.doc.HeroVideos[0]
	if videoID != "" {
		found := false
		for _, v := range c.doc.HeroVideos {
			if v.ID == videoID {
				video, found = v, true
				break
			}
		}
		if !found {
			return nil, errors.NewNotFoundError("hero video", videoID)
		}
	}

	card := c.doc.Hero.Clone()
	card.VideoURL = video.URL
	return &HeroView{Card: card, Video: video}, nil
}

// AboutMe returns the profile card, or nil when the catalog has none.
func (c *Catalog) AboutMe() *domain.Card {
	return c.doc.About
}

// Rows returns the rows in page order. A row with no cards renders nothing, so it
// is left out.
func (c *Catalog) Rows() []*domain.Row {
	rows := make([]*domain.Row, 0, len(c.doc.Rows))
	for _, row := range c.doc.Rows {
		if len(row.Cards) == 0 {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

// AllRows includes empty rows. Used by export and seeding.
func (c *Catalog) AllRows() []*domain.Row {
	return append([]*domain.Row(nil), c.doc.Rows...)
}

func (c *Catalog) Row(id string) (*domain.Row, error) {
	row, ok := c.rowByID[id]
	if !ok {
		return nil, errors.NewNotFoundError("row", id)
	}
	return row, nil
}

// Cards returns the cards of row id, or nil when the row does not exist.
func (c *Catalog) Cards(id string) []*domain.Card {
	row, ok := c.rowByID[id]
	if !ok {
		return nil
	}
	return row.Cards
}

func (c *Catalog) CardByID(id string) (*domain.Card, error) {
	card, ok := c.cards[id]
	if !ok {
		return nil, errors.NewNotFoundError("card", id)
	}
	return card, nil
}

// Search matches query case-insensitively against title, description, tags, genre
// and category of every row card, in page order.
func (c *Catalog) Search(query string) []*domain.Card {
	q := util.Normalize(query)
	if q == "" {
		return nil
	}
	return c.collect(func(card *domain.Card) bool {
		return util.ContainsFold([]string{card.Title, card.Description, string(card.Category)}, q) ||
			util.ContainsFold(card.TechStack, q) ||
			util.ContainsFold(card.Genre, q)
	})
}

func (c *Catalog) FilterByCategory(category domain.Category) []*domain.Card {
	return c.collect(func(card *domain.Card) bool {
		return card.Category == category
	})
}

func (c *Catalog) FilterByGenre(genre string) []*domain.Card {
	return c.collect(func(card *domain.Card) bool {
		return card.HasGenre(genre)
	})
}

// Skills returns every skill card with its star rating.
func (c *Catalog) Skills() []domain.RatedSkill {
	cards := c.FilterByCategory(domain.CategorySkill)
	skills := make([]domain.RatedSkill, 0, len(cards))
	for _, card := range cards {
		skills = append(skills, domain.RatedSkill{Card: card, Stars: StarCount(card.Match)})
	}
	return skills
}

func (c *Catalog) collect(keep func(*domain.Card) bool) []*domain.Card {
	var out []*domain.Card
	for _, row := range c.doc.Rows {
		for _, card := range row.Cards {
			if keep(card) {
				out = append(out, card)
			}
		}
	}
	return out
}

// StarCount converts a 0..100 match score into 0..5 stars.
func StarCount(match int) int {
	stars := int(math.Round(float64(match) / float64(constants.UIConfig.StarScale)))
	return clamp(stars, 0, constants.UIConfig.MaxStars)
}

// ProgressPercent is the learning progress of an ongoing card, 0 otherwise.
func ProgressPercent(card *domain.Card) int {
	if card == nil || !card.IsOngoing() {
		return 0
	}
	return clamp(card.Match, 0, 100)
}

// Detail builds the modal view of card.
func Detail(card *domain.Card) domain.CardDetail {
	detail := domain.CardDetail{
		Card:            card,
		PrimaryLabel:    constants.UIConfig.DetailActionLabel,
		ShowPrimary:     card.Link != "",
		ShowMoreInfo:    !card.IsContact(),
		TagsHeading:     "Tags",
		Stars:           StarCount(card.Match),
		ProgressPercent: ProgressPercent(card),
		MaturityRating:  constants.UIConfig.MaturityRating,
		MaturityNote:    constants.UIConfig.MaturityNote,
	}
	if card.IsContact() {
		detail.PrimaryLabel = constants.UIConfig.ContactActionLabel
	}
	if card.Category == domain.CategorySkill {
		detail.TagsHeading = "Proficiency"
	}
	return detail
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func cloneDocument(doc Document) Document {
	out := doc
	out.Profiles = append([]domain.Profile(nil), doc.Profiles...)
	out.HeroVideos = append([]domain.HeroVideo(nil), doc.HeroVideos...)
	out.Hero = doc.Hero.Clone()
	out.About = doc.About.Clone()
	out.Rows = make([]*domain.Row, 0, len(doc.Rows))
	for _, row := range doc.Rows {
		if row == nil {
			out.Rows = append(out.Rows, nil)
			continue
		}
		cp := *row
		cp.Cards = make([]*domain.Card, 0, len(row.Cards))
		for _, card := range row.Cards {
			cp.Cards = append(cp.Cards, card.Clone())
		}
		out.Rows = append(out.Rows, &cp)
	}
	return out
}
