package prompt

import (
	"github.com/kapu/netfolio/internal/catalog"
	"github.com/kapu/netfolio/internal/domain"
)

// PortfolioContextVars feeds the system context sent with every chat question.
type PortfolioContextVars struct {
	SiteName       string
	Owner          string
	Profile        *domain.Card
	Experience     []*domain.Card
	Software       []*domain.Card
	Hardware       []*domain.Card
	Education      []*domain.Card
	Certifications []*domain.Card
	Ongoing        []*domain.Card
	Skills         []*domain.Card
	Contact        []*domain.Card
}

// PortfolioContextFromCatalog collects the sections of c in the order the assistant reads them.
func PortfolioContextFromCatalog(c *catalog.Catalog) PortfolioContextVars {
	siteName := c.SiteName()
	if siteName == "" {
		siteName = "Netfolio"
	}
	return PortfolioContextVars{
		SiteName:       siteName,
		Owner:          c.Owner(),
		Profile:        c.AboutMe(),
		Experience:     c.Cards(catalog.RowExperience),
		Software:       c.Cards(catalog.RowSoftware),
		Hardware:       c.Cards(catalog.RowHardware),
		Education:      c.Cards(catalog.RowEducation),
		Certifications: c.Cards(catalog.RowCertifications),
		Ongoing:        c.Cards(catalog.RowOngoing),
		Skills:         c.Cards(catalog.RowSkills),
		Contact:        c.Cards(catalog.RowContact),
	}
}

func BuildPortfolioContext(vars PortfolioContextVars) (string, error) {
	return DefaultPromptBuilder().Render(TemplatePortfolioContext, vars)
}
