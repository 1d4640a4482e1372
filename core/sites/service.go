package sites

import (
	"context"
	"errors"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"worksafety/config"
	"worksafety/core/apperr"
	"worksafety/core/store"
	"worksafety/core/utils"
)

const (
	referenceLen   = 5
	maxNameLen     = 30
	maxAddressLen  = 30
	maxCityLen     = 15
	maxPhoneLen    = 16
	regionOther    = "ATRE"
	maxStampRate   = 100
	defaultMaxLat  = 90
	defaultMaxLong = 180
)

var regions = map[string]string{
	"MA01":      "Tanger-Tetouan-Al Hoceima",
	"MA02":      "L'Oriental",
	"MA03":      "Fes-Meknes",
	"MA04":      "Rabat-Sale-Kenitra",
	"MA05":      "Beni Mellal-Khenifra",
	"MA06":      "Casablanca-Settat",
	"MA07":      "Marrakech-Safi",
	"MA08":      "Draa-Tafilalet",
	"MA09":      "Souss-Massa",
	"MA10":      "Guelmim-Oued Noun",
	"MA11":      "Laayoune-Sakia El Hamra",
	"MA12":      "Dakhla-Oued Ed-Dahab",
	regionOther: "Other / abroad",
}

var legalForms = map[string]struct{}{
	"sarl":   {},
	"sarlau": {},
	"sa":     {},
}

// Regions returns the accepted region codes with their display names.
func Regions() map[string]string {
	out := make(map[string]string, len(regions))
	for k, v := range regions {
		out[k] = v
	}
	return out
}

type Service struct {
	store  store.SitesStore
	maxLat float64
	maxLon float64
	logger *utils.Logger
}

func NewService(cfg config.SitesConfig, ss store.SitesStore, logger *utils.Logger) *Service {
	s := &Service{store: ss, maxLat: math.Abs(cfg.MaxLatitude), maxLon: math.Abs(cfg.MaxLongitude), logger: logger}
	if s.maxLat == 0 || s.maxLat > defaultMaxLat {
		s.maxLat = defaultMaxLat
	}
	if s.maxLon == 0 || s.maxLon > defaultMaxLong {
		s.maxLon = defaultMaxLong
	}
	return s
}

func (s *Service) CreateCompany(ctx context.Context, c *store.Company) error {
	c.Name = strings.TrimSpace(c.Name)
	c.City = strings.TrimSpace(c.City)
	c.LegalForm = strings.ToLower(strings.TrimSpace(c.LegalForm))
	switch {
	case c.Name == "":
		return apperr.Invalid("name", "common.required", "company name is required")
	case utf8.RuneCountInString(c.Name) > maxNameLen:
		return apperr.Invalid("name", "common.tooLong", "company name must be at most %d characters", maxNameLen)
	case utf8.RuneCountInString(c.City) > maxCityLen:
		return apperr.Invalid("city", "common.tooLong", "city must be at most %d characters", maxCityLen)
	}
	if c.LegalForm != "" {
		if _, ok := legalForms[c.LegalForm]; !ok {
			return apperr.Invalid("legal_form", "sites.legalFormInvalid", "legal form %q is not supported", c.LegalForm)
		}
	}
	_, err := s.store.CreateCompany(ctx, c)
	return err
}

func (s *Service) Companies(ctx context.Context) ([]store.Company, error) {
	return s.store.ListCompanies(ctx, false)
}

func (s *Service) DeleteCompany(ctx context.Context, id int64) error {
	return s.store.SoftDeleteCompany(ctx, id)
}

// Validate checks a site against the domain rules without touching storage.
func (s *Service) Validate(st *store.Site) error {
	st.Reference = strings.TrimSpace(st.Reference)
	st.Name = strings.TrimSpace(st.Name)
	st.Region = strings.ToUpper(strings.TrimSpace(st.Region))
	st.Phone = strings.TrimSpace(st.Phone)
	if utf8.RuneCountInString(st.Reference) != referenceLen {
		return apperr.Invalid("reference", "sites.referenceLength", "reference must be exactly %d characters", referenceLen)
	}
	if st.Name == "" {
		return apperr.Invalid("name", "common.required", "name is required")
	}
	if utf8.RuneCountInString(st.Name) > maxNameLen {
		return apperr.Invalid("name", "common.tooLong", "name must be at most %d characters", maxNameLen)
	}
	if math.IsNaN(st.Longitude) || math.Abs(st.Longitude) > s.maxLon {
		return apperr.Invalid("longitude", "sites.longitudeRange", "longitude must be between %g and %g", -s.maxLon, s.maxLon)
	}
	if math.IsNaN(st.Latitude) || math.Abs(st.Latitude) > s.maxLat {
		return apperr.Invalid("latitude", "sites.latitudeRange", "latitude must be between %g and %g", -s.maxLat, s.maxLat)
	}
	if st.StampRate < 0 || st.StampRate > maxStampRate {
		return apperr.Invalid("stamp_rate", "sites.stampRateRange", "stamp rate must be between 0 and %d", maxStampRate)
	}
	if _, ok := regions[st.Region]; !ok {
		return apperr.Invalid("region", "sites.regionInvalid", "region %q is not valid", st.Region)
	}
	if st.Phone != "" {
		if len(st.Phone) > maxPhoneLen || strings.IndexFunc(st.Phone, func(r rune) bool { return !unicode.IsDigit(r) }) >= 0 {
			return apperr.Invalid("phone", "sites.phoneDigits", "phone must contain digits only")
		}
	}
	if utf8.RuneCountInString(st.Address) > maxAddressLen {
		return apperr.Invalid("address", "common.tooLong", "address must be at most %d characters", maxAddressLen)
	}
	if utf8.RuneCountInString(st.City) > maxCityLen {
		return apperr.Invalid("city", "common.tooLong", "city must be at most %d characters", maxCityLen)
	}
	return nil
}

func (s *Service) CreateSite(ctx context.Context, st *store.Site) error {
	if err := s.prepare(ctx, st); err != nil {
		return err
	}
	if _, err := s.store.CreateSite(ctx, st); err != nil {
		return referenceTaken(err)
	}
	s.logger.Printf("site created id=%d ref=%s", st.ID, st.Reference)
	return nil
}

func (s *Service) UpdateSite(ctx context.Context, st *store.Site) error {
	if err := s.prepare(ctx, st); err != nil {
		return err
	}
	return referenceTaken(s.store.UpdateSite(ctx, st))
}

func (s *Service) prepare(ctx context.Context, st *store.Site) error {
	if err := s.Validate(st); err != nil {
		return err
	}
	if _, err := s.store.GetCompany(ctx, st.CompanyID); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return apperr.Invalid("company_id", "sites.companyNotFound", "company %d does not exist", st.CompanyID)
		}
		return err
	}
	return nil
}

func referenceTaken(err error) error {
	if errors.Is(err, apperr.ErrUniqueViolation) {
		return apperr.Invalid("reference", "sites.referenceTaken", "site reference already exists")
	}
	return err
}

func (s *Service) Get(ctx context.Context, id int64) (*store.Site, error) {
	return s.store.GetSite(ctx, id)
}

func (s *Service) List(ctx context.Context, filter store.SiteFilter) ([]store.Site, error) {
	return s.store.ListSites(ctx, filter)
}

func (s *Service) DeleteSite(ctx context.Context, id int64) error {
	return s.store.SoftDeleteSite(ctx, id)
}

func (s *Service) CreateLocation(ctx context.Context, l *store.Location) error {
	l.Name = strings.TrimSpace(l.Name)
	if l.Name == "" {
		return apperr.Invalid("name", "common.required", "name is required")
	}
	if _, err := s.store.GetSite(ctx, l.SiteID); err != nil {
		return err
	}
	_, err := s.store.CreateLocation(ctx, l)
	return err
}

func (s *Service) Locations(ctx context.Context, siteID int64) ([]store.Location, error) {
	if _, err := s.store.GetSite(ctx, siteID); err != nil {
		return nil, err
	}
	return s.store.ListLocations(ctx, siteID)
}

func (s *Service) DeleteLocation(ctx context.Context, id int64) error {
	return s.store.SoftDeleteLocation(ctx, id)
}

// LocationOnSite fails unless locationID is a live location of siteID.
func (s *Service) LocationOnSite(ctx context.Context, locationID, siteID int64) error {
	l, err := s.store.GetLocation(ctx, locationID)
	if errors.Is(err, apperr.ErrNotFound) || (err == nil && l.SiteID != siteID) {
		return apperr.Invalid("location_id", "incidents.locationSite", "location does not belong to the selected site")
	}
	return err
}
