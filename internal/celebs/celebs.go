// internal/celebs/celebs.go
//
// Entity model for the quiz: a Celebrity and its category attributes.
//
// Responsibilities:
//   - Define Celebrity and the Region/Gender/Profession enums.
//   - Map enum values to display labels.
//   - Filter a list by the player's attribute selection.
//
// Notes:
//   - Entities are immutable once loaded; the game core only reads ID and Name.
//   - Enum values are stable integers shared with the dataset JSON.

package celebs

import "slices"

// Region of origin.
type Region int

const (
	RegionMainland   Region = 1
	RegionHongKong   Region = 2
	RegionTaiwan     Region = 3
	RegionJapanKorea Region = 4
	RegionOther      Region = 5
)

// Gender of the celebrity.
type Gender int

const (
	GenderMale   Gender = 1
	GenderFemale Gender = 2
)

// Profession the celebrity is known for.
type Profession int

const (
	ProfessionFilmActor       Profession = 1
	ProfessionCrosstalkActor  Profession = 2
	ProfessionStandupComedian Profession = 3
)

const unknownLabel = "未知"

var (
	regionLabels = map[Region]string{
		RegionMainland:   "内地",
		RegionHongKong:   "香港",
		RegionTaiwan:     "台湾",
		RegionJapanKorea: "日韩",
		RegionOther:      "其他",
	}
	genderLabels = map[Gender]string{
		GenderMale:   "男",
		GenderFemale: "女",
	}
	professionLabels = map[Profession]string{
		ProfessionFilmActor:       "影视演员",
		ProfessionCrosstalkActor:  "相声演员",
		ProfessionStandupComedian: "脱口秀演员",
	}
)

// Label returns the display text for r.
func (r Region) Label() string { return label(regionLabels, r) }

// Label returns the display text for g.
func (g Gender) Label() string { return label(genderLabels, g) }

// Label returns the display text for p.
func (p Profession) Label() string { return label(professionLabels, p) }

func label[K comparable](m map[K]string, k K) string {
	if s, ok := m[k]; ok {
		return s
	}
	return unknownLabel
}

// Celebrity is one quiz subject.
type Celebrity struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Photo      string     `json:"photo"`
	HDPhoto    string     `json:"hdphoto,omitempty"`
	Region     Region     `json:"region"`
	Gender     Gender     `json:"gender"`
	Profession Profession `json:"profession"`
}

// ImageRef returns the best available photo reference.
func (c Celebrity) ImageRef() string {
	if c.HDPhoto != "" {
		return c.HDPhoto
	}
	return c.Photo
}

// InfoText renders "name - region - gender - profession".
func InfoText(c Celebrity) string {
	return c.Name + " - " + c.Region.Label() + " - " + c.Gender.Label() + " - " + c.Profession.Label()
}

// Filters is the player's attribute selection. An empty dimension matches anything.
type Filters struct {
	Regions     []Region     `json:"regions"`
	Genders     []Gender     `json:"genders"`
	Professions []Profession `json:"professions"`
}

// Active reports whether any dimension narrows the selection.
func (f Filters) Active() bool {
	return len(f.Regions) > 0 || len(f.Genders) > 0 || len(f.Professions) > 0
}

// Match reports whether c passes every non-empty dimension of f.
func (f Filters) Match(c Celebrity) bool {
	if len(f.Regions) > 0 && !slices.Contains(f.Regions, c.Region) {
		return false
	}
	if len(f.Genders) > 0 && !slices.Contains(f.Genders, c.Gender) {
		return false
	}
	if len(f.Professions) > 0 && !slices.Contains(f.Professions, c.Profession) {
		return false
	}
	return true
}

// Filter returns the entities of list matching f, preserving order.
func Filter(list []Celebrity, f Filters) []Celebrity {
	out := make([]Celebrity, 0, len(list))
	for _, c := range list {
		if f.Match(c) {
			out = append(out, c)
		}
	}
	return out
}
