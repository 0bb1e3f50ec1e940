// Package area defines the unit of publication: the national scope or one
// French department.
package area

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

// National is the area covering the whole French territory.
const National Area = "nat"

// ErrUnknownArea is wrapped by Parse when the value is neither "nat" nor a
// known department code.
var ErrUnknownArea = errors.New("unknown area")

//go:embed departments.yaml
var departmentsYAML []byte

// Area is "nat" or a department code such as "75" or "2A".
type Area string

// Department is one entry of the embedded department list.
type Department struct {
	Code string `yaml:"code"`
	Name string `yaml:"name"`
}

var (
	loadOnce    sync.Once
	departments []Department
	byCode      map[string]Department
)

func load() {
	var doc struct {
		Departments []Department `yaml:"departments"`
	}
	if err := yaml.Unmarshal(departmentsYAML, &doc); err != nil {
		panic(fmt.Sprintf("area: invalid embedded departments.yaml: %v", err))
	}
	departments = doc.Departments
	byCode = make(map[string]Department, len(departments))
	for _, d := range departments {
		byCode[d.Code] = d
	}
}

// Departments returns the known departments in publication order.
func Departments() []Department {
	loadOnce.Do(load)
	out := make([]Department, len(departments))
	copy(out, departments)
	return out
}

// IsDepartment reports whether code is a known department code.
func IsDepartment(code string) bool {
	loadOnce.Do(load)
	_, ok := byCode[code]
	return ok
}

// Parse validates s as an area.
func Parse(s string) (Area, error) {
	if Area(s) == National || IsDepartment(s) {
		return Area(s), nil
	}
	return "", fmt.Errorf("%w: %s. It must be either 'nat' or a department code. '%s' given", ErrUnknownArea, s, s)
}

// All returns the national area followed by every department.
func All() []Area {
	deps := Departments()
	out := make([]Area, 0, len(deps)+1)
	out = append(out, National)
	for _, d := range deps {
		out = append(out, Area(d.Code))
	}
	return out
}

// IsNational reports whether a is the national area.
func (a Area) IsNational() bool { return a == National }

func (a Area) String() string { return string(a) }

// FileStem is the export base name, without extension.
func (a Area) FileStem() string { return "RNB_" + string(a) }

// Title is the portal resource title. It is also the key used to find an
// existing resource, so it must stay stable across runs.
func (a Area) Title() string {
	if a.IsNational() {
		return "Export National"
	}
	return "Export Départemental " + string(a)
}

// Description is the French resource description shown on the portal.
func (a Area) Description() string {
	if a.IsNational() {
		return "Export du RNB au format csv pour l’ensemble du territoire français."
	}
	return fmt.Sprintf("Export du RNB au format csv pour le département %s.", string(a))
}
