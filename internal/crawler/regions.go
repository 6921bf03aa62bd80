package crawler

import (
	"os"

	"gopkg.in/yaml.v3"

	"sjsage522/unjobsworker/pkg/errors"
)

// DutyStation is one row of the duty-station table. Key is the display name
// used for title matching, Value the code the careers portal filters on.
type DutyStation struct {
	Key     string `yaml:"key"`
	Value   string `yaml:"value"`
	Country string `yaml:"country"`
}

// RegionTable holds the place names every source filters on
type RegionTable struct {
	DutyStations  []DutyStation `yaml:"duty_stations"`
	UNJobsExtra   []string      `yaml:"unjobs_extra"`
	UNTalentExtra []string      `yaml:"untalent_extra"`
}

// EuropeanDutyStations are the duty stations in scope by default
var EuropeanDutyStations = []DutyStation{
	{Key: "Athens", Value: "ATHENS", Country: "Greece"},
	{Key: "Barcelona", Value: "BARCELONA", Country: "Spain"},
	{Key: "Belgrade", Value: "BELGRADE", Country: "Serbia"},
	{Key: "Berlin", Value: "BERLIN", Country: "Germany"},
	{Key: "Bern", Value: "BERN", Country: "Switzerland"},
	{Key: "Bonn", Value: "BONN", Country: "Germany"},
	{Key: "Brindisi", Value: "BRINDISI", Country: "Italy"},
	{Key: "Brussels", Value: "BRUSSELS", Country: "Belgium"},
	{Key: "Budapest", Value: "BUDAPEST", Country: "Hungary"},
	{Key: "Cambridge", Value: "CAMBRIDGE", Country: "United Kingdom"},
	{Key: "Chisinau", Value: "CHISINAU", Country: "Moldova"},
	{Key: "Copenhagen", Value: "COPENHAGEN", Country: "Denmark"},
	{Key: "Donetsk", Value: "DONETSK", Country: "Ukraine"},
	{Key: "Geneva", Value: "Geneva", Country: "Switzerland"},
	{Key: "Kyiv", Value: "KIEV", Country: "Ukraine"},
	{Key: "Kharkiv", Value: "KHARKIV", Country: "Ukraine"},
	{Key: "Lisbon", Value: "LISBON", Country: "Portugal"},
	{Key: "London", Value: "LDN", Country: "United Kingdom"},
	{Key: "Luhansk", Value: "LUHANSK", Country: "Ukraine"},
	{Key: "Lviv", Value: "LVIV", Country: "Ukraine"},
	{Key: "Madrid", Value: "MADRID", Country: "Spain"},
	{Key: "Minsk", Value: "MINSK", Country: "Belarus"},
	{Key: "Mitrovica", Value: "MITROVICAKOSOVO", Country: "Kosovo"},
	{Key: "Moscow", Value: "MOSCOW", Country: "Russia"},
	{Key: "Nicosia", Value: "NICOSIA", Country: "Cyprus"},
	{Key: "Odessa", Value: "ODESSA", Country: "Ukraine"},
	{Key: "Paris", Value: "1470", Country: "France"},
	{Key: "Podgorica", Value: "PODGORICA", Country: "Montenegro"},
	{Key: "Prague", Value: "PRAGUE", Country: "Czech Republic"},
	{Key: "Pristina", Value: "PRISTINA", Country: "Kosovo"},
	{Key: "Rome", Value: "ROME", Country: "Italy"},
	{Key: "Sarajevo", Value: "SARAJEVO", Country: "Bosnia and Herzegovina"},
	{Key: "Skopje", Value: "SKOPJE", Country: "North Macedonia"},
	{Key: "Sokhumi", Value: "SOKHUMI", Country: "Georgia"},
	{Key: "Stockholm", Value: "STOCKHOLM", Country: "Sweden"},
	{Key: "The Hague", Value: "THEHAGUE", Country: "Netherlands"},
	{Key: "Tirana", Value: "TIRANA", Country: "Albania"},
	{Key: "Tbilisi", Value: "TBILISI", Country: "Georgia"},
	{Key: "Valletta", Value: "VALLETTA", Country: "Malta"},
	{Key: "Vienna", Value: "VIENNA", Country: "Austria"},
	{Key: "Warsaw", Value: "WARSAW", Country: "Poland"},
	{Key: "Yerevan", Value: "YEREVAN", Country: "Armenia"},
	{Key: "Zagreb", Value: "ZAGREB", Country: "Croatia"},
}

// DefaultRegionTable returns the built-in table
func DefaultRegionTable() RegionTable {
	return RegionTable{
		DutyStations: append([]DutyStation(nil), EuropeanDutyStations...),
		UNJobsExtra:  []string{"Home Based", "Remote", "Europe", "UK"},
		UNTalentExtra: []string{
			"Amsterdam", "Cyprus", "Denmark", "Finland", "France", "Germany",
			"Greece", "Ireland", "Italy", "Luxembourg", "Malta", "Netherlands",
			"Portugal", "Spain", "Sweden", "Switzerland", "United Kingdom", "UK",
		},
	}
}

// LoadRegionTable reads a YAML region table. Sections left out of the file
// keep their built-in values.
func LoadRegionTable(path string) (RegionTable, error) {
	table := DefaultRegionTable()

	data, err := os.ReadFile(path)
	if err != nil {
		return table, errors.NewConfiguration("failed to read region table "+path, err)
	}

	var fromFile RegionTable
	if err := yaml.Unmarshal(data, &fromFile); err != nil {
		return table, errors.NewConfiguration("failed to parse region table "+path, err)
	}

	if fromFile.DutyStations != nil {
		table.DutyStations = fromFile.DutyStations
	}
	if fromFile.UNJobsExtra != nil {
		table.UNJobsExtra = fromFile.UNJobsExtra
	}
	if fromFile.UNTalentExtra != nil {
		table.UNTalentExtra = fromFile.UNTalentExtra
	}

	for _, ds := range table.DutyStations {
		if ds.Key == "" || ds.Value == "" {
			return table, errors.NewConfiguration("duty station needs both key and value in "+path, nil)
		}
	}
	return table, nil
}

// DutyStationCodes returns the codes the careers portal filter payload carries
func (t RegionTable) DutyStationCodes() []string {
	codes := make([]string, 0, len(t.DutyStations))
	for _, ds := range t.DutyStations {
		codes = append(codes, ds.Value)
	}
	return codes
}

// UNJobsRegions returns the generic regions, then station names, then countries
func (t RegionTable) UNJobsRegions() []string {
	list := append([]string(nil), t.UNJobsExtra...)
	for _, ds := range t.DutyStations {
		list = append(list, ds.Key)
	}
	for _, ds := range t.DutyStations {
		list = append(list, ds.Country)
	}
	return unique(list)
}

// UNTalentRegions returns the unjobs regions plus the talent board extras
func (t RegionTable) UNTalentRegions() []string {
	return unique(append(t.UNJobsRegions(), t.UNTalentExtra...))
}

func unique(list []string) []string {
	seen := make(map[string]struct{}, len(list))
	out := make([]string, 0, len(list))
	for _, s := range list {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
