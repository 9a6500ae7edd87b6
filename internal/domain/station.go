package domain

import (
	"fmt"
	"sort"
)

// Station is the spatial anchor of a pipeline run: one fixed SONDA surface
// station whose coordinate the satellite window is centered on. Immutable;
// exactly one station is active per run.
type Station struct {
	Name      string  // catalog name, e.g. "BRASILIA"
	Code      string  // SONDA three-letter code used in archive URLs, e.g. "BRB"
	Latitude  float64 // WGS84 degrees, south negative
	Longitude float64 // WGS84 degrees, west negative
}

func (s Station) String() string {
	return fmt.Sprintf("%s (%s) at %.5f, %.5f", s.Name, s.Code, s.Latitude, s.Longitude)
}

// stationCodes maps SONDA station names to the codes INPE uses in archive
// paths. The network is small and changes rarely, so the mapping ships with
// the binary rather than the config file.
var stationCodes = map[string]string{
	"BRASILIA":              "BRB",
	"CACHOEIRA_PAULISTA":    "CPA",
	"CAICO":                 "CAI",
	"CAMPO_GRANDE_FAZENDA":  "CGR",
	"CAMPO_GRANDE_UNIDERP":  "CGU",
	"CAMPO_MOURAO":          "CMS",
	"CUIABA":                "CBA",
	"CURITIBA_TECPAR":       "CTB",
	"CURITIBA_UTFPR":        "CTS",
	"FLORIANOPOLIS_BSRN":    "FLN",
	"FLORIANOPOLIS_SAPIENS": "SPK",
	"JOINVILLE":             "JOI",
	"MEDIANEIRA":            "MDS",
	"NATAL":                 "NAT",
	"OURINHOS":              "ORN",
	"PALMAS":                "PMA",
	"PETROLINA":             "PTR",
	"SANTAREM":              "STM",
	"SAO_LUIZ":              "SLZ",
	"SAO_MARTINHO":          "SMS",
	"SOMBRIO":               "SBR",
}

// StationCode resolves a catalog station name to its SONDA code.
func StationCode(name string) (string, bool) {
	code, ok := stationCodes[name]
	return code, ok
}

// StationNames returns every known station name in sorted order, for
// validation messages.
func StationNames() []string {
	names := make([]string, 0, len(stationCodes))
	for name := range stationCodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// channelIDs lists the ABI spectral bands in instrument order.
var channelIDs = []string{
	"C01", "C02", "C03", "C04", "C05", "C06", "C07", "C08",
	"C09", "C10", "C11", "C12", "C13", "C14", "C15", "C16",
}

// Channels returns all 16 ABI channel identifiers, C01 through C16.
func Channels() []string {
	out := make([]string, len(channelIDs))
	copy(out, channelIDs)
	return out
}

// IsChannel reports whether id is a valid ABI channel identifier.
func IsChannel(id string) bool {
	for _, c := range channelIDs {
		if c == id {
			return true
		}
	}
	return false
}
