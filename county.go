package vagkoll

// CountyNational is the region code for nationwide events. These bypass
// county filtering entirely.
const CountyNational = 0

// countyAliases maps legacy region codes onto their canonical replacement.
// The upstream feed still emits code 2 for some Stockholm events, a leftover
// duplicate of the modern code 1. Normalizing on every comparison keeps a
// user from ending up with two logically-identical filter entries.
var countyAliases = map[int]int{
	2: 1, // legacy Stockholm duplicate
}

// countyNames lists the canonical county codes. Gaps in the numbering are
// historical: codes that belonged to counties merged away in the 90s.
var countyNames = map[int]string{
	1:  "Stockholms län",
	3:  "Uppsala län",
	4:  "Södermanlands län",
	5:  "Östergötlands län",
	6:  "Jönköpings län",
	7:  "Kronobergs län",
	8:  "Kalmar län",
	9:  "Gotlands län",
	10: "Blekinge län",
	12: "Skåne län",
	13: "Hallands län",
	14: "Västra Götalands län",
	17: "Värmlands län",
	18: "Örebro län",
	19: "Västmanlands län",
	20: "Dalarnas län",
	21: "Gävleborgs län",
	22: "Västernorrlands län",
	23: "Jämtlands län",
	24: "Västerbottens län",
	25: "Norrbottens län",
}

// NormalizeCounty collapses alias region codes onto their canonical code.
// Unknown codes pass through unchanged.
func NormalizeCounty(countyNo int) int {
	if canonical, ok := countyAliases[countyNo]; ok {
		return canonical
	}
	return countyNo
}

// CountyName returns the display name for a canonical county code, or ""
// for codes we don't know (including CountyNational).
func CountyName(countyNo int) string {
	return countyNames[NormalizeCounty(countyNo)]
}
