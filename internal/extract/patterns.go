package extract

import (
	"regexp"

	"github.com/ppiankov/veracity/internal/model"
)

// typePatterns holds keyword patterns per claim category
var typePatterns = map[model.ClaimType][]*regexp.Regexp{
	model.ClaimTypeScientific: compile(
		`\b(study|studies|research|scientists?|experiments?|evidence|theory|hypothesis)\b`,
		`\b(biology|physics|chemistry|astronomy|geology|ecology)\b`,
		`\b(evolution|climate|species|atoms?|molecules?|earth|planet|universe|solar|orbits?|gravity)\b`,
	),
	model.ClaimTypeMedical: compile(
		`\b(health|disease|treatment|vaccines?|medicine|drugs?|doctors?)\b`,
		`\b(symptoms?|diagnosis|cure|therapy|hospital|patients?)\b`,
		`\b(cancer|diabetes|heart|brain|virus|bacteria|immune)\b`,
	),
	model.ClaimTypeHistorical: compile(
		`\b(history|historical|century|centuries|decade|era|period)\b`,
		`\b(war|battle|revolution|empire|kingdom|civilization|dynasty)\b`,
		`\b(ancient|medieval|founded|discovered|invented)\b`,
		`\bin (1[0-9]{3}|20[0-2][0-9])\b`,
	),
	model.ClaimTypeStatistical: compile(
		`(\d+(\.\d+)?\s?%|\bpercent\b|\bpercentage\b|\bratio\b|\baverage\b|\bmedian\b)`,
		`\b(million|billion|trillion|thousand)\b`,
		`\b(statistics?|survey|poll|census|data)\b`,
	),
	model.ClaimTypePolitical: compile(
		`\b(government|president|congress|senate|parliament|law|policy)\b`,
		`\b(democrats?|republicans?|elections?|votes?|campaign)\b`,
		`\b(political|politicians?|legislation|bill|minister)\b`,
	),
	model.ClaimTypeFinancial: compile(
		`\b(money|dollars?|price|cost|economy|market|stocks?)\b`,
		`\b(tax|taxes|revenue|profit|loss|investment|budget)\b`,
		`\b(gdp|inflation|unemployment|interest rates?)\b`,
	),
	model.ClaimTypeGeographic: compile(
		`\b(country|city|state|continent|ocean|mountain|river)\b`,
		`\b(population|capital|border|territory|region)\b`,
		`\b(latitude|longitude|north|south|equator)\b`,
	),
	model.ClaimTypeTechnical: compile(
		`\b(software|computers?|internet|algorithm|technology|network)\b`,
		`\b(processor|smartphone|device|battery|semiconductor|5g)\b`,
		`\b(artificial intelligence|machine learning|programming|encryption)\b`,
	),
	model.ClaimTypeBiographical: compile(
		`\b(born|died|married|childhood|biography)\b`,
		`\b(his|her) (career|life|wife|husband|father|mother)\b`,
		`\b(ceo|founder|inventor|author) of\b`,
	),
}

// separatorPattern splits compound claims on conjunctions and causal connectors
var separatorPattern = regexp.MustCompile(`(?i)\s*(?:;|,\s*which\b|,\s*and\b|\band\b|\bwhile\b|\bwhereas\b|\bbut\b|\bhowever\b|\balthough\b|\bbecause\b|\btherefore\b)\s*`)

var (
	opinionPatterns = compile(
		`\b(i think|i believe|i feel|in my opinion|probably|maybe|might)\b`,
		`\b(best|worst|most beautiful|ugliest|greatest|overrated|underrated)\b`,
		`\b(should|ought to|must|need to)\b`,
	)

	timeSensitivePatterns = compile(
		`\b(is|are) the (president|prime minister|ceo|leader|chancellor)\b`,
		`\b(population|gdp|economy|temperature) (is|are)\b`,
		`\b(world record|champion|winner)\b`,
		`\b(latest|current|currently|newest|now|today)\b`,
		`\b(price|cost|rate|value) (is|are)\b`,
	)

	numberPattern   = regexp.MustCompile(`\d`)
	absolutePattern = regexp.MustCompile(`(?i)\b(all|never|always|only|every|none|no one|nobody)\b`)
	vaguePattern    = regexp.MustCompile(`(?i)\b(some|many|often|sometimes|several|various|likely)\b`)
)

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+e))
	}
	return out
}

func matchesAny(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
