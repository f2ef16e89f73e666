package signals

import (
	"regexp"
	"strconv"
	"strings"
)

type matcher struct {
	tag string
	re  *regexp.Regexp
}

func ci(pattern string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)` + pattern)
}

// Country acronyms are matched case-sensitively so the pronoun "us" never fires.
func cs(pattern string) *regexp.Regexp {
	return regexp.MustCompile(pattern)
}

var phraseMatchers = []matcher{
	{"personalization", ci(`\bpersonali[sz](e|ed|es|ing|ation)\b|\brecommend(er|ers|ation|ations)\b|\bfor you feed\b|\bfeeds?\b`)},
	{"ranking", ci(`\brank(s|ed|ing|ings)?\b|\bre-?rank(s|ed|ing)?\b`)},
	{"minors", ci(`\bminors?\b|\bunder[\s-]?1[3-8]s?\b|\bteen(s|ager|agers)?\b|\bchildren\b|\bkids?\b|\bparental\b|\bjuveniles?\b`)},
	{"age_gate", ci(`\bage[\s_-]?(gate|gated|gating|verification|assurance|check)\b`)},
	{"moderation", ci(`\bmoderat(e|ed|ion|or|ors)\b|\btake[\s-]?downs?\b|\bnotice[\s-]and[\s-]action\b|\bcontent removal\b|\bremov(e|al) of (content|posts?)\b`)},
	{"appeals", ci(`\bappeals?\b`)},
	{"child_safety", ci(`\bncmec\b|\bcsam\b|\bchild sexual abuse\b|\bgrooming\b|\bchild safety\b`)},
	{"ads", ci(`\badvertis(ing|ement|ements|er|ers)\b|\bad[\s-]?(targeting|serving)\b|\btargeted ads?\b|\bmarketing\b`)},
	{"location", ci(`\bgeolocation\b|\bgps\b|\bprecise location\b|\blocation data\b`)},
	{"geo_eu", ci(`\beuropean union\b|\beurope\b|\bfrance\b|\bgermany\b|\bitaly\b|\bspain\b|\bnetherlands\b|\bireland\b`)},
	{"geo_eu", cs(`\b(EU|EEA)\b`)},
	{"geo_us", ci(`\bunited states\b|\bcalifornia\b|\bflorida\b|\butah\b|\btexas\b|\bnew york\b`)},
	{"geo_us", cs(`\bUSA?\b`)},
	{"geo_uk", ci(`\bunited kingdom\b|\bbritain\b|\bengland\b`)},
	{"geo_uk", cs(`\b(UK|GB)\b`)},
	{"geo_targeting", ci(`\bgeo[\s-]?fenc(e|ed|es|ing)\b|\bgeo[\s-]?block(s|ed|ing)?\b|\bregion[\s-]?lock(s|ed)?\b|\bgeoip\b`)},
}

var (
	regionCheck   = ci(`\b(?:region|country(?:_?code)?|market|jurisdiction|geo)\w*\s*(?:===?|!==?|\bnot\s+in\b|\bin\b)`)
	quotedCode    = regexp.MustCompile(`["']([A-Za-z]{2,3})["']`)
	ageCompare    = cs(`(?:\b(?:\w*_)?[aA]ge|[a-z0-9]Age)\s*(?:<=?|>=?)\s*(\d{1,2})\b`)
	ageCompareRev = cs(`\b(\d{1,2})\s*(?:<=?|>=?)\s*(?:[\w.]*[._])?(?:age|Age)\b`)
	ageGateCall   = ci(`\b(?:age_?gate|verify_?age|check_?age|is_?minor|is_?under_?\d+|require_?age\w*)\s*\(`)
)

var jurisdictionCodes = map[string]string{
	"EU":  "geo_eu",
	"EEA": "geo_eu",
	"US":  "geo_us",
	"USA": "geo_us",
	"UK":  "geo_uk",
	"GB":  "geo_uk",
}

// adultAge is the highest age threshold still treated as a minors check.
const adultAge = 18

func matchPhrases(text string) []string {
	var tags []string
	for _, m := range phraseMatchers {
		if m.re.MatchString(text) {
			tags = append(tags, m.tag)
		}
	}
	return tags
}

func matchCode(hint string) []string {
	var tags []string

	if regionCheck.MatchString(hint) {
		tags = append(tags, "geo_targeting")
		for _, m := range quotedCode.FindAllStringSubmatch(hint, -1) {
			if tag, ok := jurisdictionCodes[strings.ToUpper(m[1])]; ok {
				tags = append(tags, tag)
			}
		}
	}

	for _, re := range []*regexp.Regexp{ageCompare, ageCompareRev} {
		for _, m := range re.FindAllStringSubmatch(hint, -1) {
			tags = append(tags, "age_gate")
			if n, err := strconv.Atoi(m[1]); err == nil && n <= adultAge {
				tags = append(tags, "minors")
			}
		}
	}

	if ageGateCall.MatchString(hint) {
		tags = append(tags, "age_gate")
	}

	return tags
}
