package language

import "strings"

type entry struct {
	code2     string   // ISO 639-1
	code3     string   // ISO 639-2 primary
	alt3      string   // ISO 639-2 bibliographic variant ("fre" for "fra")
	tesseract string   // traineddata name
	display   string
	words     []string // plain names accepted in config
}

var languages = []entry{
	{"en", "eng", "", "eng", "English", []string{"english"}},
	{"es", "spa", "", "spa", "Spanish", []string{"spanish"}},
	{"fr", "fra", "fre", "fra", "French", []string{"french"}},
	{"de", "deu", "ger", "deu", "German", []string{"german"}},
	{"it", "ita", "", "ita", "Italian", []string{"italian"}},
	{"pt", "por", "", "por", "Portuguese", []string{"portuguese"}},
	{"nl", "nld", "dut", "nld", "Dutch", []string{"dutch"}},
	{"sv", "swe", "", "swe", "Swedish", []string{"swedish"}},
	{"da", "dan", "", "dan", "Danish", []string{"danish"}},
	{"no", "nor", "", "nor", "Norwegian", []string{"norwegian"}},
	{"fi", "fin", "", "fin", "Finnish", []string{"finnish"}},
	{"pl", "pol", "", "pol", "Polish", []string{"polish"}},
	{"cs", "ces", "cze", "ces", "Czech", []string{"czech"}},
	{"hu", "hun", "", "hun", "Hungarian", []string{"hungarian"}},
	{"ru", "rus", "", "rus", "Russian", []string{"russian"}},
	{"el", "ell", "gre", "ell", "Greek", []string{"greek"}},
	{"la", "lat", "", "lat", "Latin", []string{"latin"}},
	{"ga", "gle", "", "gle", "Irish", []string{"irish"}},
	{"yi", "yid", "", "yid", "Yiddish", []string{"yiddish"}},
	{"he", "heb", "", "heb", "Hebrew", []string{"hebrew"}},
	{"ar", "ara", "", "ara", "Arabic", []string{"arabic"}},
	{"hi", "hin", "", "hin", "Hindi", []string{"hindi"}},
	{"ja", "jpn", "", "jpn", "Japanese", []string{"japanese"}},
	{"ko", "kor", "", "kor", "Korean", []string{"korean"}},
	{"zh", "zho", "chi", "chi_sim", "Chinese", []string{"chinese"}},
}

var (
	byCode2 map[string]*entry
	byCode3 map[string]*entry
	byWord  map[string]*entry
)

func init() {
	byCode2 = make(map[string]*entry, len(languages))
	byCode3 = make(map[string]*entry, len(languages)*2)
	byWord = make(map[string]*entry, len(languages))
	for i := range languages {
		e := &languages[i]
		byCode2[e.code2] = e
		byCode3[e.code3] = e
		if e.alt3 != "" {
			byCode3[e.alt3] = e
		}
		for _, w := range e.words {
			byWord[w] = e
		}
	}
}

func lookup(code string) *entry {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return nil
	}
	if e, ok := byCode2[code]; ok {
		return e
	}
	if e, ok := byCode3[code]; ok {
		return e
	}
	if e, ok := byWord[code]; ok {
		return e
	}
	return nil
}

// ToTesseract converts a language setting to tesseract traineddata names.
// Several languages may be combined with "+" or ","; duplicates are dropped
// and unknown names (for example "chi_tra" or "frk") pass through lowercased.
// Empty input yields "eng".
func ToTesseract(setting string) string {
	parts := strings.FieldsFunc(setting, func(r rune) bool {
		return r == '+' || r == ',' || r == ' '
	})
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		name := strings.ToLower(strings.TrimSpace(part))
		if e := lookup(name); e != nil {
			name = e.tesseract
		}
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	if len(out) == 0 {
		return "eng"
	}
	return strings.Join(out, "+")
}

// DisplayName renders a tesseract language setting for humans, e.g.
// "eng+deu" becomes "English, German". Unrecognized names are uppercased.
func DisplayName(setting string) string {
	parts := strings.Split(ToTesseract(setting), "+")
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if e := lookup(part); e != nil {
			names = append(names, e.display)
			continue
		}
		if e := lookupTesseract(part); e != nil {
			names = append(names, e.display)
			continue
		}
		names = append(names, strings.ToUpper(part))
	}
	return strings.Join(names, ", ")
}

func lookupTesseract(name string) *entry {
	for i := range languages {
		if languages[i].tesseract == name {
			return &languages[i]
		}
	}
	return nil
}
