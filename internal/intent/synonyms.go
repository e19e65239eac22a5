package intent

import "strings"

// paraphrases are hand-coded substitutions seen on survey platforms. Each
// pair is applied in both directions.
var paraphrases = [][2]string{
	{"意见建议", "意见和建议"},
	{"意见建议", "意见或建议"},
	{"联系方式", "联系电话"},
	{"手机号", "手机号码"},
	{"姓名", "名字"},
	{"邮箱", "电子邮箱"},
	{"其他", "其它"},
	{"备注", "说明"},
}

// maxSynonyms bounds the synonym set: the target plus two paraphrases
const maxSynonyms = 3

// Synonyms returns target followed by up to two paraphrased variants
func Synonyms(target string) []string {
	out := []string{target}
	if target == "" {
		return out
	}
	for _, p := range paraphrases {
		short, long := p[0], p[1]
		var variant string
		switch {
		case strings.Contains(target, long):
			variant = strings.Replace(target, long, short, 1)
		case strings.Contains(target, short):
			variant = strings.Replace(target, short, long, 1)
		default:
			continue
		}
		out = dedupe(append(out, variant))
		if len(out) >= maxSynonyms {
			break
		}
	}
	return out
}
