package answer

import (
	"regexp"
	"strings"
)

// Disclaimer closes every policy answer.
const Disclaimer = "Not legal advice."

// DefaultNextSteps replace the model's next steps when it did not give exactly two.
var DefaultNextSteps = [2]string{
	"Inventory where automated tools influence decisions; document vendor, model, purpose, data, and human review.",
	"Request vendors' latest bias-testing or impact-assessment results and prepare a one-paragraph " +
		"applicant disclosure with a human-review option.",
}

var (
	bannedPhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)review( the)? bills?`),
		regexp.MustCompile(`(?i)monitor(ing)? updates`),
		regexp.MustCompile(`(?i)monitor legislative updates`),
	}
	trailingBlanks   = regexp.MustCompile(`[ \t]+\n`)
	repeatedBlanks   = regexp.MustCompile(`[ \t]{2,}`)
	listItem         = regexp.MustCompile(`(?m)^(?:-|\d+\.)[ \t]*\S`)
	nextStepsSection = regexp.MustCompile(`(?is)\n?\s*next steps:.*$`)
)

// Polish puts a generated answer in executive style: filler advice removed,
// exactly two next steps, and the disclaimer at the end.
func Polish(text string) string {
	t := strings.TrimSpace(text)
	for _, re := range bannedPhrases {
		t = re.ReplaceAllString(t, "")
	}
	t = repeatedBlanks.ReplaceAllString(t, " ")
	t = strings.TrimSpace(trailingBlanks.ReplaceAllString(t, "\n"))

	if len(listItem.FindAllStringIndex(t, -1)) != 2 {
		t = strings.TrimSpace(nextStepsSection.ReplaceAllString(t, ""))
		t += "\n\nNext steps:\n- " + DefaultNextSteps[0] + "\n- " + DefaultNextSteps[1]
	}
	return t + disclaimerTail(t)
}

// disclaimerTail is what must be appended to text so it ends in the disclaimer.
func disclaimerTail(text string) string {
	if strings.Contains(text, strings.TrimSuffix(Disclaimer, ".")) {
		return ""
	}
	return "\n\n" + Disclaimer
}
