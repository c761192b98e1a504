package spam

import (
	"regexp"
	"strings"

	"github.com/mssola/useragent"

	"coalition/pkg/emailaddr"
)

// disposableDomains is a seed list of throwaway email providers. Soft signal:
// legitimate endorsers occasionally use them, so it scores rather than rejects.
var disposableDomains = map[string]struct{}{
	"mailinator.com":    {},
	"guerrillamail.com": {},
	"10minutemail.com":  {},
	"tempmail.com":      {},
	"throwaway.email":   {},
	"sharklasers.com":   {},
	"yopmail.com":       {},
	"trashmail.com":     {},
}

func checkEmailReputation(sub Submission) (float64, string) {
	domain := emailaddr.Domain(sub.Email)
	if domain == "" {
		return 0.4, "malformed_email_domain"
	}
	if _, ok := disposableDomains[domain]; ok {
		return 0.5, "disposable_email_domain"
	}
	if !strings.Contains(domain, ".") {
		return 0.3, "suspicious_email_domain"
	}
	return 0, ""
}

var (
	linkPattern = regexp.MustCompile(`https?://\S+`)
	// genericNamePattern matches keyboard-mash and placeholder names bots use.
	genericNamePattern = regexp.MustCompile(`(?i)^(test|asdf+|qwer+|admin|anonymous|[a-z])( (test|user|name|[a-z]))?$`)
)

// checkContent scores promotional-link density in the statement and generic
// name patterns, the two strongest content signals in observed form spam.
func (f *Filter) checkContent(sub Submission) (float64, string) {
	if genericNamePattern.MatchString(strings.TrimSpace(sub.Name)) {
		return 0.4, "generic_name_pattern"
	}

	words := strings.Fields(sub.Statement)
	if len(words) == 0 {
		return 0, ""
	}
	links := linkPattern.FindAllString(sub.Statement, -1)
	density := float64(len(links)) / float64(len(words))
	if len(links) > 0 && density > f.cfg.MaxLinkDensity {
		return 0.6, "promotional_link_density"
	}
	return 0, ""
}

// checkUserAgent flags declared bots and empty user agents. Headless browsers
// lie; this only catches the honest ones, which is why it scores softly.
func checkUserAgent(sub Submission) (float64, string) {
	if strings.TrimSpace(sub.UserAgent) == "" {
		return 0.3, "missing_user_agent"
	}
	ua := useragent.New(sub.UserAgent)
	if ua.Bot() {
		return 0.6, "bot_user_agent"
	}
	browser, _ := ua.Browser()
	if browser == "" {
		return 0.2, "unrecognized_user_agent"
	}
	return 0, ""
}
