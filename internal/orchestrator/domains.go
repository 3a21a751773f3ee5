package orchestrator

import (
	"strings"

	"github.com/sandevgo/vexd/internal/core"
)

const DomainGeneral = "general"

// Closed tag vocabulary, checked in order so the result is order-stable.
var domainKeywords = []struct {
	tag      string
	keywords []string
}{
	{"coder", []string{"code", "python", "js", "react", "bug", "stack trace"}},
	{"cybersec", []string{"security", "malware", "exploit", "c2", "ransomware"}},
	{"engineer", []string{"server", "docker", "k8s", "database", "linux", "thermal", "materials", "engineering"}},
}

// DetectDomains tags the recent conversation with coarse topic labels by
// keyword matching over the last few messages. It always returns at least
// one tag; with no keyword match the result is exactly {general}.
func DetectDomains(messages []core.Message) []string {
	recent := messages
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}

	var blob strings.Builder
	for _, m := range recent {
		blob.WriteString(strings.ToLower(m.Content))
		blob.WriteByte(' ')
	}
	text := blob.String()

	var domains []string
	for _, d := range domainKeywords {
		for _, kw := range d.keywords {
			if strings.Contains(text, kw) {
				domains = append(domains, d.tag)
				break
			}
		}
	}

	if len(domains) == 0 {
		domains = append(domains, DomainGeneral)
	}
	return domains
}
