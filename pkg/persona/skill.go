package persona

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// skillFileName is the host's skill manifest that accompanies a persona
// document. Its description drives auto-invocation.
const skillFileName = "SKILL.md"

type skillHeader struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// parseSkillDescription returns the first line of the description field of
// a SKILL.md header, or "" when there is none.
func parseSkillDescription(content string) string {
	s := strings.ReplaceAll(content, "\r\n", "\n")
	if !strings.HasPrefix(s, frontMatterDelimiter+"\n") {
		return ""
	}
	rest := s[len(frontMatterDelimiter):]
	idx := strings.Index(rest, "\n"+frontMatterDelimiter)
	if idx == -1 {
		return ""
	}

	var h skillHeader
	if err := yaml.Unmarshal([]byte(rest[:idx]), &h); err != nil {
		return ""
	}
	for _, line := range strings.Split(h.Description, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
