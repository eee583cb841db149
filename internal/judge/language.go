package judge

import (
	"fmt"
	"strings"

	"codebench/internal/common"
)

// languageIDs maps human-readable language labels to the execution service's
// numeric identifiers. Labels are matched case-insensitively.
var languageIDs = map[string]int{
	"c++":        54,
	"java":       62,
	"javascript": 63,
}

// ResolveLanguage returns the execution service id for a language label.
// Unknown labels are a client-input error, not a server fault.
func ResolveLanguage(label string) (int, error) {
	id, ok := languageIDs[strings.ToLower(label)]
	if !ok {
		return 0, fmt.Errorf("language %q: %w", label, common.ErrUnsupportedLanguage)
	}
	return id, nil
}

// SupportedLanguages returns the recognized labels, for validation messages.
func SupportedLanguages() []string {
	labels := make([]string, 0, len(languageIDs))
	for label := range languageIDs {
		labels = append(labels, label)
	}
	return labels
}
