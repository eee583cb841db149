package judge

import (
	"testing"

	"codebench/internal/common"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveLanguage(t *testing.T) {
	id, err := ResolveLanguage("c++")
	require.NoError(t, err)
	assert.Equal(t, 54, id)

	id, err = ResolveLanguage("java")
	require.NoError(t, err)
	assert.Equal(t, 62, id)

	id, err = ResolveLanguage("javascript")
	require.NoError(t, err)
	assert.Equal(t, 63, id)
}

func TestResolveLanguageCaseInsensitive(t *testing.T) {
	for _, label := range []string{"C++", "Java", "JavaScript", "JAVASCRIPT"} {
		_, err := ResolveLanguage(label)
		assert.NoError(t, err, "label %q should resolve", label)
	}
}

func TestResolveLanguageUnsupported(t *testing.T) {
	_, err := ResolveLanguage("python")
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrUnsupportedLanguage)
	assert.Contains(t, err.Error(), "python")
}

func TestSupportedLanguages(t *testing.T) {
	labels := SupportedLanguages()
	assert.Len(t, labels, 3)
	assert.ElementsMatch(t, []string{"c++", "java", "javascript"}, labels)
}
