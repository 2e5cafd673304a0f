package textmatch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFindWholeWords(t *testing.T) {
	m := Compile([]string{"api", "CI/CD", "react native", "api", " "})
	assert.Equal(t, []string{"api", "ci/cd", "react native"}, m.Find("api CI/CD react native"))

	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"substring is not a word", "a rapid prototype", nil},
		{"case insensitive", "Expose a REST API, please", []string{"api"}},
		{"punctuation in keyword", "Update the CI/CD pipeline", []string{"ci/cd"}},
		{"phrase", "Ship the React Native screen and the api", []string{"api", "react native"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.Find(tt.text))
		})
	}
}

func TestNilMatcher(t *testing.T) {
	var m *Matcher
	assert.Nil(t, m.Find("anything"))
}
