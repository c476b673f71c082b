package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateURL(t *testing.T) {
	tests := []struct {
		name  string
		url   string
		error bool
	}{
		{name: "valid-https", url: "https://example.com", error: false},
		{name: "valid-http-with-port", url: "http://localhost:7938", error: false},
		{name: "missing-scheme", url: "example.com", error: true},
		{name: "unsupported-scheme", url: "ftp://example.com", error: true},
		{name: "missing-host", url: "https://", error: true},
		{name: "empty", url: "", error: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := ValidateURL(test.url)
			if test.error {
				assert.Error(t, err, test.name)
			} else {
				assert.NoError(t, err, test.name)
			}
		})
	}
}
