package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunInvalidArguments(t *testing.T) {
	tests := map[string]struct {
		args   []string
		expErr string
	}{
		"An unknown flag should fail.": {
			args:   []string{"botctl", "--wrong-flag"},
			expErr: "invalid arguments",
		},
		"An unknown command should fail.": {
			args:   []string{"botctl", "wrong-command"},
			expErr: "invalid arguments",
		},
		"An invalid logger type should fail.": {
			args:   []string{"botctl", "--logger", "xml", "history"},
			expErr: "invalid arguments",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			err := Run(context.Background(), test.args, strings.NewReader(""), &stdout, &stderr)
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), test.expErr)
			}
			assert.Empty(t, stdout.String())
		})
	}
}
