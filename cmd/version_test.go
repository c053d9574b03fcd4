package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionCommandPrintsBuildInfo(t *testing.T) {
	var output bytes.Buffer
	versionCmd.SetOut(&output)
	versionCmd.Run(versionCmd, nil)

	assert.Contains(t, output.String(), "gatewayd "+BuildVersion)
	assert.Contains(t, output.String(), "commit: "+BuildCommit)
}

func TestVersionCommandDoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		versionCmd.Run(versionCmd, nil)
	})
}
