// Copyright (C) 2021-2025 Intel Corporation
// SPDX-License-Identifier: BSD-3-Clause

package util

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsPathExpandsRelative(t *testing.T) {
	abs, err := AbsPath("trace.txt")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(abs))
}

func TestFileExistsTrueForRegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "util_test")
	require.NoError(t, err)
	f.Close()

	exists, err := FileExists(f.Name())
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFileExistsFalseForMissingFile(t *testing.T) {
	exists, err := FileExists(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFileExistsErrorsForDirectory(t *testing.T) {
	_, err := FileExists(t.TempDir())
	assert.Error(t, err)
}
