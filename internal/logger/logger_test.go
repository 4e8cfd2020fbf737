package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_FileOutputJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")
	require.NoError(t, Init(&Config{Level: "debug", Format: "json", Output: "file", FilePath: path}))
	t.Cleanup(func() { Logger = nil })

	WithFields(logrus.Fields{"alias": "abc", "password": "hunter2"}).Info("分享创建成功")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	var last map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[len(lines)-1], &last))
	assert.Equal(t, "abc", last["alias"])
	assert.Equal(t, Redacted, last["password"])
	assert.Equal(t, "debug", Logger.GetLevel().String())
}

func TestInit_InvalidValuesFallBack(t *testing.T) {
	require.NoError(t, Init(&Config{Level: "loud", Format: "xml", Output: "printer"}))
	t.Cleanup(func() { Logger = nil })

	var buf bytes.Buffer
	SetOutput(&buf)
	assert.Equal(t, logrus.InfoLevel, Logger.GetLevel())
	_, isText := Logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}

func TestRedactHook(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.AddHook(redactHook{})

	l.WithFields(logrus.Fields{"Token": "jwt", "Authorization": "Bearer x", "size": "1 KiB"}).Warn("test")

	out := buf.String()
	assert.NotContains(t, out, "jwt")
	assert.NotContains(t, out, "Bearer x")
	assert.Contains(t, out, "1 KiB")
}

func TestGinWriter(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)

	n, err := NewGinWriter(l).Write([]byte("[GIN-debug] GET /:alias\n"))
	require.NoError(t, err)
	assert.Equal(t, len("[GIN-debug] GET /:alias\n"), n)
	assert.Contains(t, buf.String(), "component=gin")
	assert.Contains(t, buf.String(), "GET /:alias")
}
