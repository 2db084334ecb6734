package fmtt

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrintErrChain(t *testing.T) {
	base := errors.New("boom")
	err := fmt.Errorf("load: %w", base)

	var buf bytes.Buffer
	PrintErrChain(&buf, err)
	assert.Equal(t, "[0] *fmt.wrapError: load: boom\n  [1] *errors.errorString: boom\n", buf.String())

	buf.Reset()
	PrintErrChain(&buf, nil)
	assert.Equal(t, "<nil>\n", buf.String())
}

func TestPrintErrChainJoined(t *testing.T) {
	var buf bytes.Buffer
	PrintErrChain(&buf, errors.Join(errors.New("a"), errors.New("b")))
	assert.Contains(t, buf.String(), "  [1] *errors.errorString: a\n")
	assert.Contains(t, buf.String(), "  [1] *errors.errorString: b\n")
}

func TestPrintErrChainDebug(t *testing.T) {
	var buf bytes.Buffer
	PrintErrChainDebug(&buf, fmt.Errorf("outer: %w", errors.New("inner")))
	assert.Contains(t, buf.String(), "Error(): outer: inner")
	assert.Contains(t, buf.String(), "(*fmt.wrapError)")
}
