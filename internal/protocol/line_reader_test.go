package protocol

import (
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineReader(t *testing.T) {
	reader := newLineReader(strings.NewReader("0.42\r\n1.5\n\nlast"))

	expected := []string{"0.42", "1.5", "", "last"}
	for _, want := range expected {
		line, err := reader.readLine()
		require.NoError(t, err)
		assert.Equal(t, want, line)
	}

	_, err := reader.readLine()
	assert.ErrorIs(t, err, io.EOF)
}

func TestLineReader_OverlongLineIsBlanked(t *testing.T) {
	input := strings.Repeat("9", MaxLineLength*5) + "\n0.5\n"
	reader := newLineReader(strings.NewReader(input))

	line, err := reader.readLine()
	require.NoError(t, err)
	assert.Empty(t, line)

	line, err = reader.readLine()
	require.NoError(t, err)
	assert.Equal(t, "0.5", line)
}

func TestLineReader_MaxLengthFits(t *testing.T) {
	input := strings.Repeat("1", MaxLineLength) + "\n"
	reader := newLineReader(strings.NewReader(input))

	line, err := reader.readLine()
	require.NoError(t, err)
	assert.Len(t, line, MaxLineLength)
}
