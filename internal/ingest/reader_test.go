package ingest

import (
	"io"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleInput = `2018-01-01T00:00
2
2
t1;1
t2;2
4
t1;2018-01-02T00:00;first;k1
t1;2018-01-03T00:00;second;k1
t2;2018-05-15T19:42;explicit;2;k2
t1;2018-01-04T00:00;third;k1
2
t2;1
t1;3
1
t1;2018-02-01T00:00;late;3;k1
`

func TestParseSampleInput(t *testing.T) {
	s, err := Parse(strings.NewReader(sampleInput))
	require.NoError(t, err)

	assert.Equal(t, "2018-01-01T00:00", s.MinimumTimestamp.Format("2006-01-02T15:04"))
	assert.Equal(t, 2, s.Capacity)
	assert.Equal(t, []TopicDecl{{Line: 4, Name: "t1", PartitionCount: 1}, {Line: 5, Name: "t2", PartitionCount: 2}}, s.Topics)

	require.Len(t, s.FirstBatch, 4)
	first := s.FirstBatch[0]
	assert.Equal(t, 7, first.Line)
	assert.Equal(t, "t1", first.Topic)
	assert.Equal(t, "first", first.Message.Body())
	assert.Equal(t, "k1", first.Message.Key())
	_, explicit := first.Message.Partition()
	assert.False(t, explicit)

	n, explicit := s.FirstBatch[2].Message.Partition()
	assert.True(t, explicit)
	assert.Equal(t, 2, n)
	assert.Equal(t, "k2", s.FirstBatch[2].Message.Key())

	assert.Equal(t, []SettingChange{{Line: 12, Topic: "t2", PartitionCount: 1}, {Line: 13, Topic: "t1", PartitionCount: 3}}, s.Changes)

	require.Len(t, s.SecondBatch, 1)
	assert.Equal(t, "late", s.SecondBatch[0].Message.Body())
}

func TestParseStopsAfterFirstBatch(t *testing.T) {
	input := "2018-01-01T00:00\n5\n1\nt1;1\n1\nt1;2018-01-02T00:00;only;k\n"
	s, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Len(t, s.FirstBatch, 1)
	assert.Empty(t, s.Changes)
	assert.Empty(t, s.SecondBatch)
}

func TestParseAcceptsCRLF(t *testing.T) {
	input := strings.ReplaceAll(sampleInput, "\n", "\r\n")
	s, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, "k1", s.SecondBatch[0].Message.Key())
}

func TestParseErrors(t *testing.T) {
	cases := map[string]string{
		"bad timestamp":      "yesterday\n2\n0\n0\n",
		"bad capacity":       "2018-01-01T00:00\ntwo\n0\n0\n",
		"bad topic line":     "2018-01-01T00:00\n2\n1\nt1\n0\n",
		"bad partition":      "2018-01-01T00:00\n2\n0\n1\nt1;2018-01-02T00:00;body;x;k\n",
		"wrong field count":  "2018-01-01T00:00\n2\n0\n1\nt1;2018-01-02T00:00;body\n",
		"truncated batch":    "2018-01-01T00:00\n2\n0\n2\nt1;2018-01-02T00:00;body;k\n",
		"missing first part": "",
		"negative topics":    "2018-01-01T00:00\n2\n-1\n0\n",
		"negative messages":  "2018-01-01T00:00\n2\n0\n-1\n",
		"negative changes":   "2018-01-01T00:00\n2\n0\n0\n-3\n0\n",
	}
	for name, input := range cases {
		_, err := Parse(strings.NewReader(input))
		assert.Error(t, err, name)
	}
}

func TestParseReportsLineNumbers(t *testing.T) {
	input := "2018-01-01T00:00\n2\n0\n2\nt1;2018-01-02T00:00;ok;k\nt1;not-a-date;body;k\n"
	_, err := Parse(strings.NewReader(input))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 6")
}

func TestParseRejectsNegativeCount(t *testing.T) {
	_, err := Parse(strings.NewReader("2018-01-01T00:00\n2\n0\n-1\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 4: message count is negative")
}

func TestParseTruncatedIsUnexpectedEOF(t *testing.T) {
	input := "2018-01-01T00:00\n2\n0\n2\nt1;2018-01-02T00:00;body;k\n"
	_, err := Parse(strings.NewReader(input))
	assert.Equal(t, io.ErrUnexpectedEOF, errors.Cause(err))
}

func TestParseMessageLine(t *testing.T) {
	rec, err := ParseMessageLine("topic1_1;2018-05-15T19:42;Message from the system with id18313;DBDIB")
	require.NoError(t, err)
	assert.Equal(t, "topic1_1", rec.Topic)
	assert.Equal(t, "Message from the system with id18313", rec.Message.Body())
	assert.Equal(t, "DBDIB", rec.Message.Key())
}
