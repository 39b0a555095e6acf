package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go_transcribai/internal/engine"
)

func TestParseCaptionPayload(t *testing.T) {
	tests := []struct {
		name string
		ext  string
		data string
		want string
	}{
		{
			name: "json3",
			ext:  "json3",
			data: json3Body,
			want: "first line second & last",
		},
		{
			name: "vtt rolling lines",
			ext:  "vtt",
			data: "WEBVTT\n\n00:00:00.000 --> 00:00:02.000\nHello there\n\n00:00:02.000 --> 00:00:04.000\nHello there\ngeneral Kenobi\n",
			want: "Hello there general Kenobi",
		},
		{
			name: "srt",
			ext:  "srt",
			data: "1\n00:00:00,000 --> 00:00:01,000\n<i>One</i>\n\n2\n00:00:01,000 --> 00:00:02,000\nTwo\n",
			want: "One Two",
		},
		{
			name: "srv3",
			ext:  "srv3",
			data: `<timedtext format="3"><body><p t="0" d="1"><s>Hi</s><s t="200"> you</s></p><p t="1000">there</p></body></timedtext>`,
			want: "Hi you there",
		},
		{
			name: "srv1",
			ext:  "xml",
			data: timedTextXML,
			want: "Hello & welcome to the 'show'",
		},
		{
			name: "sniff vtt",
			ext:  "",
			data: "WEBVTT\n\n00:00:00.000 --> 00:00:01.000\nsniffed\n",
			want: "sniffed",
		},
		{
			name: "sniff json3",
			ext:  "unknown",
			data: json3Body,
			want: "first line second & last",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segs, err := parseCaptionPayload(tt.ext, []byte(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, engine.NormalizeText(segs...))
		})
	}
}

func TestParseCaptionPayload_BadJSON(t *testing.T) {
	_, err := parseCaptionPayload("json3", []byte(`{"events":[`))
	assert.Error(t, err)
}

func TestScanCueText(t *testing.T) {
	raw := "WEBVTT\nKind: captions\nLanguage: en\n\n" +
		"1\n00:00:00.000 --> 00:00:01.000 align:start position:0%\n" +
		"so<00:00:00.500><c> today</c>\n\n" +
		"2\n00:00:01.000 --> 00:00:02.000\n" +
		"so<00:00:00.500><c> today</c>\n" +
		"we talk\n"
	got := scanCueText([]byte(raw))
	assert.Equal(t, []string{"so<00:00:00.500><c> today</c>", "we talk"}, got)
	assert.Equal(t, "so today we talk", engine.NormalizeText(got...))
}
