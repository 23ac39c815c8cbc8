package stt

import (
	"context"
	"errors"
	"testing"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRecognizer struct {
	req  *speechpb.RecognizeRequest
	resp *speechpb.RecognizeResponse
	err  error
}

func (f *fakeRecognizer) Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error) {
	f.req = req
	return f.resp, f.err
}

func (f *fakeRecognizer) Close() error { return nil }

func TestGoogleTranscriber_Transcribe(t *testing.T) {
	fake := &fakeRecognizer{resp: &speechpb.RecognizeResponse{
		Results: []*speechpb.SpeechRecognitionResult{
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: "bought bread "}, {Transcript: "brought bread"}}},
			{Alternatives: nil},
			{Alternatives: []*speechpb.SpeechRecognitionAlternative{{Transcript: " for five lei"}}},
		},
	}}
	g := newGoogleTranscriber(fake, GoogleConfig{LanguageCode: "ro-RO", SampleRate: 16000}, zerolog.Nop())

	text, err := g.Transcribe(context.Background(), Audio{Data: []byte("pcm"), Filename: "a.wav"})

	require.NoError(t, err)
	assert.Equal(t, "bought bread for five lei", text)
	assert.Equal(t, "ro-RO", fake.req.GetConfig().GetLanguageCode())
	assert.Equal(t, speechpb.RecognitionConfig_LINEAR16, fake.req.GetConfig().GetEncoding())
	assert.Equal(t, int32(16000), fake.req.GetConfig().GetSampleRateHertz())
	assert.Equal(t, []byte("pcm"), fake.req.GetAudio().GetContent())
}

func TestGoogleTranscriber_Errors(t *testing.T) {
	fake := &fakeRecognizer{err: errors.New("permission denied")}
	g := newGoogleTranscriber(fake, GoogleConfig{}, zerolog.Nop())

	_, err := g.Transcribe(context.Background(), Audio{Filename: "a.flac"})
	assert.Error(t, err)
	assert.Equal(t, "en-US", fake.req.GetConfig().GetLanguageCode())
	assert.Equal(t, speechpb.RecognitionConfig_FLAC, fake.req.GetConfig().GetEncoding())
	assert.Zero(t, fake.req.GetConfig().GetSampleRateHertz())
}
