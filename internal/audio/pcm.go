package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/dgnsrekt/readaloud/internal/ttypes"
)

// Decode converts an artifact to mono signed 16-bit PCM at sampleRate.
// Stereo input is downmixed and other rates are linearly resampled.
func Decode(a *ttypes.Artifact, sampleRate int) ([]byte, error) {
	if a == nil || len(a.PCM) == 0 {
		return nil, decodeError("artifact has no audio", nil)
	}
	if a.SampleRate <= 0 {
		return nil, decodeError(fmt.Sprintf("invalid sample rate %d", a.SampleRate), nil)
	}
	if a.Channels != 1 && a.Channels != 2 {
		return nil, decodeError(fmt.Sprintf("unsupported channel count %d", a.Channels), nil)
	}

	frameSize := ttypes.BytesPerSample * a.Channels
	if len(a.PCM)%frameSize != 0 {
		return nil, decodeError(fmt.Sprintf("truncated frame: %d bytes is not a multiple of %d", len(a.PCM), frameSize), nil)
	}

	pcm := a.PCM
	if a.Channels == 2 {
		pcm = downmix(pcm)
	}
	if a.SampleRate != sampleRate {
		pcm = Resample(pcm, a.SampleRate, sampleRate)
	}
	return pcm, nil
}

func decodeError(msg string, cause error) error {
	return ttypes.NewTTSError(ttypes.ErrorCodeDecodeFailure, msg, cause)
}

// downmix averages interleaved stereo frames into mono.
func downmix(stereo []byte) []byte {
	frames := len(stereo) / 4
	out := make([]byte, frames*2)
	for i := 0; i < frames; i++ {
		l := int32(int16(binary.LittleEndian.Uint16(stereo[i*4:])))
		r := int32(int16(binary.LittleEndian.Uint16(stereo[i*4+2:])))
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16((l+r)/2))) //nolint:gosec
	}
	return out
}

// Resample performs linear resampling of mono 16-bit PCM.
func Resample(pcm []byte, from, to int) []byte {
	if from == to || len(pcm) < 2 {
		return pcm
	}

	in := len(pcm) / 2
	out := int(int64(in) * int64(to) / int64(from))
	if out == 0 {
		return nil
	}

	sample := func(i int) float64 {
		if i >= in {
			i = in - 1
		}
		return float64(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	result := make([]byte, out*2)
	ratio := float64(from) / float64(to)
	for i := 0; i < out; i++ {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := pos - float64(idx)
		v := sample(idx)*(1-frac) + sample(idx+1)*frac
		binary.LittleEndian.PutUint16(result[i*2:], uint16(int16(math.Round(v)))) //nolint:gosec
	}
	return result
}

// Silence returns d worth of silent mono PCM.
func Silence(d time.Duration, sampleRate int) []byte {
	frames := int(d.Seconds() * float64(sampleRate))
	return make([]byte, frames*ttypes.BytesPerSample)
}

// Tone returns a sine wave of freq Hz with a short fade in and out.
func Tone(freq float64, d time.Duration, sampleRate int, amplitude float64) []byte {
	frames := int(d.Seconds() * float64(sampleRate))
	out := make([]byte, frames*ttypes.BytesPerSample)
	fade := sampleRate / 100 // 10ms

	for i := 0; i < frames; i++ {
		gain := amplitude
		if i < fade {
			gain *= float64(i) / float64(fade)
		} else if frames-i < fade {
			gain *= float64(frames-i) / float64(fade)
		}
		v := math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate)) * gain * math.MaxInt16
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(v))) //nolint:gosec
	}
	return out
}
