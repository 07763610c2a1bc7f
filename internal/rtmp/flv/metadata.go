package flv

import (
	"bytes"
	"fmt"

	"github.com/alxayo/go-rtmp/internal/rtmp/amf"
)

// Metadata is the set of onMetaData properties a publisher commonly reports
// (and a server commonly relays or rewrites) ahead of the first media tag of
// a stream.
type Metadata struct {
	Duration        float64
	Width           float64
	Height          float64
	VideoCodecID    float64
	VideoDataRate   float64
	FrameRate       float64
	AudioCodecID    float64
	AudioDataRate   float64
	AudioSampleRate float64
	AudioSampleSize float64
	Stereo          bool
	Encoder         string
	Extra           amf.EcmaArray // any additional/vendor properties, merged in verbatim
}

// toEcmaArray converts the typed fields into the AMF0 ECMA Array onMetaData
// actually carries on the wire, folding in Extra for anything this struct
// doesn't model explicitly.
func (m *Metadata) toEcmaArray() amf.EcmaArray {
	out := amf.EcmaArray{}
	for k, v := range m.Extra {
		out[k] = v
	}
	set := func(key string, v float64) {
		if v != 0 {
			out[key] = v
		}
	}
	set("duration", m.Duration)
	set("width", m.Width)
	set("height", m.Height)
	set("videocodecid", m.VideoCodecID)
	set("videodatarate", m.VideoDataRate)
	set("framerate", m.FrameRate)
	set("audiocodecid", m.AudioCodecID)
	set("audiodatarate", m.AudioDataRate)
	set("audiosamplerate", m.AudioSampleRate)
	set("audiosamplesize", m.AudioSampleSize)
	out["stereo"] = m.Stereo
	if m.Encoder != "" {
		out["encoder"] = m.Encoder
	}
	return out
}

// EncodeOnMetaData builds the AMF0 payload of an onMetaData script data tag:
// the "onMetaData" string followed by an ECMA Array of properties, exactly
// as a Data Message (AMF0) command is framed elsewhere in this codebase.
func EncodeOnMetaData(m *Metadata) ([]byte, error) {
	var buf bytes.Buffer
	if err := amf.EncodeString(&buf, "onMetaData"); err != nil {
		return nil, fmt.Errorf("flv.metadata.encode: %w", err)
	}
	if err := amf.EncodeEcmaArray(&buf, m.toEcmaArray()); err != nil {
		return nil, fmt.Errorf("flv.metadata.encode: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseOnMetaData decodes a script data tag's AMF0 payload. It accepts
// either an ECMA Array or a plain Object for the property list, since some
// encoders (observed in the wild) emit onMetaData with an AMF0 Object marker
// instead of the ECMA Array marker the spec calls for.
func ParseOnMetaData(payload []byte) (*Metadata, error) {
	r := bytes.NewReader(payload)
	name, err := amf.DecodeValue(r)
	if err != nil {
		return nil, fmt.Errorf("flv.metadata.decode: name: %w", err)
	}
	if s, ok := name.(string); !ok || s != "onMetaData" {
		return nil, fmt.Errorf("flv.metadata.decode: unexpected script tag name %v", name)
	}
	props, err := amf.DecodeValue(r)
	if err != nil {
		return nil, fmt.Errorf("flv.metadata.decode: properties: %w", err)
	}
	arr, ok := props.(amf.EcmaArray)
	if !ok {
		obj, isObj := props.(map[string]interface{})
		if !isObj {
			return nil, fmt.Errorf("flv.metadata.decode: properties not an ECMA array or object (got %T)", props)
		}
		arr = amf.EcmaArray(obj)
	}
	m := &Metadata{Extra: amf.EcmaArray{}}
	for k, v := range arr {
		switch k {
		case "duration":
			m.Duration, _ = v.(float64)
		case "width":
			m.Width, _ = v.(float64)
		case "height":
			m.Height, _ = v.(float64)
		case "videocodecid":
			m.VideoCodecID, _ = v.(float64)
		case "videodatarate":
			m.VideoDataRate, _ = v.(float64)
		case "framerate":
			m.FrameRate, _ = v.(float64)
		case "audiocodecid":
			m.AudioCodecID, _ = v.(float64)
		case "audiodatarate":
			m.AudioDataRate, _ = v.(float64)
		case "audiosamplerate":
			m.AudioSampleRate, _ = v.(float64)
		case "audiosamplesize":
			m.AudioSampleSize, _ = v.(float64)
		case "stereo":
			m.Stereo, _ = v.(bool)
		case "encoder":
			m.Encoder, _ = v.(string)
		default:
			m.Extra[k] = v
		}
	}
	return m, nil
}

// WriteOnMetaData is a convenience over Muxer.WriteTag for script data tags.
func (mx *Muxer) WriteOnMetaData(m *Metadata) error {
	payload, err := EncodeOnMetaData(m)
	if err != nil {
		return err
	}
	return mx.WriteTag(TagTypeScriptData, 0, payload)
}
