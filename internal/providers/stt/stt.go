package stt

import (
	"context"
	"strings"
)

type Provider interface {
	Transcribe(ctx context.Context, audio []byte, opts Options) (text string, confidence float64, err error)
	Close() error
}

// Format names the container/codec of a voice chunk as sent by the client.
type Format string

const (
	FormatLinear16 Format = "linear16"
	FormatWebmOpus Format = "webm_opus"
	FormatOggOpus  Format = "ogg_opus"
)

type Options struct {
	Language string
	Format   Format
}

// NormalizeLanguage maps short language tags onto BCP-47 codes the
// recognizer accepts. Empty input means en-US.
func NormalizeLanguage(v string) string {
	v = strings.TrimSpace(v)
	switch strings.ToLower(v) {
	case "":
		return "en-US"
	case "id", "id-id":
		return "id-ID"
	case "en", "en-us":
		return "en-US"
	default:
		return v
	}
}

func ParseFormat(v string) Format {
	switch Format(strings.ToLower(strings.TrimSpace(v))) {
	case FormatWebmOpus:
		return FormatWebmOpus
	case FormatOggOpus:
		return FormatOggOpus
	default:
		return FormatLinear16
	}
}

// Ext is the file extension a chunk of this format is stored under.
func (f Format) Ext() string {
	switch f {
	case FormatWebmOpus:
		return "webm"
	case FormatOggOpus:
		return "ogg"
	default:
		return "wav"
	}
}

func (f Format) ContentType() string { return "audio/" + f.Ext() }
