package storage

import (
	"context"
	"io"
	"net/url"
	"path"
	"strings"
	"time"
)

type Uploader interface {
	Upload(ctx context.Context, objectName string, contentType string, r io.Reader) (storedPath string, err error)
}

type Signer interface {
	SignedGetURL(ctx context.Context, objectName string, ttl time.Duration) (string, error)
}

// UploadSigner issues URLs that let a client PUT one object directly.
type UploadSigner interface {
	SignedPutURL(ctx context.Context, objectName, contentType string, ttl time.Duration) (string, error)
}

type Downloader interface {
	// Download reads at most limit bytes; larger objects are an error.
	Download(ctx context.Context, objectName string, limit int64) ([]byte, error)
}

// Object names used by the chat backend.
func ExportObject(chatbotID string, at time.Time) string {
	return "exports/" + chatbotID + "/" + at.UTC().Format("20060102T150405Z") + ".json"
}

// LeadArchiveObject names one lead capture. Leads are grouped by conversation
// and never share a name, so a later capture cannot overwrite an earlier one.
func LeadArchiveObject(chatbotID, conversationID, sessionID string, at time.Time) string {
	group := conversationID
	if group == "" {
		group = "unassigned"
	}
	name := at.UTC().Format("20060102T150405.000000000Z")
	if sessionID != "" {
		name += "-" + sessionID
	}
	return "leads/" + chatbotID + "/" + group + "/" + name + ".json"
}

func VoicePrefix(chatID string) string { return "voice/" + chatID + "/" }

func VoiceObject(chatID string, chunkIndex int64, ext string) string {
	return VoicePrefix(chatID) + itoa(chunkIndex) + "." + ext
}

// ParseObjectURL returns the object name raw points at when it addresses
// bucket, in gs:// or one of the storage.googleapis.com https forms. Any
// other host, scheme or a non-canonical object path is rejected.
func ParseObjectURL(bucket, raw string) (string, bool) {
	if bucket == "" {
		return "", false
	}
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.User != nil || u.Opaque != "" {
		return "", false
	}

	p := strings.TrimPrefix(u.Path, "/")
	var obj string
	switch {
	case u.Scheme == "gs" && u.Host == bucket:
		obj = p
	case u.Scheme == "https" && u.Host == "storage.googleapis.com":
		rest, ok := strings.CutPrefix(p, bucket+"/")
		if !ok {
			return "", false
		}
		obj = rest
	case u.Scheme == "https" && u.Host == bucket+".storage.googleapis.com":
		obj = p
	default:
		return "", false
	}

	if obj == "" || strings.HasSuffix(obj, "/") || path.Clean(obj) != obj || strings.HasPrefix(obj, "../") {
		return "", false
	}
	return obj, true
}
