package moodflow

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// Attachment is a file held in memory so a failed submission can be retried.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

var mediaTypes = map[string]string{
	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".m4a":  "audio/mp4",
	".ogg":  "audio/ogg",
	".opus": "audio/opus",
	".webm": "audio/webm",
	".aac":  "audio/aac",
	".flac": "audio/flac",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
}

// MediaType resolves the content type of name. It reports false unless the
// file is audio or an image.
func MediaType(name, contentType string) (string, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" || ct == "application/octet-stream" {
		ext := strings.ToLower(filepath.Ext(name))
		if t, ok := mediaTypes[ext]; ok {
			ct = t
		} else {
			ct = mime.TypeByExtension(ext)
		}
	}
	if base, _, err := mime.ParseMediaType(ct); err == nil {
		ct = base
	}
	return ct, strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "image/")
}

// NewAttachment validates and wraps an in-memory file.
func NewAttachment(name, contentType string, data []byte) (*Attachment, error) {
	ct, ok := MediaType(name, contentType)
	if !ok {
		return nil, ErrUnsupportedAttachment
	}
	return &Attachment{Name: filepath.Base(name), ContentType: ct, Data: data}, nil
}

// LoadAttachment reads path from disk.
func LoadAttachment(path string) (*Attachment, error) {
	if _, ok := MediaType(path, ""); !ok {
		return nil, ErrUnsupportedAttachment
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	return NewAttachment(path, "", data)
}
