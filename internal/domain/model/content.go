package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

const maxTextLen = 8192

// Content is the tagged payload union of a message. Exactly one concrete
// type corresponds to each MessageKind; there is no "bag of optional fields".
type Content interface {
	isContent()
	Validate() error
}

type TextContent struct {
	Text string `json:"text"`
}

// MediaContent backs the image, file, audio and video kinds. The blob itself
// lives in external file storage; only the reference travels here.
type MediaContent struct {
	URL      string `json:"url"`
	FileName string `json:"file_name,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size,omitempty"`
}

type LocationContent struct {
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Label string  `json:"label,omitempty"`
}

type SystemContent struct {
	Code string `json:"code"`
	Note string `json:"note,omitempty"`
}

func (TextContent) isContent()     {}
func (MediaContent) isContent()    {}
func (LocationContent) isContent() {}
func (SystemContent) isContent()   {}

func (c TextContent) Validate() error {
	if strings.TrimSpace(c.Text) == "" {
		return ErrValidation("text content must not be empty")
	}
	if len(c.Text) > maxTextLen {
		return ErrValidation("text content exceeds maximum length")
	}
	return nil
}

func (c MediaContent) Validate() error {
	if c.URL == "" {
		return ErrValidation("media content requires a url")
	}
	if c.Size < 0 {
		return ErrValidation("media size must not be negative")
	}
	return nil
}

func (c LocationContent) Validate() error {
	if c.Lat < -90 || c.Lat > 90 || c.Lon < -180 || c.Lon > 180 {
		return ErrValidation("location out of range")
	}
	return nil
}

func (c SystemContent) Validate() error {
	if c.Code == "" {
		return ErrValidation("system content requires a code")
	}
	return nil
}

// EmptyContent returns the zero value of the union member for kind.
// Used to decode inbound payloads and to scrub deleted messages.
func EmptyContent(kind MessageKind) (Content, error) {
	switch kind {
	case MessageText:
		return TextContent{}, nil
	case MessageImage, MessageFile, MessageAudio, MessageVideo:
		return MediaContent{}, nil
	case MessageLocation:
		return LocationContent{}, nil
	case MessageSystem:
		return SystemContent{}, nil
	}
	return nil, ErrValidation(fmt.Sprintf("unknown message kind %q", kind))
}

// DecodeContent parses the wire payload for the given kind.
func DecodeContent(kind MessageKind, raw []byte) (Content, error) {
	if len(raw) == 0 {
		return nil, ErrValidation("missing message payload")
	}
	switch kind {
	case MessageText:
		var c TextContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, ErrValidation("malformed text payload")
		}
		return c, nil
	case MessageImage, MessageFile, MessageAudio, MessageVideo:
		var c MediaContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, ErrValidation("malformed media payload")
		}
		return c, nil
	case MessageLocation:
		var c LocationContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, ErrValidation("malformed location payload")
		}
		return c, nil
	case MessageSystem:
		var c SystemContent
		if err := json.Unmarshal(raw, &c); err != nil {
			return nil, ErrValidation("malformed system payload")
		}
		return c, nil
	}
	return nil, ErrValidation(fmt.Sprintf("unknown message kind %q", kind))
}

// EncodeContent serializes a union member for storage or the wire.
func EncodeContent(c Content) ([]byte, error) {
	if c == nil {
		return nil, ErrValidation("nil content")
	}
	return json.Marshal(c)
}
