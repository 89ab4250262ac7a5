package intake

import (
	"bytes"
	"path/filepath"
	"strings"

	"github.com/jhillyerd/enmime"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"orderdesk/internal/extract"
)

var documentExts = map[string]bool{
	".pdf":  true,
	".xlsx": true,
	".html": true,
	".htm":  true,
	".txt":  true,
	".csv":  true,
}

// Document is one piece of order text found in a message.
type Document struct {
	Name string
	Text string
}

type Message struct {
	Subject         string
	From            string
	Text            string
	HTML            string
	AttachmentNames []string
	Documents       []Document
}

// ParseMessage reads a raw RFC 822 message. Every readable attachment becomes
// a document. The body is used as the only document when no attachment
// yields text; an HTML body is flattened so its tables survive as rows.
func ParseMessage(raw []byte) (Message, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(raw))
	if err != nil {
		return Message{}, errors.Wrap(err, "parse message")
	}

	msg := Message{
		Subject: env.GetHeader("Subject"),
		From:    env.GetHeader("From"),
		Text:    env.Text,
		HTML:    env.HTML,
	}

	for _, att := range env.Attachments {
		name := strings.TrimSpace(att.FileName)
		if name == "" {
			name = "attachment"
		}
		msg.AttachmentNames = append(msg.AttachmentNames, name)

		if !documentExts[strings.ToLower(filepath.Ext(name))] {
			continue
		}
		text, err := extract.DocumentText(name, att.Content)
		if err != nil {
			log.Warn().Err(err).Str("attachment", name).Msg("attachment skipped")
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		msg.Documents = append(msg.Documents, Document{Name: name, Text: text})
	}

	if len(msg.Documents) == 0 {
		body := env.Text
		if strings.TrimSpace(env.HTML) != "" {
			body = extract.HTMLText(env.HTML)
		}
		if strings.TrimSpace(body) != "" {
			msg.Documents = append(msg.Documents, Document{Text: body})
		}
	}
	return msg, nil
}
