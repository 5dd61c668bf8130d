package inbox

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"tradebot/internal/config"
	"tradebot/internal/domain"
)

// Classifier extracts a message payload from the open conversation view.
// Extraction failures never propagate past this boundary: per-field lookups
// degrade to an absent field and a fully broken render yields an empty
// Unknown payload for the caller to substitute.
type Classifier struct {
	page   domain.Page
	sel    config.SelectorsConfig
	logger *slog.Logger
}

func NewClassifier(page domain.Page, sel config.SelectorsConfig, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{page: page, sel: sel, logger: logger}
}

// typeInfo is the metadata attribute carried by the message container.
type typeInfo struct {
	MessageType int `json:"messageType"`
}

// fileInfo is the embedded metadata of a file-transfer card.
type fileInfo struct {
	FileName string `json:"fileName"`
	FileSize string `json:"fileSize"`
}

// extractor pulls the payload fields for one message-type code.
type extractor struct {
	kind    domain.MessageKind
	extract func(c *Classifier, ctx context.Context, container domain.Element) (text, imageURL string)
}

// extractors is the dispatch table keyed by the UI's message-type code.
// Keeping it data-driven means new codes are one entry, not new branching.
var extractors = map[int]extractor{
	domain.CodePlainText: {kind: domain.KindPlainText, extract: extractRichText},
	domain.CodeImage:     {kind: domain.KindImageOnly, extract: extractImage},
	domain.CodeImageAlt:  {kind: domain.KindImageOnly, extract: extractImage},
	domain.CodeInquiry:   {kind: domain.KindInquiry, extract: extractDescription},
	domain.CodeRichText:  {kind: domain.KindRichText, extract: extractDescription},
	domain.CodeFile:      {kind: domain.KindFile, extract: extractFile},
	domain.CodeBusinessCard: {kind: domain.KindBusinessCard, extract: func(*Classifier, context.Context, domain.Element) (string, string) {
		return "", "" // business cards are skipped outright
	}},
}

// Classify reads the most recent message of the open conversation. The
// returned error is only ever a session error; everything else degrades.
func (c *Classifier) Classify(ctx context.Context) (domain.Payload, error) {
	container, err := c.page.Find(ctx, c.sel.LatestMessage)
	if err != nil {
		if domain.IsSessionError(err) {
			return domain.Payload{}, err
		}
		c.logger.Warn("no message container on conversation view", "err", err)
		return domain.Payload{Kind: domain.KindUnknown}, nil
	}

	code, err := c.messageType(ctx, container)
	if err != nil {
		if domain.IsSessionError(err) {
			return domain.Payload{}, err
		}
		c.logger.Warn("cannot read message type", "err", err)
		return domain.Payload{Kind: domain.KindUnknown}, nil
	}

	ex, ok := extractors[code]
	if !ok {
		c.logger.Info("unrecognized message type code", "code", code)
		return domain.Payload{Kind: domain.KindUnknown}, nil
	}

	text, imageURL := ex.extract(c, ctx, container)
	return domain.Payload{Text: text, ImageURL: imageURL, Kind: ex.kind}, nil
}

func (c *Classifier) messageType(ctx context.Context, container domain.Element) (int, error) {
	raw, err := c.page.Attribute(ctx, container, c.sel.TypeInfoAttr)
	if err != nil {
		return 0, err
	}
	if raw == "" {
		return 0, fmt.Errorf("missing %s attribute", c.sel.TypeInfoAttr)
	}
	var info typeInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		return 0, fmt.Errorf("parse %s: %w", c.sel.TypeInfoAttr, err)
	}
	return info.MessageType, nil
}

// textWithin reads the text of a sub-element, degrading to "" on any miss.
func (c *Classifier) textWithin(ctx context.Context, container domain.Element, selector string) string {
	el, err := c.page.FindWithin(ctx, container, selector)
	if err != nil {
		c.logger.Debug("text lookup missed", "selector", selector, "err", err)
		return ""
	}
	text, err := c.page.Text(ctx, el)
	if err != nil {
		c.logger.Debug("text read failed", "selector", selector, "err", err)
		return ""
	}
	return strings.TrimSpace(text)
}

// srcWithin reads an image src of a sub-element, degrading to "" on any miss.
func (c *Classifier) srcWithin(ctx context.Context, container domain.Element, selector string) string {
	el, err := c.page.FindWithin(ctx, container, selector)
	if err != nil {
		c.logger.Debug("image lookup missed", "selector", selector, "err", err)
		return ""
	}
	src, err := c.page.Attribute(ctx, el, "src")
	if err != nil {
		c.logger.Debug("image src read failed", "selector", selector, "err", err)
		return ""
	}
	return src
}

func extractRichText(c *Classifier, ctx context.Context, container domain.Element) (string, string) {
	return c.textWithin(ctx, container, c.sel.RichContent), ""
}

func extractImage(c *Classifier, ctx context.Context, container domain.Element) (string, string) {
	src := c.srcWithin(ctx, container, c.sel.MessageImage)
	return "details on this product", src
}

func extractDescription(c *Classifier, ctx context.Context, container domain.Element) (string, string) {
	text := c.textWithin(ctx, container, c.sel.Description)
	src := c.srcWithin(ctx, container, c.sel.DescriptionImage)
	return text, src
}

func extractFile(c *Classifier, ctx context.Context, container domain.Element) (string, string) {
	el, err := c.page.FindWithin(ctx, container, c.sel.FileCard)
	if err != nil {
		c.logger.Debug("file card lookup missed", "err", err)
		return "", ""
	}
	raw, err := c.page.Attribute(ctx, el, c.sel.FileCardAttr)
	if err != nil || raw == "" {
		c.logger.Debug("file card metadata missing", "err", err)
		return "", ""
	}
	var info fileInfo
	if err := json.Unmarshal([]byte(raw), &info); err != nil {
		c.logger.Debug("file card metadata unparseable", "err", err)
		return "", ""
	}
	return fmt.Sprintf("File: %s (%s)", info.FileName, info.FileSize), ""
}
