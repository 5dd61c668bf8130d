package reply

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"tradebot/internal/domain"
)

// builtinTemplates are the pre-approved acknowledgements used when no
// template file is configured. The chain depends on this list never being
// empty.
var builtinTemplates = []string{
	"Hello! Thanks for your inquiry. Our team will assist you shortly.",
	"Hi there! Your inquiry is important to us. We'll be with you shortly.",
	"Greetings! Thank you for reaching out. One of our representatives will assist you soon.",
	"Hey! Thanks for getting in touch. We'll be happy to help you shortly.",
	"Hi! We appreciate your message. Our team will assist you as soon as possible.",
	"Hello! Thanks for your inquiry. Please hold on, our team will assist you soon.",
}

// Canned picks uniformly from a fixed template list. It is the terminal
// source of the chain and never fails.
type Canned struct {
	templates []string
	pick      func(n int) int // injectable for deterministic tests
}

// templateFile is the YAML schema of an operator-supplied template list.
type templateFile struct {
	Replies []string `yaml:"replies"`
}

// NewCanned loads templates from the given YAML file, falling back to the
// built-in list when the path is empty or the file is unusable.
func NewCanned(path string, logger *slog.Logger) *Canned {
	if logger == nil {
		logger = slog.Default()
	}
	templates := builtinTemplates
	if path != "" {
		loaded, err := loadTemplates(path)
		switch {
		case err != nil:
			logger.Warn("template file unusable, using built-in replies", "file", path, "err", err)
		case len(loaded) == 0:
			logger.Warn("template file empty, using built-in replies", "file", path)
		default:
			templates = loaded
			logger.Info("reply templates loaded", "file", path, "count", len(loaded))
		}
	}
	return &Canned{templates: templates, pick: rand.Intn}
}

func (c *Canned) Name() string                  { return "canned" }
func (c *Canned) Provenance() domain.Provenance { return domain.ProvenanceCanned }

func (c *Canned) Generate(_ context.Context, _ domain.Query) (string, error) {
	return c.templates[c.pick(len(c.templates))], nil
}

// Templates returns the active template list.
func (c *Canned) Templates() []string { return c.templates }

func loadTemplates(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var tf templateFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	var out []string
	for _, r := range tf.Replies {
		if trimmed := strings.TrimSpace(r); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out, nil
}
