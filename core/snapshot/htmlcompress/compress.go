// Package htmlcompress is the default snapshot compressor. It reduces an HTML
// document to Markdown that fits a token budget, with interactive elements
// marked by identifiers the agent can target.
package htmlcompress

import (
	"context"
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/PuerkitoBio/goquery"
	"github.com/koscakluka/ema-ui/core/snapshot"
	"github.com/koscakluka/ema-ui/core/surface"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

var _ snapshot.Compressor = (*Compressor)(nil)

var logger = otelslog.NewLogger("github.com/koscakluka/ema-ui/core/snapshot/htmlcompress")

const (
	// charsPerToken is the estimate used to turn text length into tokens.
	charsPerToken = 4

	truncationMarker = "\n\n[content truncated...]"

	markerPrefix = "EMAMARKER"
	markerSuffix = "EMAEND"
)

// noiseSelector matches nodes that never carry content the agent needs.
const noiseSelector = "script, style, noscript, svg, template, iframe, link, meta, head, [hidden], [aria-hidden=true]"

var (
	markerPattern = regexp.MustCompile(markerPrefix + `(\d+)` + markerSuffix)
	imagePattern  = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)
	linkPattern   = regexp.MustCompile(`\[([^\]]*)\]\([^)]*\)`)
	spacePattern  = regexp.MustCompile(`[ \t]+`)
)

type Compressor struct{}

func New() *Compressor { return &Compressor{} }

// Compress converts content to Markdown, then applies increasingly lossy
// passes until the estimate fits the budget or the iteration limit is hit.
// Text still over budget after that is truncated.
func (c *Compressor) Compress(ctx context.Context, content string, opts snapshot.CompressOptions) (snapshot.Result, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return snapshot.Result{}, fmt.Errorf("failed to parse HTML: %w", err)
	}

	var ids []string
	if opts.AssignIdentifiers {
		ids = assignIdentifiers(doc)
	}
	doc.Find(noiseSelector).Remove()

	rendered, err := doc.Html()
	if err != nil {
		return snapshot.Result{}, fmt.Errorf("failed to render HTML: %w", err)
	}

	md, err := htmltomarkdown.ConvertString(rendered)
	if err != nil {
		return snapshot.Result{}, fmt.Errorf("failed to convert HTML to Markdown: %w", err)
	}
	md = cleanMarkdown(restoreIdentifiers(md, ids))

	passes := []func(string) string{dropImages, dropLinkTargets, collapseWhitespace}
	iterations := 0
	for iterations < opts.MaxIterations && iterations < len(passes) && overBudget(md, opts.TokenBudget) {
		if err := ctx.Err(); err != nil {
			return snapshot.Result{}, err
		}
		md = passes[iterations](md)
		iterations++
	}
	if overBudget(md, opts.TokenBudget) {
		md = truncate(md, opts.TokenBudget*charsPerToken-utf8.RuneCountInString(truncationMarker))
		iterations++
	}

	tokens := estimateTokens(md)
	if opts.Debug {
		logger.DebugContext(ctx, "compressed surface", "tokens", tokens, "budget", opts.TokenBudget, "iterations", iterations)
	}

	return snapshot.Result{Text: md, Tokens: tokens, Iterations: iterations}, nil
}

// assignIdentifiers marks interactive elements with their identifier,
// reusing identifiers already present in the document. Markers carry an index
// into the returned slice so that arbitrary identifiers survive conversion.
func assignIdentifiers(doc *goquery.Document) []string {
	var ids []string
	used := map[string]bool{}
	doc.Find("[" + surface.IdentifierAttribute + "]").Each(func(_ int, s *goquery.Selection) {
		id, _ := s.Attr(surface.IdentifierAttribute)
		used[id] = true
	})

	next := 0
	doc.Find(surface.InteractiveSelector).Each(func(_ int, s *goquery.Selection) {
		id, ok := s.Attr(surface.IdentifierAttribute)
		if !ok {
			for {
				next++
				id = fmt.Sprintf("e%d", next)
				if !used[id] {
					break
				}
			}
			used[id] = true
			s.SetAttr(surface.IdentifierAttribute, id)
		}

		marker := markerPrefix + strconv.Itoa(len(ids)) + markerSuffix + " "
		ids = append(ids, id)
		switch goquery.NodeName(s) {
		case "input", "select", "textarea":
			s.BeforeHtml(marker + html.EscapeString(describeField(s)) + " ")
		default:
			s.PrependHtml(marker)
		}
	})
	return ids
}

func restoreIdentifiers(md string, ids []string) string {
	return markerPattern.ReplaceAllStringFunc(md, func(marker string) string {
		i, err := strconv.Atoi(markerPattern.FindStringSubmatch(marker)[1])
		if err != nil || i >= len(ids) {
			return ""
		}
		return "[#" + ids[i] + "]"
	})
}

// describeField gives form controls, which render no text of their own, a
// readable label.
func describeField(s *goquery.Selection) string {
	kind := goquery.NodeName(s)
	if inputType, ok := s.Attr("type"); ok && kind == "input" {
		kind = inputType
	}

	parts := []string{"(" + kind}
	for _, attr := range []string{"name", "placeholder", "aria-label", "value"} {
		if value, ok := s.Attr(attr); ok && strings.TrimSpace(value) != "" {
			parts = append(parts, fmt.Sprintf("%s=%q", attr, strings.TrimSpace(value)))
		}
	}
	return strings.Join(parts, " ") + ")"
}

func estimateTokens(text string) int {
	return (utf8.RuneCountInString(text) + charsPerToken - 1) / charsPerToken
}

func overBudget(text string, budget int) bool {
	return budget > 0 && estimateTokens(text) > budget
}

func dropImages(md string) string {
	return cleanMarkdown(imagePattern.ReplaceAllString(md, ""))
}

func dropLinkTargets(md string) string {
	return linkPattern.ReplaceAllString(md, "$1")
}

func collapseWhitespace(md string) string {
	lines := strings.Split(md, "\n")
	kept := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spacePattern.ReplaceAllString(line, " "))
		if line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}

// cleanMarkdown removes runs of more than two blank lines and trailing
// whitespace.
func cleanMarkdown(md string) string {
	lines := strings.Split(md, "\n")
	var result []string
	blankCount := 0

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			blankCount++
			if blankCount <= 2 {
				result = append(result, "")
			}
		} else {
			blankCount = 0
			result = append(result, strings.TrimRight(line, " \t"))
		}
	}

	return strings.TrimSpace(strings.Join(result, "\n"))
}

// truncate cuts md to at most maxRunes runes, preferring a line boundary.
func truncate(md string, maxRunes int) string {
	if maxRunes <= 0 {
		return strings.TrimSpace(truncationMarker)
	}
	runes := []rune(md)
	if len(runes) <= maxRunes {
		return md
	}

	cut := string(runes[:maxRunes])
	if idx := strings.LastIndex(cut, "\n"); idx > len(cut)/2 {
		cut = cut[:idx]
	}
	// An identifier split by the cut is useless to the agent.
	if idx := strings.LastIndex(cut, "[#"); idx != -1 && !strings.Contains(cut[idx:], "]") {
		cut = cut[:idx]
	}
	return strings.TrimRight(cut, " \t\n") + truncationMarker
}
