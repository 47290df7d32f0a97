package parser

import (
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/width"

	"RiverWatch/internal/domain"
	"RiverWatch/internal/ports"
)

const (
	contentSelector = "div#tmp_contents"
	snippetRunes    = 30
)

// Pages mix ASCII and full-width digits (２０２４年３月１日).
var dateExpr = regexp.MustCompile(`([0-9０-９]{4})年([0-9０-９]{1,2})月([0-9０-９]{1,2})日`)

// ExtractBulletins reads the article list of a river-information page.
// Entries without a link are ignored, entries without a date are logged and skipped.
// The result is sorted newest first; entries sharing a date keep page order.
func ExtractBulletins(doc *goquery.Document, baseURL string, logger *slog.Logger) ports.Extraction {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	content := doc.Find(contentSelector).First()
	if content.Length() == 0 {
		logger.Warn("content region not found", "selector", contentSelector)
		return ports.Extraction{Shape: ports.ShapeContentMissing}
	}

	list := content.Find("ul").First()
	if list.Length() == 0 {
		logger.Warn("article list not found", "selector", contentSelector+" ul")
		return ports.Extraction{Shape: ports.ShapeListingMissing}
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		logger.Warn("invalid base url, links kept as-is", "base", baseURL, "error", err)
		base = nil
	}

	result := ports.Extraction{Shape: ports.ShapeOK, Bulletins: []domain.Bulletin{}}
	list.Find("li").Each(func(_ int, li *goquery.Selection) {
		link := li.Find("a").First()
		if link.Length() == 0 {
			return
		}

		bulletin, err := parseEntry(li, link, base)
		if err != nil {
			result.Skipped++
			logger.Warn("entry skipped", "error", err)
			return
		}
		result.Bulletins = append(result.Bulletins, bulletin)
	})

	sort.SliceStable(result.Bulletins, func(i, j int) bool {
		return result.Bulletins[i].DateValue > result.Bulletins[j].DateValue
	})

	logger.Debug("listing extracted", "bulletins", len(result.Bulletins), "skipped", result.Skipped)
	return result
}

func parseEntry(li, link *goquery.Selection, base *url.URL) (domain.Bulletin, error) {
	fullText := strings.TrimSpace(li.Text())

	match := dateExpr.FindStringSubmatch(fullText)
	if match == nil {
		return domain.Bulletin{}, fmt.Errorf("date pattern not found: %s", snippet(fullText))
	}

	dateValue, err := dateValueOf(match[1], match[2], match[3])
	if err != nil {
		return domain.Bulletin{}, fmt.Errorf("date %q: %w", match[0], err)
	}

	href, ok := link.Attr("href")
	if !ok {
		return domain.Bulletin{}, fmt.Errorf("link without href: %s", snippet(fullText))
	}

	target, err := resolveLink(base, href)
	if err != nil {
		return domain.Bulletin{}, err
	}

	return domain.Bulletin{
		DateValue: dateValue,
		DateText:  match[0],
		Title:     strings.TrimSpace(link.Text()),
		URL:       target,
	}, nil
}

func dateValueOf(year, month, day string) (int, error) {
	y, err := strconv.Atoi(width.Narrow.String(year))
	if err != nil {
		return 0, fmt.Errorf("year: %w", err)
	}
	m, err := strconv.Atoi(width.Narrow.String(month))
	if err != nil {
		return 0, fmt.Errorf("month: %w", err)
	}
	d, err := strconv.Atoi(width.Narrow.String(day))
	if err != nil {
		return 0, fmt.Errorf("day: %w", err)
	}
	return y*10000 + m*100 + d, nil
}

func resolveLink(base *url.URL, href string) (string, error) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", fmt.Errorf("invalid href %q: %w", href, err)
	}
	if base == nil {
		return ref.String(), nil
	}
	return base.ResolveReference(ref).String(), nil
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetRunes {
		return text
	}
	return string(runes[:snippetRunes]) + "..."
}
