package waste

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"homeboard/internal/cache"
	"homeboard/internal/fetcher"
	"homeboard/internal/model"
)

// OpeningHoursTTL is how long a scraped page stays valid.
const OpeningHoursTTL = 15 * time.Minute

var (
	hoursPatterns = []struct {
		label string
		re    *regexp.Regexp
	}{
		{"Montag, Mittwoch und Freitag", regexp.MustCompile(`Montag, Mittwoch und Freitag:\s*([\d.:]+\s*bis\s*[\d.:]+\s*Uhr)`)},
		{"Dienstag und Donnerstag", regexp.MustCompile(`Dienstag und Donnerstag:\s*([\d.:]+\s*bis\s*[\d.:]+\s*Uhr)`)},
	}
	firstSaturdayRe = regexp.MustCompile(`jeden ersten Samstag im Monat:\s*([\d.:]+\s*bis\s*[\d.:]+\s*Uhr)`)
	saturdayYearRe  = regexp.MustCompile(`An folgenden Samstagen öffnet unser Hof (\d{4})`)
	dayMonthRe      = regexp.MustCompile(`\d{1,2}\.\s+\p{L}+`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

var germanMonths = map[string]time.Month{
	"januar": time.January, "februar": time.February, "märz": time.March,
	"april": time.April, "mai": time.May, "juni": time.June,
	"juli": time.July, "august": time.August, "september": time.September,
	"oktober": time.October, "november": time.November, "dezember": time.December,
}

// RecyclingCenter scrapes the recycling centre's opening hours page.
type RecyclingCenter struct {
	fetcher *fetcher.Fetcher
	url     string
	log     *slog.Logger
	pages   *cache.TTL[string, model.OpeningHours]
}

// NewRecyclingCenter creates a scraper for the page at url.
func NewRecyclingCenter(f *fetcher.Fetcher, url string, log *slog.Logger, opts ...cache.Option) *RecyclingCenter {
	return &RecyclingCenter{
		fetcher: f,
		url:     url,
		log:     log,
		pages:   cache.New[string, model.OpeningHours]("recycling_center", opts...),
	}
}

// OpeningHours returns the current opening hours.
func (c *RecyclingCenter) OpeningHours(ctx context.Context) (model.OpeningHours, error) {
	return c.pages.GetOrCompute(ctx, c.url, OpeningHoursTTL, func(ctx context.Context) (model.OpeningHours, error) {
		body, err := c.fetcher.Get(ctx, c.url)
		if err != nil {
			return model.OpeningHours{}, fmt.Errorf("get opening hours page: %w", err)
		}
		hours, err := ParseOpeningHours(bytes.NewReader(body))
		if err != nil {
			return model.OpeningHours{}, err
		}
		c.log.Info("retrieved opening hours", "regular", len(hours.Regular), "saturday_years", len(hours.Saturdays))
		return hours, nil
	})
}

// ParseOpeningHours extracts regular hours and extra Saturday dates from the
// recycling centre page. Sections that are missing yield empty fields.
//
// Saturday dates are read from the list that follows a "An folgenden
// Samstagen öffnet unser Hof <year>" heading. List entries naming only a
// month are expanded to that month's first Saturday. Without a list the
// dates are taken from the text after the heading.
func ParseOpeningHours(r io.Reader) (model.OpeningHours, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return model.OpeningHours{}, fmt.Errorf("parse opening hours page: %w: %w", model.ErrInvalidResponse, err)
	}

	text := doc.Text()
	hours := model.OpeningHours{
		Regular:   make(map[string]string),
		Saturdays: make(map[int][]string),
	}

	for _, p := range hoursPatterns {
		if m := p.re.FindStringSubmatch(text); m != nil {
			hours.Regular[p.label] = collapse(m[1])
		}
	}
	if m := firstSaturdayRe.FindStringSubmatch(text); m != nil {
		hours.Regular["Samstag"] = "In der Regel jeden ersten Samstag im Monat: " + collapse(m[1])
	}

	doc.Find("strong, b, h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		m := saturdayYearRe.FindStringSubmatch(s.Text())
		if m == nil {
			return
		}
		year, _ := strconv.Atoi(m[1])
		list := s.NextAllFiltered("ol, ul").First()
		if list.Length() == 0 {
			list = s.Parent().NextAllFiltered("ol, ul").First()
		}
		list.Find("li").Each(func(_ int, li *goquery.Selection) {
			if label := saturdayLabel(year, collapse(li.Text())); label != "" {
				hours.Saturdays[year] = append(hours.Saturdays[year], label)
			}
		})
	})

	headings := saturdayYearRe.FindAllStringSubmatchIndex(text, -1)
	for i, loc := range headings {
		year, _ := strconv.Atoi(text[loc[2]:loc[3]])
		if len(hours.Saturdays[year]) > 0 {
			continue
		}
		end := len(text)
		if i+1 < len(headings) {
			end = headings[i+1][0]
		}
		for _, d := range dayMonthRe.FindAllString(text[loc[1]:end], -1) {
			hours.Saturdays[year] = append(hours.Saturdays[year], collapse(d))
		}
	}

	return hours, nil
}

// saturdayLabel renders a list entry as "D. Month". A bare month name becomes
// the first Saturday of that month.
func saturdayLabel(year int, entry string) string {
	if entry == "" {
		return ""
	}
	month, ok := germanMonths[strings.ToLower(entry)]
	if !ok {
		return entry
	}
	d := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	for d.Weekday() != time.Saturday {
		d = d.AddDate(0, 0, 1)
	}
	return fmt.Sprintf("%d. %s", d.Day(), entry)
}

func collapse(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}
