package bazaar

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"tcaqs/internal/auction"
	"tcaqs/lib/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

// shortDataLayout is the timestamp layout of the short auction data block
// once the zone abbreviation has been removed.
const shortDataLayout = "Jan 2 2006, 15:04"

// trailing zone abbreviation, CET/CEST/CST and friends.
var zoneSuffix = regexp.MustCompile(`\s*\b[A-Z]{2,5}$`)

// Parse reads one listing page. The returned record has no ID, callers
// assign it from the source identifier.
func Parse(r io.Reader) (auction.Record, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return auction.Record{}, &ParseError{Field: "document", Err: err}
	}
	return ParseDocument(doc)
}

// ParseBytes is Parse over an in-memory page.
func ParseBytes(page []byte) (auction.Record, error) {
	return Parse(bytes.NewReader(page))
}

// ParseDocument extracts a record from an already parsed listing page.
func ParseDocument(doc *goquery.Document) (auction.Record, error) {
	var rec auction.Record

	err := parseHeader(doc, &rec)
	if err != nil {
		return auction.Record{}, err
	}

	info := doc.Find(selInfo)
	if info.Length() == 0 {
		return auction.Record{}, malformed("status", "missing %s", selInfo)
	}
	rec.Status = info.First().Text()

	name := doc.Find(selCharacterName)
	if name.Length() == 0 {
		return auction.Record{}, malformed("name", "missing %s", selCharacterName)
	}
	rec.Name = name.First().Text()
	rec.NameHasSpecialCharacter = strings.Contains(rec.Name, "'")

	err = parseShortData(doc, &rec)
	if err != nil {
		return auction.Record{}, err
	}

	selections := map[string]*goquery.Selection{}
	for _, field := range cellFields {
		sel, ok := selections[field.selector]
		if !ok {
			sel = doc.Find(field.selector)
			selections[field.selector] = sel
		}
		if field.index >= sel.Length() {
			return auction.Record{}, malformed(
				field.name,
				"%s has %d elements, need index %d",
				field.selector, sel.Length(), field.index,
			)
		}
		text := htmlutil.GetText(sel.Get(field.index))
		err := field.decode(&rec, text)
		if err != nil {
			return auction.Record{}, &ParseError{Field: field.name, Err: err}
		}
	}

	for _, field := range countFields {
		rows := doc.Find(field.selector).Length()
		value := field.derive(rows)
		if value < 0 {
			return auction.Record{}, malformed(field.name, "%s has %d rows", field.selector, rows)
		}
		*field.target(&rec) = value
	}

	return rec, nil
}

// headerValue returns the part of a "Key: value" segment after the first colon.
func headerValue(field, segment string) (string, error) {
	_, value, found := strings.Cut(segment, ":")
	if !found {
		return "", malformed(field, "no ':' in header segment %q", segment)
	}
	return strings.TrimSpace(value), nil
}

func parseHeader(doc *goquery.Document, rec *auction.Record) error {
	header := doc.Find(selHeader)
	if header.Length() == 0 {
		return malformed("header", "missing %s", selHeader)
	}
	segments := strings.Split(header.First().Text(), "|")
	if len(segments) < 4 {
		return malformed("header", "expected 4 segments, got %d", len(segments))
	}

	levelText, err := headerValue("level", segments[0])
	if err != nil {
		return err
	}
	rec.Level, err = parseCount(levelText)
	if err != nil {
		return &ParseError{Field: "level", Err: err}
	}

	vocationText, err := headerValue("vocation", segments[1])
	if err != nil {
		return err
	}
	tokens := strings.Fields(vocationText)
	if len(tokens) == 0 {
		return malformed("vocation", "empty vocation segment")
	}
	rec.Vocation = strings.ToLower(tokens[len(tokens)-1])

	rec.Server, err = headerValue("server", segments[3])
	if err != nil {
		return err
	}
	return nil
}

func parseShortData(doc *goquery.Document, rec *auction.Record) error {
	values := doc.Find(selShortData)
	if values.Length() <= shortDataBid {
		return malformed("short_auction_data", "expected at least 3 values, got %d", values.Length())
	}

	start, err := parseAuctionTime(values.Eq(shortDataStart).Text())
	if err != nil {
		return &ParseError{Field: "auction_start_date_iso", Err: err}
	}
	end, err := parseAuctionTime(values.Eq(shortDataEnd).Text())
	if err != nil {
		return &ParseError{Field: "auction_end_date_iso", Err: err}
	}
	rec.AuctionStartISO = start.Format(auction.IsoLayout)
	rec.AuctionEndISO = end.Format(auction.IsoLayout)

	bidText := htmlutil.StripThousands(htmlutil.Clean(values.Eq(shortDataBid).Text()))
	if bidText == "" || bidText == "-" {
		return nil
	}
	bid, err := parseCount(bidText)
	if err != nil {
		return &ParseError{Field: "bid", Err: err}
	}
	rec.Bid = &bid
	return nil
}

// parseAuctionTime parses "Jan 05 2023, 10:00 CET", the time is kept in
// the page's wall clock.
func parseAuctionTime(text string) (time.Time, error) {
	text = htmlutil.Clean(text)
	text = zoneSuffix.ReplaceAllString(text, "")
	t, err := time.Parse(shortDataLayout, text)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", text, err)
	}
	return t, nil
}

// ParseID turns a source name like "123456.html" into an auction id.
func ParseID(name string) (int64, error) {
	base := strings.TrimSuffix(name, ".html")
	id, err := strconv.ParseInt(base, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("source %q is not named after an auction id: %w", name, err)
	}
	if id < 0 {
		return 0, fmt.Errorf("source %q has a negative auction id", name)
	}
	return id, nil
}

// IsMinimumBid reports whether the bid row of a listing is labelled
// "Minimum Bid", meaning nobody bid on the auction.
func IsMinimumBid(doc *goquery.Document) bool {
	label := doc.Find(selBidRowLabel).First()
	if label.Length() == 0 {
		return false
	}
	return strings.Contains(strings.TrimSpace(label.Text()), "Minimum Bid")
}
