package bazaar

import (
	"errors"
	"strings"
	"testing"

	"tcaqs/internal/auction"
	"tcaqs/internal/scrapers/bazaar/bazaartest"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestParseDefaultListing(t *testing.T) {
	rec, err := Parse(strings.NewReader(bazaartest.Default().Render()))
	require.NoError(t, err)

	expected := auction.Record{
		Status:                  "finished",
		Name:                    "Sir Tester",
		NameHasSpecialCharacter: false,
		Bid:                     auction.Int64(12500),
		AuctionStartISO:         "2023-01-05T10:00:00",
		AuctionEndISO:           "2023-01-07T18:30:00",
		Level:                   312,
		Vocation:                "knight",
		Server:                  "Antica",
		AxeFighting:             101,
		ClubFighting:            12,
		DistanceFighting:        13,
		Fishing:                 14,
		FistFighting:            15,
		MagicLevel:              11,
		Shielding:               98,
		SwordFighting:           16,
		Mounts:                  21,
		Outfits:                 34,
		Gold:                    1250000,
		AchievementPoints:       512,
		IsTransferAvailable:     true,
		CharmExpansion:          true,
		AvailableCharmPoints:    1200,
		SpentCharmPoints:        3450,
		HuntingTaskPoints:       6789,
		PermanentPreyTaskSlot:   1,
		PermanentHuntTaskSlot:   2,
		PreyWildcards:           37,
		Hirelings:               3,
		HirelingsJobs:           4,
		HirelingsOutfits:        5,
		Imbuements:              6,
		Charms:                  7,
	}

	diff := cmp.Diff(expected, rec)
	if diff != "" {
		t.Fatalf("unexpected record (-want +got):\n%s", diff)
	}
}

// A transposition here would corrupt every training row, so each skill
// gets a distinct value and is checked against its column.
func TestParseSkillOrder(t *testing.T) {
	listing := bazaartest.Default()
	listing.Skills = [8]int{1, 2, 3, 4, 5, 6, 7, 8}

	rec, err := ParseBytes([]byte(listing.Render()))
	require.NoError(t, err)

	require.Equal(t, int64(1), rec.AxeFighting)
	require.Equal(t, int64(2), rec.ClubFighting)
	require.Equal(t, int64(3), rec.DistanceFighting)
	require.Equal(t, int64(4), rec.Fishing)
	require.Equal(t, int64(5), rec.FistFighting)
	require.Equal(t, int64(6), rec.MagicLevel)
	require.Equal(t, int64(7), rec.Shielding)
	require.Equal(t, int64(8), rec.SwordFighting)
}

func TestParseDeterministic(t *testing.T) {
	page := []byte(bazaartest.Default().Render())

	first, err := ParseBytes(page)
	require.NoError(t, err)
	second, err := ParseBytes(page)
	require.NoError(t, err)

	require.Empty(t, cmp.Diff(first, second))
}

func TestParseVariants(t *testing.T) {
	testCases := []struct {
		name   string
		modify func(l *bazaartest.Listing)
		check  func(t *testing.T, rec auction.Record)
	}{
		{
			name: "apostrophe in name",
			modify: func(l *bazaartest.Listing) {
				l.Name = "Ka'ra the Bold"
			},
			check: func(t *testing.T, rec auction.Record) {
				require.True(t, rec.NameHasSpecialCharacter)
				require.Equal(t, "Ka'ra the Bold", rec.Name)
			},
		},
		{
			name: "summer time with non-breaking space",
			modify: func(l *bazaartest.Listing) {
				l.Start = "Jul 14 2022, 09:05\u00a0CEST"
				l.End = "Jul 16 2022, 23:59 CST"
			},
			check: func(t *testing.T, rec auction.Record) {
				require.Equal(t, "2022-07-14T09:05:00", rec.AuctionStartISO)
				require.Equal(t, "2022-07-16T23:59:00", rec.AuctionEndISO)
			},
		},
		{
			name: "single word vocation",
			modify: func(l *bazaartest.Listing) {
				l.Vocation = "Sorcerer"
			},
			check: func(t *testing.T, rec auction.Record) {
				require.Equal(t, "sorcerer", rec.Vocation)
			},
		},
		{
			name: "promoted vocation",
			modify: func(l *bazaartest.Listing) {
				l.Vocation = "Master Sorcerer"
			},
			check: func(t *testing.T, rec auction.Record) {
				require.Equal(t, "sorcerer", rec.Vocation)
			},
		},
		{
			name: "no bid amount",
			modify: func(l *bazaartest.Listing) {
				l.Bid = ""
			},
			check: func(t *testing.T, rec auction.Record) {
				require.Nil(t, rec.Bid)
			},
		},
		{
			name: "transfer locked and no charm expansion",
			modify: func(l *bazaartest.Listing) {
				l.Transfer = "can be used after the transfer lock"
				l.CharmExpansion = "no"
			},
			check: func(t *testing.T, rec auction.Record) {
				require.False(t, rec.IsTransferAvailable)
				require.False(t, rec.CharmExpansion)
			},
		},
		{
			name: "empty imbuement and charm tables",
			modify: func(l *bazaartest.Listing) {
				l.Imbuements = 0
				l.Charms = 0
			},
			check: func(t *testing.T, rec auction.Record) {
				require.Equal(t, int64(0), rec.Imbuements)
				require.Equal(t, int64(0), rec.Charms)
			},
		},
		{
			name: "charm table with a lone header row",
			modify: func(l *bazaartest.Listing) {
				l.CharmRows = 1
			},
			check: func(t *testing.T, rec auction.Record) {
				require.Equal(t, int64(0), rec.Charms)
			},
		},
		{
			name: "odd charm row count",
			modify: func(l *bazaartest.Listing) {
				l.CharmRows = 5
			},
			check: func(t *testing.T, rec auction.Record) {
				require.Equal(t, int64(1), rec.Charms)
			},
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			listing := bazaartest.Default()
			test.modify(&listing)
			rec, err := ParseBytes([]byte(listing.Render()))
			require.NoError(t, err)
			test.check(t, rec)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	valid := bazaartest.Default().Render()

	testCases := []struct {
		name  string
		page  string
		field string
	}{
		{
			name:  "missing header",
			page:  strings.Replace(valid, `class="AuctionHeader"`, `class="Other"`, 1),
			field: "header",
		},
		{
			name:  "short header",
			page:  strings.Replace(valid, "| Male |", "-", 1),
			field: "header",
		},
		{
			name:  "missing status",
			page:  strings.Replace(valid, `class="AuctionInfo"`, `class="Other"`, 1),
			field: "status",
		},
		{
			name:  "missing name",
			page:  strings.Replace(valid, `class="AuctionCharacterName"`, `class="Other"`, 1),
			field: "name",
		},
		{
			name:  "missing character details",
			page:  strings.Replace(valid, `id="CharacterDetails"`, `id="Other"`, 1),
			field: "gold",
		},
		{
			name:  "non numeric level",
			page:  strings.Replace(valid, "Level: 312", "Level: many", 1),
			field: "level",
		},
		{
			name:  "bad timestamp",
			page:  strings.Replace(valid, "Jan 05 2023, 10:00\u00a0CET", "yesterday", 1),
			field: "auction_start_date_iso",
		},
		{
			name:  "not a listing",
			page:  "<html><body><p>The auction could not be found.</p></body></html>",
			field: "header",
		},
	}

	for _, test := range testCases {
		t.Run(test.name, func(t *testing.T) {
			_, err := ParseBytes([]byte(test.page))
			require.Error(t, err)
			require.True(t, errors.Is(err, ErrMalformedDocument), err.Error())

			var parseErr *ParseError
			require.True(t, errors.As(err, &parseErr))
			require.Equal(t, test.field, parseErr.Field)
		})
	}
}

func TestIsMinimumBid(t *testing.T) {
	listing := bazaartest.Default()
	listing.BidLabel = "Minimum Bid:"
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(listing.Render()))
	require.NoError(t, err)
	require.True(t, IsMinimumBid(doc))

	doc, err = goquery.NewDocumentFromReader(strings.NewReader(bazaartest.Default().Render()))
	require.NoError(t, err)
	require.False(t, IsMinimumBid(doc))

	doc, err = goquery.NewDocumentFromReader(strings.NewReader("<html></html>"))
	require.NoError(t, err)
	require.False(t, IsMinimumBid(doc))
}

func TestParseID(t *testing.T) {
	id, err := ParseID("1234567.html")
	require.NoError(t, err)
	require.Equal(t, int64(1234567), id)

	_, err = ParseID("notes.html")
	require.Error(t, err)
	_, err = ParseID("-4.html")
	require.Error(t, err)
}
