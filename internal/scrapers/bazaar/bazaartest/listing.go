// Package bazaartest renders synthetic bazaar listing pages for tests.
package bazaartest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Listing holds the values a rendered page will carry.
type Listing struct {
	Status   string
	Name     string
	Level    int
	Vocation string
	Gender   string
	Server   string

	Start    string
	End      string
	BidLabel string
	Bid      string

	// axe, club, distance, fishing, fist, magic, shielding, sword
	Skills [8]int

	Mounts  int
	Outfits int

	Gold              string
	AchievementPoints int
	Transfer          string
	CharmExpansion    string
	AvailableCharms   string
	SpentCharms       string
	HuntingTaskPoints string
	PreySlots         int
	HuntSlots         int
	PreyWildcards     int
	Hirelings         int
	HirelingJobs      int
	HirelingOutfits   int

	Imbuements int
	Charms     int
	// CharmRows overrides the rendered charm table rows when non-zero.
	CharmRows int
}

// Default returns a listing that parses successfully.
func Default() Listing {
	return Listing{
		Status:   "finished",
		Name:     "Sir Tester",
		Level:    312,
		Vocation: "Elite Knight",
		Gender:   "Male",
		Server:   "Antica",

		Start:    "Jan 05 2023, 10:00\u00a0CET",
		End:      "Jan 07 2023, 18:30\u00a0CET",
		BidLabel: "Winning Bid:",
		Bid:      "12,500",

		Skills: [8]int{101, 12, 13, 14, 15, 11, 98, 16},

		Mounts:  21,
		Outfits: 34,

		Gold:              "1,250,000",
		AchievementPoints: 512,
		Transfer:          "can be used immediately",
		CharmExpansion:    "yes",
		AvailableCharms:   "1,200",
		SpentCharms:       "3,450",
		HuntingTaskPoints: "6,789",
		PreySlots:         1,
		HuntSlots:         2,
		PreyWildcards:     37,
		Hirelings:         3,
		HirelingJobs:      4,
		HirelingOutfits:   5,

		Imbuements: 6,
		Charms:     7,
	}
}

func nestedRows(id string, rows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, `<div id="%s"><table><tr><td><table><tr><td><table>`, id)
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&b, `<tr><td>%s row %d</td></tr>`, id, i)
	}
	b.WriteString(`</table></td></tr></table></td></tr></table></div>`)
	return b.String()
}

// Render produces the html of the listing.
func (l Listing) Render() string {
	var b strings.Builder
	b.WriteString("<!DOCTYPE html><html><head><title>Char Bazaar</title></head><body>\n")

	fmt.Fprintf(
		&b,
		`<div class="AuctionHeader">Level: %d | Vocation: %s | %s | World: %s</div>`+"\n",
		l.Level, l.Vocation, l.Gender, l.Server,
	)
	fmt.Fprintf(&b, `<div class="AuctionCharacterName">%s</div>`+"\n", l.Name)
	fmt.Fprintf(&b, `<div class="AuctionInfo">%s</div>`+"\n", l.Status)

	b.WriteString(`<div class="ShortAuctionData">`)
	fmt.Fprintf(&b, `<div class="ShortAuctionDataRow"><div class="ShortAuctionDataLabel">Auction Start:</div><div class="ShortAuctionDataValue">%s</div></div>`, l.Start)
	fmt.Fprintf(&b, `<div class="ShortAuctionDataRow"><div class="ShortAuctionDataLabel">Auction End:</div><div class="ShortAuctionDataValue">%s</div></div>`, l.End)
	fmt.Fprintf(&b, `<div class="ShortAuctionDataBidRow"><div class="ShortAuctionDataLabel">%s</div><div class="ShortAuctionDataValue"><b>%s</b></div></div>`, l.BidLabel, l.Bid)
	b.WriteString("</div>\n")

	b.WriteString(`<table id="Skills"><tr>`)
	for _, skill := range l.Skills {
		fmt.Fprintf(&b, `<td class="LevelColumn">%d</td>`, skill)
	}
	b.WriteString("</tr></table>\n")

	general := []string{"Hit Points", "Mana", "Capacity", "Speed", "Blessings", fmt.Sprint(l.Mounts), fmt.Sprint(l.Outfits), "Titles"}
	b.WriteString(`<div id="CharacterDetailsGeneral">`)
	for _, cell := range general {
		fmt.Fprintf(&b, `<div>%s</div>`, cell)
	}
	b.WriteString("</div>\n")

	details := make([]string, 48)
	for i := range details {
		details[i] = fmt.Sprintf("label %d", i)
	}
	details[34] = l.Gold
	details[35] = fmt.Sprint(l.AchievementPoints)
	details[36] = l.Transfer
	details[37] = l.CharmExpansion
	details[38] = l.AvailableCharms
	details[39] = l.SpentCharms
	details[41] = l.HuntingTaskPoints
	details[42] = fmt.Sprint(l.PreySlots)
	details[43] = fmt.Sprint(l.HuntSlots)
	details[44] = fmt.Sprint(l.PreyWildcards)
	details[45] = fmt.Sprint(l.Hirelings)
	details[46] = fmt.Sprint(l.HirelingJobs)
	details[47] = fmt.Sprint(l.HirelingOutfits)

	b.WriteString(`<div id="CharacterDetails"><div class="TableContent">`)
	for _, cell := range details {
		fmt.Fprintf(&b, `<div>%s</div>`, cell)
	}
	b.WriteString("</div></div>\n")

	b.WriteString(nestedRows("Imbuements", l.Imbuements+1))
	b.WriteString("\n")
	charmRows := (l.Charms + 1) * 2
	if l.CharmRows > 0 {
		charmRows = l.CharmRows
	}
	b.WriteString(nestedRows("Charms", charmRows))
	b.WriteString("\n</body></html>\n")

	return b.String()
}

// WriteDir writes each page as <dir>/<id>.html.
func WriteDir(dir string, pages map[int64]string) error {
	for id, page := range pages {
		err := os.WriteFile(filepath.Join(dir, fmt.Sprintf("%d.html", id)), []byte(page), 0644)
		if err != nil {
			return err
		}
	}
	return nil
}
