package bazaar

import (
	"fmt"
	"strconv"
	"strings"

	"tcaqs/internal/auction"
	"tcaqs/lib/htmlutil"
)

// Structural selectors of a bazaar listing page.
const (
	selHeader         = "div.AuctionHeader"
	selInfo           = "div.AuctionInfo"
	selCharacterName  = "div.AuctionCharacterName"
	selShortData      = "div.ShortAuctionDataValue"
	selSkillLevels    = ".LevelColumn"
	selGeneralDetails = "#CharacterDetailsGeneral div"
	selDetails        = "#CharacterDetails div div"
	selImbuementRows  = "#Imbuements td td td"
	selCharmRows      = "#Charms td td td"
	selBidRowLabel    = ".ShortAuctionDataBidRow > div:nth-child(1)"
)

// Positions inside selShortData.
const (
	shortDataStart = 0
	shortDataEnd   = 1
	shortDataBid   = 2
)

// decoder turns the text of a cell into a record field.
type decoder func(r *auction.Record, text string) error

// cellField reads the index-th match of selector.
//
// The indices encode the live page structure, they must not be
// reordered or "fixed" without a matching change to the page.
type cellField struct {
	name     string
	selector string
	index    int
	decode   decoder
}

// cellFields is the single place where positional offsets live.
var cellFields = []cellField{
	// skills come in the order the page renders them, which is not alphabetical.
	{name: "axe_fighting", selector: selSkillLevels, index: 0, decode: intInto(func(r *auction.Record) *int64 { return &r.AxeFighting })},
	{name: "club_fighting", selector: selSkillLevels, index: 1, decode: intInto(func(r *auction.Record) *int64 { return &r.ClubFighting })},
	{name: "distance_fighting", selector: selSkillLevels, index: 2, decode: intInto(func(r *auction.Record) *int64 { return &r.DistanceFighting })},
	{name: "fishing", selector: selSkillLevels, index: 3, decode: intInto(func(r *auction.Record) *int64 { return &r.Fishing })},
	{name: "fist_fighting", selector: selSkillLevels, index: 4, decode: intInto(func(r *auction.Record) *int64 { return &r.FistFighting })},
	{name: "magic_level", selector: selSkillLevels, index: 5, decode: intInto(func(r *auction.Record) *int64 { return &r.MagicLevel })},
	{name: "shielding", selector: selSkillLevels, index: 6, decode: intInto(func(r *auction.Record) *int64 { return &r.Shielding })},
	{name: "sword_fighting", selector: selSkillLevels, index: 7, decode: intInto(func(r *auction.Record) *int64 { return &r.SwordFighting })},

	{name: "mounts", selector: selGeneralDetails, index: 5, decode: intInto(func(r *auction.Record) *int64 { return &r.Mounts })},
	{name: "outfits", selector: selGeneralDetails, index: 6, decode: intInto(func(r *auction.Record) *int64 { return &r.Outfits })},

	{name: "gold", selector: selDetails, index: 34, decode: amountInto(func(r *auction.Record) *int64 { return &r.Gold })},
	{name: "achievement_points", selector: selDetails, index: 35, decode: intInto(func(r *auction.Record) *int64 { return &r.AchievementPoints })},
	{name: "is_transfer_available", selector: selDetails, index: 36, decode: containsInto("used immediately", func(r *auction.Record) *bool { return &r.IsTransferAvailable })},
	{name: "charm_expansion", selector: selDetails, index: 37, decode: containsInto("yes", func(r *auction.Record) *bool { return &r.CharmExpansion })},
	{name: "available_charm_points", selector: selDetails, index: 38, decode: amountInto(func(r *auction.Record) *int64 { return &r.AvailableCharmPoints })},
	{name: "spent_charm_points", selector: selDetails, index: 39, decode: amountInto(func(r *auction.Record) *int64 { return &r.SpentCharmPoints })},
	{name: "hunting_task_points", selector: selDetails, index: 41, decode: amountInto(func(r *auction.Record) *int64 { return &r.HuntingTaskPoints })},
	{name: "permanent_prey_task_slot", selector: selDetails, index: 42, decode: intInto(func(r *auction.Record) *int64 { return &r.PermanentPreyTaskSlot })},
	{name: "permanent_hunt_task_slot", selector: selDetails, index: 43, decode: intInto(func(r *auction.Record) *int64 { return &r.PermanentHuntTaskSlot })},
	{name: "prey_wildcards", selector: selDetails, index: 44, decode: intInto(func(r *auction.Record) *int64 { return &r.PreyWildcards })},
	{name: "hirelings", selector: selDetails, index: 45, decode: intInto(func(r *auction.Record) *int64 { return &r.Hirelings })},
	{name: "hirelings_jobs", selector: selDetails, index: 46, decode: intInto(func(r *auction.Record) *int64 { return &r.HirelingsJobs })},
	{name: "hirelings_outfits", selector: selDetails, index: 47, decode: intInto(func(r *auction.Record) *int64 { return &r.HirelingsOutfits })},
}

// countField derives a value from the number of matches of selector.
type countField struct {
	name     string
	selector string
	derive   func(rows int) int64
	target   func(r *auction.Record) *int64
}

var countFields = []countField{
	{
		name:     "imbuements",
		selector: selImbuementRows,
		// first row is the table header
		derive: func(rows int) int64 { return int64(rows - 1) },
		target: func(r *auction.Record) *int64 { return &r.Imbuements },
	},
	{
		name:     "charms",
		selector: selCharmRows,
		// every charm spans two rows, plus a header. Halved before the
		// subtraction and truncated toward zero, so one row counts as none.
		derive: func(rows int) int64 { return int64(float64(rows)/2 - 1) },
		target: func(r *auction.Record) *int64 { return &r.Charms },
	},
}

func parseCount(text string) (int64, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("negative value %d", value)
	}
	return value, nil
}

func intInto(target func(r *auction.Record) *int64) decoder {
	return func(r *auction.Record, text string) error {
		value, err := parseCount(text)
		if err != nil {
			return err
		}
		*target(r) = value
		return nil
	}
}

// amountInto is intInto for cells rendered with thousands separators.
func amountInto(target func(r *auction.Record) *int64) decoder {
	return func(r *auction.Record, text string) error {
		value, err := parseCount(htmlutil.StripThousands(text))
		if err != nil {
			return err
		}
		*target(r) = value
		return nil
	}
}

func containsInto(phrase string, target func(r *auction.Record) *bool) decoder {
	return func(r *auction.Record, text string) error {
		*target(r) = strings.Contains(text, phrase)
		return nil
	}
}
