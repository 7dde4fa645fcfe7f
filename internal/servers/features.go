package servers

import (
	"time"

	"tcaqs/internal/auction"
)

// Vocations are the base vocations a record can carry, each one gets a
// one-hot feature column.
var Vocations = []string{"none", "knight", "paladin", "sorcerer", "druid", "monk"}

func boolFeature(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Features builds the feature map the prediction model consumes from a
// record and the metadata of its server.
func Features(rec auction.Record, meta Metadata) map[string]any {
	f := map[string]any{
		"level":                              rec.Level,
		"vocation":                           rec.Vocation,
		"server":                             rec.Server,
		"is_name_contains_special_character": boolFeature(rec.NameHasSpecialCharacter),
		"axe_fighting":                       rec.AxeFighting,
		"club_fighting":                      rec.ClubFighting,
		"distance_fighting":                  rec.DistanceFighting,
		"fishing":                            rec.Fishing,
		"fist_fighting":                      rec.FistFighting,
		"magic_level":                        rec.MagicLevel,
		"shielding":                          rec.Shielding,
		"sword_fighting":                     rec.SwordFighting,
		"mounts":                             rec.Mounts,
		"outfits":                            rec.Outfits,
		"gold":                               rec.Gold,
		"achievement_points":                 rec.AchievementPoints,
		"is_transfer_available":              boolFeature(rec.IsTransferAvailable),
		"charm_expansion":                    boolFeature(rec.CharmExpansion),
		"available_charm_points":             rec.AvailableCharmPoints,
		"spent_charm_points":                 rec.SpentCharmPoints,
		"hunting_task_points":                rec.HuntingTaskPoints,
		"permanent_prey_task_slot":           rec.PermanentPreyTaskSlot,
		"permanent_hunt_task_slot":           rec.PermanentHuntTaskSlot,
		"prey_wildcards":                     rec.PreyWildcards,
		"hirelings":                          rec.Hirelings,
		"hirelings_jobs":                     rec.HirelingsJobs,
		"hirelings_outfits":                  rec.HirelingsOutfits,
		"imbuements":                         rec.Imbuements,
		"charms":                             rec.Charms,
		"auction_start_date_iso":             rec.AuctionStartISO,
		"auction_end_date_iso":               rec.AuctionEndISO,

		"server_location":     meta.Location,
		"pvp_type":            meta.PvpType,
		"battleye":            boolFeature(meta.Battleye),
		"server_experimental": boolFeature(meta.Experimental),
	}

	for _, v := range Vocations {
		f["vocation_"+v] = boolFeature(rec.Vocation == v)
	}

	start, startErr := time.Parse(auction.IsoLayout, rec.AuctionStartISO)
	end, endErr := time.Parse(auction.IsoLayout, rec.AuctionEndISO)
	if startErr == nil && endErr == nil {
		f["auction_duration_hours"] = end.Sub(start).Hours()
	}

	return f
}
