package auction

// Status labels as they appear on a listing's info block.
const (
	StatusFinished           = "finished"
	StatusCurrentlyProcessed = "currentlyprocessed"
	StatusWillBeTransferred  = "will be transferred at the next server save"
	StatusFailed             = "failed"
)

// FinishedStatuses are the labels the reconciler treats as a closed auction
// whose outcome still has to be confirmed against the source document.
var FinishedStatuses = []string{
	StatusFinished,
	StatusCurrentlyProcessed,
	StatusWillBeTransferred,
}

// IsoLayout is the layout of AuctionStartISO and AuctionEndISO, the zone
// abbreviation of the source page is dropped.
const IsoLayout = "2006-01-02T15:04:05"

// Record is one character listing, the unit of persistence.
type Record struct {
	ID     int64
	Status string

	Name                    string
	NameHasSpecialCharacter bool

	// Bid is nil when the listing never carried a bid amount.
	Bid             *int64
	AuctionStartISO string
	AuctionEndISO   string

	Level    int64
	Vocation string
	Server   string

	AxeFighting      int64
	ClubFighting     int64
	DistanceFighting int64
	Fishing          int64
	FistFighting     int64
	MagicLevel       int64
	Shielding        int64
	SwordFighting    int64

	Mounts  int64
	Outfits int64

	Gold                  int64
	AchievementPoints     int64
	IsTransferAvailable   bool
	CharmExpansion        bool
	AvailableCharmPoints  int64
	SpentCharmPoints      int64
	HuntingTaskPoints     int64
	PermanentPreyTaskSlot int64
	PermanentHuntTaskSlot int64
	PreyWildcards         int64
	Hirelings             int64
	HirelingsJobs         int64
	HirelingsOutfits      int64

	Imbuements int64
	Charms     int64
}

// Int64 returns a pointer to v, used for optional columns like Bid.
func Int64(v int64) *int64 {
	return &v
}
