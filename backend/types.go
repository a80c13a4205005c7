package backend

// ActiveMaterial is the single recipe material currently eligible for dosing,
// as resolved by the backend. The workstation holds it transiently only.
type ActiveMaterial struct {
	RecipeID     int64   `json:"recipe_id"`
	RecipeName   string  `json:"recipe_name"`
	MaterialID   int64   `json:"material_id"`
	MaterialName string  `json:"material_name"`
	Barcode      string  `json:"barcode"`
	SetPoint     float64 `json:"set_point"`
	Actual       float64 `json:"actual"`
	Margin       float64 `json:"margin"`
	Status       string  `json:"status"`
	BucketID     *int64  `json:"bucket_id"`
}

// DosedMaterial is the material record returned by a successful weigh-and-update.
type DosedMaterial struct {
	RecipeMaterialID int64   `json:"recipe_material_id"`
	MaterialID       int64   `json:"material_id"`
	MaterialName     string  `json:"material_name"`
	SetPoint         float64 `json:"set_point"`
	Actual           float64 `json:"actual"`
	Margin           float64 `json:"margin"`
	Status           string  `json:"status"`
}

// WeighOutcome tags the result of one weigh-and-update poll.
type WeighOutcome int

const (
	// WeighPending means the target weight has not been reached yet.
	WeighPending WeighOutcome = iota
	// WeighDosed means the material was confirmed dosed and recorded.
	WeighDosed
	// WeighOverweight means the observed weight exceeds the set point
	// beyond tolerance; the material is not dosed.
	WeighOverweight
)

// WeighResult is the decoded outcome of one weigh-and-update poll.
type WeighResult struct {
	Outcome        WeighOutcome
	Data           *DosedMaterial
	ResetDone      bool // all materials dosed, recipe reset for next round
	TotalRemaining int
	Message        string
}

// weighResponse is the raw backend JSON for weigh-and-update.
type weighResponse struct {
	Success        bool           `json:"success"`
	Reason         string         `json:"reason"`
	Message        string         `json:"message"`
	ResetDone      bool           `json:"reset_done"`
	TotalRemaining int            `json:"total_remaining"`
	Data           *DosedMaterial `json:"data"`
}

// activeResponse is the raw backend JSON for the active-material endpoint.
// When no material is pending the backend answers with a message only.
type activeResponse struct {
	ActiveMaterial
	Message string `json:"message"`
}

// ackResponse is the raw backend JSON for scanner-control and bypass calls.
type ackResponse struct {
	Message     string  `json:"message"`
	BypassedIDs []int64 `json:"bypassed_ids"`
	Error       string  `json:"error"`
}
