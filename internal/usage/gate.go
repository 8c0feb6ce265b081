package usage

import (
	"fmt"

	"seopilot/internal/types"
)

// CanGenerate decides whether a generation may proceed given the usage
// snapshot. It fails closed: no snapshot means no quota answer, and no
// quota answer denies.
//
// A nil error means proceed. The returned AppError carries enough detail
// for the caller to render an upgrade prompt.
func CanGenerate(snap *types.UsageSnapshot) error {
	if snap == nil {
		return types.NewAppError(
			types.ErrCodeUsageUnknown,
			"usage data is unavailable; try again shortly",
			nil,
		)
	}

	if snap.Unlimited() {
		return nil
	}

	if snap.Remaining > 0 {
		return nil
	}

	return types.NewAppErrorWithDetails(
		types.ErrCodeLimitGenerations,
		fmt.Sprintf("monthly generation limit reached (%d of %d used)", snap.Used, snap.Limit),
		nil,
		map[string]any{
			"used":  snap.Used,
			"limit": snap.Limit,
			"plan":  string(snap.Plan),
			"stale": snap.Stale,
		},
	)
}
