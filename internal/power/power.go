// PACKAGE POWER GATES ULTRA_LOW POWER MODE ON HOST CPU LOAD.
//
// GROUNDED ON internal/api/settings.go'S USE OF github.com/shirou/gopsutil (THERE: disk.Usage FOR
// A STORAGE-STATS ENDPOINT). THIS REPURPOSES THE SAME FAMILY'S cpu SUBPACKAGE: SPEC_FULL.MD §4.11
// REFUSES ULTRA_LOW WHEN SUSTAINED HOST CPU LOAD EXCEEDS 90% OVER THE LAST SAMPLE WINDOW, SINCE
// ULTRA_LOW ASSUMES THE PROCESS CAN SAFELY REDUCE ITS OWN POLLING CADENCE.
package power

import (
	"time"

	"github.com/shirou/gopsutil/cpu"

	"github.com/nickheyer/Crepes/internal/utils"
)

const highLoadThresholdPct = 90.0

// LOADGATE SAMPLES RECENT HOST CPU LOAD TO DECIDE WHETHER ULTRA_LOW POWER MODE IS SAFE
type LoadGate struct {
	sampleWindow time.Duration
	logger       *utils.Logger
}

func NewLoadGate(sampleWindow time.Duration) *LoadGate {
	if sampleWindow <= 0 {
		sampleWindow = 2 * time.Second
	}
	return &LoadGate{sampleWindow: sampleWindow, logger: utils.GetLogger()}
}

// ALLOWSULTRALOW REPORTS WHETHER THE HOST IS IDLE ENOUGH TO ENTER ULTRA_LOW POWER MODE
func (g *LoadGate) AllowsUltraLow() bool {
	percentages, err := cpu.Percent(g.sampleWindow, false)
	if err != nil || len(percentages) == 0 {
		g.logger.Warn("power: cpu sample failed, refusing ultra-low power mode", map[string]any{"error": errString(err)})
		return false
	}
	return percentages[0] <= highLoadThresholdPct
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
