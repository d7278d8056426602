package indicators

import (
	"math"

	"github.com/markcheno/go-talib"

	"CoinPull/internal/domain/models"
)

// MinAdvancedBars is the shortest series the confirmation oscillators run on.
const MinAdvancedBars = 30

// AdvancedSettings are the periods of the confirmation oscillators.
type AdvancedSettings struct {
	WilliamsPeriod int
	CCIPeriod      int
	MFIPeriod      int
	SARAccel       float64
	SARMax         float64
}

// DefaultAdvancedSettings returns the usual 14/20/14 periods and 0.02/0.2 SAR.
func DefaultAdvancedSettings() AdvancedSettings {
	return AdvancedSettings{WilliamsPeriod: 14, CCIPeriod: 20, MFIPeriod: 14, SARAccel: 0.02, SARMax: 0.2}
}

// Advanced computes the latest Williams %R, CCI, MFI, Parabolic SAR and OBV via TA-Lib.
// It returns nil when the series is too short or a value is not finite.
func Advanced(high, low, close, volume []float64, cfg AdvancedSettings) *models.AdvancedIndicators {
	n := len(close)
	if n < MinAdvancedBars || len(high) != n || len(low) != n || len(volume) != n {
		return nil
	}
	out := &models.AdvancedIndicators{
		WilliamsR: lastFinite(talib.WillR(high, low, close, cfg.WilliamsPeriod)),
		CCI:       lastFinite(talib.Cci(high, low, close, cfg.CCIPeriod)),
		MFI:       lastFinite(talib.Mfi(high, low, close, volume, cfg.MFIPeriod)),
		SAR:       lastFinite(talib.Sar(high, low, cfg.SARAccel, cfg.SARMax)),
		OBV:       lastFinite(talib.Obv(close, volume)),
	}
	for _, v := range []float64{out.WilliamsR, out.CCI, out.MFI, out.SAR, out.OBV} {
		if math.IsNaN(v) {
			return nil
		}
	}
	return out
}

func lastFinite(xs []float64) float64 {
	if v, ok := Last(xs); ok {
		return v
	}
	return math.NaN()
}
