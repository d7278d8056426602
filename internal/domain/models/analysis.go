package models

type TrendDirection string

const (
	TrendBullish TrendDirection = "Bullish"
	TrendBearish TrendDirection = "Bearish"
	TrendNeutral TrendDirection = "Neutral"
	TrendUnknown TrendDirection = "Unknown"
)

type TrendStrength string

const (
	TrendVeryStrong TrendStrength = "Very Strong"
	TrendStrong     TrendStrength = "Strong"
	TrendModerate   TrendStrength = "Moderate"
	TrendWeak       TrendStrength = "Weak"
)

// TrendAnalysis is the direction and strength verdict over a series.
type TrendAnalysis struct {
	Direction  TrendDirection `json:"trend"`
	Strength   TrendStrength  `json:"strength"`
	Confidence float64        `json:"confidence"`
	Score      int            `json:"score"`
	ADX        float64        `json:"adx"`
	MAGapPct   float64        `json:"ma_gap_pct"`
}

// SupportResistance lists clustered price levels, resistance descending and support ascending.
type SupportResistance struct {
	Resistance []float64 `json:"resistance"`
	Support    []float64 `json:"support"`
}

// FibLevel is one Fibonacci retracement or extension level.
type FibLevel struct {
	Ratio float64 `json:"ratio"`
	Price float64 `json:"price"`
}

// AdvancedIndicators are the latest values of the confirmation oscillators.
type AdvancedIndicators struct {
	WilliamsR float64 `json:"williams_r"`
	CCI       float64 `json:"cci"`
	MFI       float64 `json:"mfi"`
	SAR       float64 `json:"parabolic_sar"`
	OBV       float64 `json:"obv"`
}

// IndicatorVotes are the per-indicator directional readings with a majority verdict.
type IndicatorVotes struct {
	RSI       Action `json:"rsi"`
	MACD      Action `json:"macd"`
	Bollinger Action `json:"bollinger"`
	Trend     Action `json:"trend"`
	Overall   Action `json:"overall"`
}

// TechnicalSnapshot is the comprehensive technical reading of the latest bar.
// When Insufficient is set only the neutral defaults are populated.
type TechnicalSnapshot struct {
	Symbol       string  `json:"symbol,omitempty"`
	Bars         int     `json:"bars"`
	Insufficient bool    `json:"insufficient_data,omitempty"`
	Price        float64 `json:"current_price"`
	Volume       float64 `json:"volume"`

	SMA10 float64 `json:"sma_10"`
	SMA20 float64 `json:"sma_20"`
	SMA50 float64 `json:"sma_50"`
	EMA12 float64 `json:"ema_12"`
	EMA26 float64 `json:"ema_26"`

	RSI        float64 `json:"rsi"`
	MACD       float64 `json:"macd"`
	MACDSignal float64 `json:"macd_signal"`
	MACDHist   float64 `json:"macd_histogram"`

	BBUpper     float64 `json:"bb_upper"`
	BBMiddle    float64 `json:"bb_middle"`
	BBLower     float64 `json:"bb_lower"`
	BBBandwidth float64 `json:"bb_bandwidth"`
	BBPercentB  float64 `json:"bb_percent_b"`

	StochK     float64 `json:"stoch_k"`
	StochD     float64 `json:"stoch_d"`
	StochKPrev float64 `json:"stoch_k_prev"`
	StochDPrev float64 `json:"stoch_d_prev"`

	ATR     float64 `json:"atr"`
	ADX     float64 `json:"adx"`
	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`

	Trend     TrendAnalysis       `json:"trend"`
	Levels    SupportResistance   `json:"support_resistance"`
	Fibonacci []FibLevel          `json:"fibonacci,omitempty"`
	Advanced  *AdvancedIndicators `json:"advanced,omitempty"`
	Votes     IndicatorVotes      `json:"signals"`

	TechnicalScore float64 `json:"technical_score"`
}

// NeutralSnapshot is the default analysis when the series is too short.
func NeutralSnapshot(symbol string, bars int, price float64) TechnicalSnapshot {
	return TechnicalSnapshot{
		Symbol:         symbol,
		Bars:           bars,
		Insufficient:   true,
		Price:          price,
		RSI:            NeutralScore,
		StochK:         NeutralScore,
		StochD:         NeutralScore,
		StochKPrev:     NeutralScore,
		StochDPrev:     NeutralScore,
		BBPercentB:     0.5,
		Trend:          TrendAnalysis{Direction: TrendUnknown, Strength: TrendWeak},
		Levels:         SupportResistance{Resistance: []float64{}, Support: []float64{}},
		Votes:          IndicatorVotes{RSI: ActionHold, MACD: ActionHold, Bollinger: ActionHold, Trend: ActionHold, Overall: ActionHold},
		TechnicalScore: NeutralScore,
	}
}
