package models

// Request DTOs of the trading HTTP API. Defaults come from creasty/defaults, validation from validator tags.

type SignalRequest struct {
	Symbol  string `param:"symbol" json:"symbol" validate:"required,symbol"`
	Refresh bool   `query:"refresh" json:"refresh"`
}

type BatchSignalRequest struct {
	Symbols       []string `json:"symbols" validate:"required,min=1,max=50,dive,required,symbol"`
	MinConfidence float64  `json:"min_confidence" default:"65" validate:"gte=0,lte=100"`
}

type AnalysisRequest struct {
	Symbol   string `param:"symbol" json:"symbol" validate:"required,symbol"`
	Interval string `query:"interval" json:"interval" default:"1h" validate:"timeframe"`
	Limit    int    `query:"limit" json:"limit" default:"200" validate:"gte=10,lte=1000"`
}

type ScanRequest struct {
	Limit int `query:"limit" json:"limit" default:"20" validate:"gte=2,lte=100"`
}

type SentimentRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,symbol"`
}

type TrendingRequest struct {
	Top int `query:"top" json:"top" default:"10" validate:"gte=1,lte=50"`
}

type TradesRequest struct {
	Symbol string `query:"symbol" json:"symbol" validate:"omitempty,symbol"`
	Status string `query:"status" json:"status" validate:"omitempty,oneof=OPEN CLOSED"`
	From   string `query:"from" json:"from"`
	To     string `query:"to" json:"to"`
	Limit  int    `query:"limit" json:"limit" default:"100" validate:"gte=1,lte=5000"`
}

type PerformanceRequest struct {
	Days int `query:"days" json:"days" default:"30" validate:"gte=1,lte=365"`
}

type PositionRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,symbol"`
}
