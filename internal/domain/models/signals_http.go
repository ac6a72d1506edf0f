package models

// Requests for HTTP endpoints. Bound by echo and validated with go-playground/validator.

type SnapshotsRequest struct {
	Symbols string `query:"symbols" json:"symbols" validate:"required"`
}

type DashboardRequest struct {
	Symbols string `query:"symbols" json:"symbols" validate:"required"`
}

type TopSignalsRequest struct {
	Tickers   string `query:"tickers" json:"tickers"`
	Signal    string `query:"signal" json:"signal" default:"all" validate:"oneof=all BUY SELL NEUTRAL"`
	Tradeable bool   `query:"tradeable" json:"tradeable"`
	Limit     int    `query:"limit" json:"limit" default:"10" validate:"gte=1,lte=100"`
}

// TopSignalsQuery is the use-case form of TopSignalsRequest.
type TopSignalsQuery struct {
	Tickers       []string
	Signal        string
	TradeableOnly bool
	Limit         int
}
