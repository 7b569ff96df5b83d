package models

import "time"

// -----------------------------------------------------------------------------

// MPositionReport is the normalized record built from one inbound stream
// message. It lives only for the duration of the persistence attempt.
type MPositionReport struct {
	MMSI               string
	Latitude           float64
	Longitude          float64
	SpeedOverGround    float64
	NavigationalStatus int
	RateOfTurn         float64
	TrueHeading        float64
	ObservedAt         time.Time
}

// -----------------------------------------------------------------------------

// MSubscription is the outbound filter message sent once per successful open.
// The bounding box is deliberately unrestricted; filtering is by MMSI.
type MSubscription struct {
	APIKey             string        `json:"APIKey"`
	BoundingBoxes      [][][]float64 `json:"BoundingBoxes"`
	FiltersShipMMSI    []string      `json:"FiltersShipMMSI"`
	FilterMessageTypes []string      `json:"FilterMessageTypes"`
}

// -----------------------------------------------------------------------------

// NewSubscription builds the single-vessel position report subscription.
func NewSubscription(apiKey, mmsi string) MSubscription {
	return MSubscription{
		APIKey:             apiKey,
		BoundingBoxes:      [][][]float64{{{-90, -180}, {90, 180}}},
		FiltersShipMMSI:    []string{mmsi},
		FilterMessageTypes: []string{"PositionReport"},
	}
}

// -----------------------------------------------------------------------------

// MStreamMessage is the inbound message envelope. Pointers distinguish a
// missing PositionReport block from a zero-valued one.
type MStreamMessage struct {
	Message struct {
		PositionReport *MRawPositionReport `json:"PositionReport"`
	} `json:"Message"`
}

type MRawPositionReport struct {
	Latitude           *float64 `json:"Latitude"`
	Longitude          *float64 `json:"Longitude"`
	Sog                float64  `json:"Sog"`
	NavigationalStatus int      `json:"NavigationalStatus"`
	RateOfTurn         float64  `json:"RateOfTurn"`
	TrueHeading        float64  `json:"TrueHeading"`
}

// -----------------------------------------------------------------------------

// MStoredLogEntry mirrors what the downstream store returns for one persisted
// report. The store owns this shape; the tracker only reads it.
type MStoredLogEntry struct {
	MMSI      string    `json:"mmsi"`
	Location  []float64 `json:"location"`
	CreatedAt time.Time `json:"createdAt"`
}

// MStoredLogPage is the envelope of a collection query.
type MStoredLogPage struct {
	Docs []MStoredLogEntry `json:"docs"`
}
