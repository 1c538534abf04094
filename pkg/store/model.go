package store

import (
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/go-pocketbench/pkg/outcome"
	"github.com/teslashibe/go-pocketbench/pkg/pipeline"
	"github.com/teslashibe/go-pocketbench/pkg/vision"
)

// OutcomeRecord is one analysed turn.
type OutcomeRecord struct {
	Seq       uint      `gorm:"primaryKey" json:"-"`
	ID        uuid.UUID `gorm:"type:text;uniqueIndex" json:"id"`
	SessionID uuid.UUID `gorm:"type:text;index" json:"session_id"`
	Turn      int       `json:"turn"`

	Verdict           string   `gorm:"index" json:"verdict"`
	Hit               bool     `json:"hit"`
	ImpactX           float64  `json:"impact_x"`
	ImpactY           float64  `json:"impact_y"`
	ImpactConfidence  float64  `json:"impact_confidence"`
	DistanceError     float64  `json:"distance_error"`
	Units             string   `json:"units"`
	LateralOffset     *float64 `json:"lateral_offset,omitempty"`
	TerrainChangeArea int      `json:"terrain_change_area"`
	Confidence        float64  `json:"confidence"`

	PlayerX            float64 `json:"player_x"`
	PlayerY            float64 `json:"player_y"`
	PlayerConfidence   float64 `json:"player_confidence"`
	OpponentX          float64 `json:"opponent_x"`
	OpponentY          float64 `json:"opponent_y"`
	OpponentConfidence float64 `json:"opponent_confidence"`

	Frames   int    `json:"frames"`
	FellBack bool   `json:"fell_back"`
	Reason   string `json:"reason,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// TableName pins the table name.
func (OutcomeRecord) TableName() string {
	return "outcomes"
}

// newRecord flattens a turn result.
func newRecord(res pipeline.TurnResult) OutcomeRecord {
	o := res.Outcome
	return OutcomeRecord{
		ID:                 uuid.New(),
		SessionID:          res.Session,
		Turn:               res.Turn,
		Verdict:            string(o.Verdict),
		Hit:                o.HitDetected,
		ImpactX:            o.ImpactLocation.X,
		ImpactY:            o.ImpactLocation.Y,
		ImpactConfidence:   o.ImpactLocation.Confidence,
		DistanceError:      o.DistanceError,
		Units:              o.Units,
		LateralOffset:      o.LateralOffset,
		TerrainChangeArea:  o.TerrainChangeArea,
		Confidence:         o.Confidence,
		PlayerX:            res.Tanks.Player.X,
		PlayerY:            res.Tanks.Player.Y,
		PlayerConfidence:   res.Tanks.Player.Confidence,
		OpponentX:          res.Tanks.Opponent.X,
		OpponentY:          res.Tanks.Opponent.Y,
		OpponentConfidence: res.Tanks.Opponent.Confidence,
		Frames:             res.Frames,
		FellBack:           res.FellBack,
		Reason:             res.Reason,
	}
}

// Outcome rebuilds the MoveOutcome.
func (r OutcomeRecord) Outcome() outcome.MoveOutcome {
	return outcome.MoveOutcome{
		HitDetected:       r.Hit,
		ImpactLocation:    vision.Position{X: r.ImpactX, Y: r.ImpactY, Confidence: r.ImpactConfidence},
		DistanceError:     r.DistanceError,
		TerrainChangeArea: r.TerrainChangeArea,
		Confidence:        r.Confidence,
		Verdict:           outcome.Verdict(r.Verdict),
		Units:             r.Units,
		LateralOffset:     r.LateralOffset,
	}
}
