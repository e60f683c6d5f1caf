package engine

import "fmt"

// Shape is the suit of a Whot card.
type Shape string

const (
	ShapeCircle   Shape = "CIRCLE"
	ShapeTriangle Shape = "TRIANGLE"
	ShapeCross    Shape = "CROSS"
	ShapeSquare   Shape = "SQUARE"
	ShapeStar     Shape = "STAR"
	ShapeWhot     Shape = "WHOT"
)

// OrdinaryShapes lists the shapes a WHOT card may declare, in deck order.
var OrdinaryShapes = []Shape{ShapeCircle, ShapeTriangle, ShapeCross, ShapeSquare, ShapeStar}

// IsOrdinary reports whether s is one of the five non-wild shapes.
func (s Shape) IsOrdinary() bool {
	for _, o := range OrdinaryShapes {
		if s == o {
			return true
		}
	}
	return false
}

// Card numbers with special effects.
const (
	NumberHoldOn        = 1
	NumberPickTwo       = 2
	NumberPickThree     = 5
	NumberSuspension    = 8
	NumberGeneralMarket = 14
	NumberWhot          = 20
)

// ordinaryNumbers are the numbers printed on each ordinary shape.
var ordinaryNumbers = []int{1, 2, 3, 4, 5, 7, 8, 10, 11, 12, 13, 14}

// Card is an immutable playing card. IDs are stable across a match.
type Card struct {
	ID     string `json:"id"`
	Shape  Shape  `json:"shape"`
	Number int    `json:"number"`
}

func (c Card) String() string {
	if c.Shape == ShapeWhot {
		return "WHOT"
	}
	return fmt.Sprintf("%s %d", c.Shape, c.Number)
}

// IsWhot reports whether c is a wild card.
func (c Card) IsWhot() bool { return c.Shape == ShapeWhot }

// GameMode selects rule variants.
type GameMode string

const (
	ModeClassic GameMode = "CLASSIC"
	ModeChaos   GameMode = "CHAOS"
)

// Status is the lifecycle of a match.
type Status string

const (
	StatusPlaying  Status = "PLAYING"
	StatusFinished Status = "FINISHED"
)

// PlayerState is one seat in a match.
type PlayerState struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Avatar      string `json:"avatar,omitempty"`
	Hand        []Card `json:"hand"`
	IsSpectator bool   `json:"isSpectator"`
	Score       int    `json:"score"`
}

// GameState is the authoritative state of one match. The session layer
// owns it exclusively; engine functions mutate it in place.
type GameState struct {
	Players                []PlayerState `json:"players"`
	CurrentPlayerIndex     int           `json:"currentPlayerIndex"`
	CurrentShape           Shape         `json:"currentShape"`
	CurrentNumber          int           `json:"currentNumber"`
	PendingPicks           int           `json:"pendingPicks"`
	TurnDirection          int           `json:"turnDirection"`
	Status                 Status        `json:"status"`
	AwaitingShapeSelection string        `json:"awaitingShapeSelection,omitempty"`
	WinnerID               string        `json:"winnerId,omitempty"`
	GameMode               GameMode      `json:"gameMode"`
	DrawPile               []Card        `json:"drawPile"`
	DiscardPile            []Card        `json:"discardPile"`
	Logs                   []string      `json:"logs"`
	LastCardDeclared       []string      `json:"lastCardDeclared"`
	Explanation            string        `json:"explanation"`
}

// Update is the result of applying a played card's effect, computed
// without mutating the state it was derived from.
type Update struct {
	CurrentShape       Shape
	CurrentNumber      int
	CurrentPlayerIndex int
	PendingPicks       int
	TurnDirection      int
	Explanation        string
	AwaitShape         bool
	GeneralMarket      bool
}

// TimeoutOutcome describes what the turn-timeout fallback did.
type TimeoutOutcome struct {
	PlayerID    string
	ForcedShape Shape // set when a pending WHOT selection was auto-resolved
	Drawn       int
}
