package game

import (
	"fmt"

	"github.com/freeeve/pgn/v3"
)

// ParseMove parses a move in SAN ("Nf3") or UCI ("g1f3") notation against
// the current position. SAN is tried first; a coordinate-looking string
// falls back to matching the legal moves by UCI text.
func ParseMove(pos *pgn.GameState, text string) (pgn.Mv, error) {
	mv, err := pgn.ParseSAN(pos, text)
	if err == nil {
		return mv, nil
	}
	if !looksLikeUCI(text) {
		return pgn.Mv{}, err
	}
	for _, legal := range pgn.GenerateLegalMoves(pos) {
		if MoveUCI(legal) == text {
			return legal, nil
		}
	}
	return pgn.Mv{}, fmt.Errorf("no legal move matches %q", text)
}

func looksLikeUCI(s string) bool {
	if len(s) != 4 && len(s) != 5 {
		return false
	}
	if s[0] < 'a' || s[0] > 'h' || s[2] < 'a' || s[2] > 'h' {
		return false
	}
	if s[1] < '1' || s[1] > '8' || s[3] < '1' || s[3] > '8' {
		return false
	}
	return true
}

// MoveUCI renders a move in UCI coordinate notation (e.g. "e2e4", "e7e8q").
func MoveUCI(mv pgn.Mv) string {
	files := "abcdefgh"
	ranks := "12345678"

	uci := string(files[mv.From%8]) + string(ranks[mv.From/8]) +
		string(files[mv.To%8]) + string(ranks[mv.To/8])

	switch mv.Promo {
	case pgn.PromoQueen:
		uci += "q"
	case pgn.PromoRook:
		uci += "r"
	case pgn.PromoBishop:
		uci += "b"
	case pgn.PromoKnight:
		uci += "n"
	}
	return uci
}
