package analysis

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"
	"github.com/corentings/chess/v2/opening"
	"github.com/park285/chess-analyzer/internal/board"
	"github.com/park285/chess-analyzer/internal/msgcat"
	"go.uber.org/zap"
)

// Evaluation is the engine's view of one position.
type Evaluation struct {
	Score    float64  // pawns, side to move
	BestMove string   // UCI
	Lines    []string // SAN variations, best first
}

// CommentInput describes the position being commented on. Game is the game
// after LastMove; its move history drives the opening lookup.
type CommentInput struct {
	Game     *nchess.Game
	LastMove string
	Eval     Evaluation
}

// Commentator turns an evaluation into a few short bullet lines using the
// commentary.* templates of a message catalog.
type Commentator struct {
	cat    *msgcat.Catalog
	book   *opening.BookECO
	logger *zap.Logger
}

func NewCommentator(cat *msgcat.Catalog, logger *zap.Logger) *Commentator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Commentator{
		cat:    cat,
		book:   opening.NewBookECO(),
		logger: logger,
	}
}

// Opening returns the ECO code and title for the game's move history, or
// empty strings when the line is not in the book.
func (c *Commentator) Opening(game *nchess.Game) (code, title string) {
	if c.book == nil || game == nil || len(game.Moves()) == 0 {
		return "", ""
	}
	if eco := c.book.Find(game.Moves()); eco != nil {
		return eco.Code(), eco.Title()
	}
	return "", ""
}

func (c *Commentator) Comment(in CommentInput) (string, error) {
	toMove := board.White
	if in.Game != nil {
		toMove = board.ColorFromChess(in.Game.Position().Turn())
	}
	mover := toMove.Opposite()
	score := in.Eval.Score

	var lines []string
	add := func(key string, data map[string]any) error {
		s, err := c.cat.Render(key, data)
		if err != nil {
			return err
		}
		lines = append(lines, s)
		return nil
	}

	if code, title := c.Opening(in.Game); code != "" {
		if err := add("commentary.opening", map[string]any{"Code": code, "Name": title}); err != nil {
			return "", err
		}
	}
	if mv := strings.TrimSpace(in.LastMove); mv != "" {
		if err := add("commentary.played", map[string]any{"Side": sideName(mover), "Move": mv}); err != nil {
			return "", err
		}
	}

	if IsMate(score) {
		winner := toMove
		if score < 0 {
			winner = mover
		}
		if err := add("commentary.mate", map[string]any{"Side": sideName(winner)}); err != nil {
			return "", err
		}
	} else {
		moverScore := -score
		q := Quality(moverScore)
		data := map[string]any{"Side": sideName(mover), "Score": fmt.Sprintf("%+.2f", moverScore)}
		if err := add("commentary.quality."+string(q), data); err != nil {
			return "", err
		}
	}

	if best := bestSAN(in.Eval); best != "" {
		if err := add("commentary.suggestion", map[string]any{"Side": sideName(toMove), "Best": best}); err != nil {
			return "", err
		}
	}
	if len(in.Eval.Lines) > 0 && strings.Contains(in.Eval.Lines[0], " ") {
		if err := add("commentary.line", map[string]any{"Line": in.Eval.Lines[0]}); err != nil {
			return "", err
		}
	}

	c.logger.Debug("commentary_rendered", zap.Int("lines", len(lines)), zap.Float64("score", score))
	return "* " + strings.Join(lines, "\n* "), nil
}

func bestSAN(ev Evaluation) string {
	if len(ev.Lines) > 0 {
		if f := strings.Fields(ev.Lines[0]); len(f) > 0 {
			return f[0]
		}
	}
	return ev.BestMove
}

func sideName(c board.Color) string {
	if c == board.Black {
		return "Black"
	}
	return "White"
}
