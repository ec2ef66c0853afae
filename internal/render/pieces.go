package render

import (
	"bytes"
	"embed"
	"fmt"
	"image"
	"sync"

	"github.com/park285/chess-analyzer/internal/board"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
)

//go:embed assets/pieces/*.svg
var pieceFiles embed.FS

type pieceCacheKey struct {
	piece board.Piece
	size  int
}

var (
	pieceCache   = map[pieceCacheKey]*image.RGBA{}
	pieceCacheMu sync.RWMutex
)

// pieceImage rasterises the glyph for piece into a size x size image.
// Results are cached per piece and size.
func pieceImage(piece board.Piece, size int) (*image.RGBA, error) {
	key := pieceCacheKey{piece: piece, size: size}

	pieceCacheMu.RLock()
	if img, ok := pieceCache[key]; ok {
		pieceCacheMu.RUnlock()
		return img, nil
	}
	pieceCacheMu.RUnlock()

	name, err := pieceAssetName(piece)
	if err != nil {
		return nil, err
	}
	data, err := pieceFiles.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("read piece asset %s: %w", name, err)
	}
	icon, err := oksvg.ReadIconStream(bytes.NewReader(sanitizeSVG(data)))
	if err != nil {
		return nil, fmt.Errorf("parse piece svg %s: %w", name, err)
	}
	if icon.ViewBox.W <= 0 {
		icon.ViewBox.W = float64(size)
	}
	if icon.ViewBox.H <= 0 {
		icon.ViewBox.H = float64(size)
	}
	icon.SetTarget(0, 0, float64(size), float64(size))

	img := image.NewRGBA(image.Rect(0, 0, size, size))
	scanner := rasterx.NewScannerGV(size, size, img, img.Bounds())
	raster := rasterx.NewDasher(size, size, scanner)
	icon.Draw(raster, 1.0)

	pieceCacheMu.Lock()
	pieceCache[key] = img
	pieceCacheMu.Unlock()
	return img, nil
}

func pieceAssetName(piece board.Piece) (string, error) {
	prefix := "w"
	if piece.Color == board.Black {
		prefix = "b"
	}
	var suffix string
	switch piece.Kind {
	case board.King:
		suffix = "K"
	case board.Queen:
		suffix = "Q"
	case board.Rook:
		suffix = "R"
	case board.Bishop:
		suffix = "B"
	case board.Knight:
		suffix = "N"
	case board.Pawn:
		suffix = "P"
	default:
		return "", fmt.Errorf("no glyph for %s", piece.Kind)
	}
	return fmt.Sprintf("assets/pieces/%s%s.svg", prefix, suffix), nil
}
