package board

import (
	"errors"
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestToIndices(t *testing.T) {
	tests := []struct {
		in         string
		file, rank int
		wantErr    bool
	}{
		{"a1", 0, 0, false},
		{"h8", 7, 7, false},
		{"e4", 4, 3, false},
		{"i1", 0, 0, true},
		{"a9", 0, 0, true},
		{"a0", 0, 0, true},
		{"E4", 0, 0, true},
		{"e", 0, 0, true},
		{"e44", 0, 0, true},
		{"", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			f, r, err := ToIndices(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSquare) {
					t.Fatalf("ToIndices(%q) err = %v; want ErrInvalidSquare", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ToIndices(%q): %v", tt.in, err)
			}
			if f != tt.file || r != tt.rank {
				t.Errorf("ToIndices(%q) = (%d,%d); want (%d,%d)", tt.in, f, r, tt.file, tt.rank)
			}
		})
	}
}

func TestToNotation(t *testing.T) {
	sq, err := ToNotation(4, 3)
	if err != nil {
		t.Fatalf("ToNotation: %v", err)
	}
	if sq.String() != "e4" {
		t.Errorf("ToNotation(4,3) = %s; want e4", sq)
	}
	for _, idx := range [][2]int{{-1, 0}, {0, -1}, {8, 0}, {0, 8}} {
		if _, err := ToNotation(idx[0], idx[1]); !errors.Is(err, ErrOutOfBounds) {
			t.Errorf("ToNotation(%d,%d) err = %v; want ErrOutOfBounds", idx[0], idx[1], err)
		}
	}
}

func TestNotationRoundTrip(t *testing.T) {
	for sq := Square(0); sq < NoSquare; sq++ {
		got, err := ParseSquare(sq.String())
		if err != nil {
			t.Fatalf("ParseSquare(%s): %v", sq, err)
		}
		if got != sq {
			t.Fatalf("ParseSquare(%s) = %d; want %d", sq, got, sq)
		}
	}
}

func TestPixelCenter(t *testing.T) {
	tests := []struct {
		sq   string
		x, y float64
	}{
		{"a8", 25, 25},
		{"a1", 25, 375},
		{"h1", 375, 375},
		{"e4", 225, 225},
	}
	for _, tt := range tests {
		x, y := PixelCenter(MustSquare(tt.sq), 400)
		if math.Abs(x-tt.x) > 1e-9 || math.Abs(y-tt.y) > 1e-9 {
			t.Errorf("PixelCenter(%s) = (%v,%v); want (%v,%v)", tt.sq, x, y, tt.x, tt.y)
		}
	}
}

func TestSquareAtInvertsPixelCenter(t *testing.T) {
	for sq := Square(0); sq < NoSquare; sq++ {
		x, y := PixelCenter(sq, 480)
		got, ok := SquareAt(x, y, 480)
		if !ok || got != sq {
			t.Fatalf("SquareAt(PixelCenter(%s)) = %s,%v", sq, got, ok)
		}
	}
	for _, p := range [][2]float64{{-1, 10}, {10, -1}, {480, 10}, {10, 480}} {
		if _, ok := SquareAt(p[0], p[1], 480); ok {
			t.Errorf("SquareAt(%v,%v) reported on-board", p[0], p[1])
		}
	}
}

func TestOffset(t *testing.T) {
	sq, ok := MustSquare("b1").Offset(-1, 2)
	if !ok || sq.String() != "a3" {
		t.Errorf("b1+(-1,2) = %s,%v; want a3", sq, ok)
	}
	if _, ok := MustSquare("a1").Offset(-1, 0); ok {
		t.Error("a1+(-1,0) should leave the board")
	}
	if _, ok := MustSquare("h8").Offset(0, 1); ok {
		t.Error("h8+(0,1) should leave the board")
	}
}

func TestFromFENStartingPosition(t *testing.T) {
	pl, turn, err := FromFEN("rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1")
	if err != nil {
		t.Fatalf("FromFEN: %v", err)
	}
	if turn != White {
		t.Errorf("turn = %v; want white", turn)
	}
	want := map[string]Piece{
		"e1": {King, White},
		"d8": {Queen, Black},
		"b1": {Knight, White},
		"h7": {Pawn, Black},
	}
	got := map[string]Piece{}
	for name := range want {
		p, ok := pl.Get(MustSquare(name))
		if !ok {
			t.Fatalf("%s empty", name)
		}
		got[name] = p
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("pieces mismatch (-want +got):\n%s", diff)
	}
	if _, ok := pl.Get(MustSquare("e4")); ok {
		t.Error("e4 should be empty")
	}
}

func TestFromFENRejectsGarbage(t *testing.T) {
	if _, _, err := FromFEN("not a fen"); !errors.Is(err, ErrInvalidFEN) {
		t.Fatalf("err = %v; want ErrInvalidFEN", err)
	}
}

func TestPlacementMoveIsCopy(t *testing.T) {
	base := Placement{}.With(MustSquare("g1"), Piece{Knight, White})
	moved := base.Move(MustSquare("g1"), MustSquare("f3"))
	if _, ok := base.Get(MustSquare("g1")); !ok {
		t.Error("original placement mutated")
	}
	if p, ok := moved.Get(MustSquare("f3")); !ok || p.Kind != Knight {
		t.Errorf("moved f3 = %v,%v", p, ok)
	}
	if _, ok := moved.Get(MustSquare("g1")); ok {
		t.Error("g1 should be vacated")
	}
}

func TestParsePieceKind(t *testing.T) {
	for in, want := range map[string]PieceKind{"p": Pawn, "N": Knight, "bishop": Bishop, "r": Rook, "Queen": Queen, "k": King} {
		got, ok := ParsePieceKind(in)
		if !ok || got != want {
			t.Errorf("ParsePieceKind(%q) = %v,%v; want %v", in, got, ok, want)
		}
	}
	if _, ok := ParsePieceKind("x"); ok {
		t.Error("ParsePieceKind(x) should fail")
	}
}
