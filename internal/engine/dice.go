// Package engine holds the dice primitives shared by combat, initiative and deck shuffling.
package engine

import (
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"regexp"
	"strconv"
	"strings"
)

// Roller is the source of randomness for a game. Intn returns a value in [0,n).
type Roller interface {
	Intn(n int) int
}

var diceRe = regexp.MustCompile(`(?i)^\s*(\d+)?\s*d\s*(\d+)(\s*([+\-x*])\s*(\d+))?\s*$`)

// NewRoller returns a roller seeded with seed. Games record their seed so a
// replay with the same seed produces the same rolls.
func NewRoller(seed int64) *rand.Rand {
	return rand.New(rand.NewSource(seed))
}

// NewSeed generates a random seed using crypto/rand.
func NewSeed() (int64, error) {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("read random seed: %w", err)
	}
	return int64(binary.LittleEndian.Uint64(b[:])), nil
}

// Die rolls a single die with the given number of sides.
func Die(r Roller, sides int) int {
	if sides <= 0 {
		return 0
	}
	return 1 + r.Intn(sides)
}

// D20 rolls a twenty-sided die.
func D20(r Roller) int { return Die(r, 20) }

// Roll evaluates a dice expression: N, NdM, NdM+K, NdM-K, NdM xK (multiply) / *K.
// Unparseable expressions roll 0 and totals never go below 0.
func Roll(r Roller, expr string) int {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return 0
	}
	if n, err := strconv.Atoi(expr); err == nil {
		return max(n, 0)
	}
	m := diceRe.FindStringSubmatch(expr)
	if m == nil {
		return 0
	}
	count := 1
	if m[1] != "" {
		count, _ = strconv.Atoi(m[1])
	}
	sides, _ := strconv.Atoi(m[2])
	total := 0
	for i := 0; i < count; i++ {
		total += Die(r, sides)
	}
	if m[3] != "" {
		k, _ := strconv.Atoi(m[5])
		switch m[4] {
		case "+":
			total += k
		case "-":
			total -= k
		case "x", "X", "*":
			total *= k
		}
	}
	return max(total, 0)
}

// ValidExpr reports whether Roll understands expr.
func ValidExpr(expr string) bool {
	expr = strings.TrimSpace(expr)
	if _, err := strconv.Atoi(expr); err == nil {
		return true
	}
	return diceRe.MatchString(expr)
}

// Shuffle permutes n elements in place using swap, Fisher-Yates style.
func Shuffle(r Roller, n int, swap func(i, j int)) {
	for i := n - 1; i > 0; i-- {
		j := r.Intn(i + 1)
		swap(i, j)
	}
}

// SequenceRoller replays scripted die faces. Each call to Intn(n) consumes the
// next face f and returns f-1 clamped into [0,n), so scripting 20 for a d20
// yields a natural 20. When the script runs out it repeats the last face.
type SequenceRoller struct {
	Faces []int
	next  int
}

// NewSequenceRoller builds a roller that returns the given faces in order.
func NewSequenceRoller(faces ...int) *SequenceRoller {
	return &SequenceRoller{Faces: faces}
}

func (s *SequenceRoller) Intn(n int) int {
	if n <= 0 {
		return 0
	}
	if len(s.Faces) == 0 {
		return 0
	}
	i := s.next
	if i >= len(s.Faces) {
		i = len(s.Faces) - 1
	} else {
		s.next++
	}
	v := s.Faces[i] - 1
	if v < 0 {
		v = 0
	}
	if v >= n {
		v = n - 1
	}
	return v
}

// Remaining reports how many scripted faces have not been consumed yet.
func (s *SequenceRoller) Remaining() int {
	return len(s.Faces) - s.next
}
