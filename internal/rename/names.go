package rename

import (
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"github.com/zeebo/xxh3"

	"github.com/cmmoran/jvmobf/internal/registry"
)

// Dictionary selects the alphabet generated names are drawn from.
type Dictionary string

const (
	Alphabet   Dictionary = "alphabet"
	Mixed      Dictionary = "mixed"
	Confusable Dictionary = "confusable"
)

func (d Dictionary) charset() (string, error) {
	switch d {
	case "", Alphabet:
		return "abcdefghijklmnopqrstuvwxyz", nil
	case Mixed:
		return "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ", nil
	case Confusable:
		return "Il", nil
	}
	return "", fmt.Errorf("unknown dictionary %q", string(d))
}

// Validate reports an unknown dictionary.
func (d Dictionary) Validate() error {
	_, err := d.charset()
	return err
}

// Names turns an index into an identifier over a seeded permutation of the
// dictionary. Equal seeds give equal names.
type Names struct {
	chars []byte
}

func NewNames(d Dictionary, seed uint64) (*Names, error) {
	cs, err := d.charset()
	if err != nil {
		return nil, err
	}
	chars := []byte(cs)
	rnd := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	rnd.Shuffle(len(chars), func(i, j int) { chars[i], chars[j] = chars[j], chars[i] })
	return &Names{chars: chars}, nil
}

// Name returns the i-th identifier (bijective base-n, so "" is never produced).
func (n *Names) Name(i int) string {
	base := len(n.chars)
	var out []byte
	for i++; i > 0; i = (i - 1) / base {
		out = append(out, n.chars[(i-1)%base])
	}
	for l, r := 0, len(out)-1; l < r; l, r = l+1, r-1 {
		out[l], out[r] = out[r], out[l]
	}
	return string(out)
}

// DeriveSeed hashes the sorted application class set so that rebuilding the
// same input yields the same names.
func DeriveSeed(refs []registry.ClassReference) uint64 {
	names := make([]string, len(refs))
	for i, r := range refs {
		names[i] = string(r)
	}
	sort.Strings(names)
	return xxh3.HashString(strings.Join(names, "\n"))
}
