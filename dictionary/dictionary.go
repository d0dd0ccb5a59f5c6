// Package dictionary holds the word pool a room plays from. A Dictionary is not
// safe for concurrent use; each room actor owns its own copy.
package dictionary

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"regexp"
	"strings"
)

// SearchLimit is the maximum number of words a search returns.
const SearchLimit = 15

// maxQueryLength bounds the pattern size accepted by Search.
const maxQueryLength = 128

//go:embed words/english.json
var embedded embed.FS

type resource struct {
	Dictionary []string `json:"dictionary"`
	SN         []string `json:"sn"`
}

type Dictionary struct {
	words   []string
	counts  map[string]int
	notable map[string]struct{}
}

// New builds a dictionary from a word list and its notable subset. The slices
// are copied. Order is preserved; call Shuffle to randomise it.
func New(words, notable []string) *Dictionary {
	d := &Dictionary{
		words:   make([]string, len(words)),
		counts:  make(map[string]int, len(words)),
		notable: make(map[string]struct{}, len(notable)),
	}
	copy(d.words, words)
	for _, w := range d.words {
		d.counts[w]++
	}
	for _, w := range notable {
		d.notable[w] = struct{}{}
	}
	return d
}

// Load decodes a {"dictionary": [...], "sn": [...]} document.
func Load(r io.Reader) (*Dictionary, error) {
	var res resource
	if err := json.NewDecoder(r).Decode(&res); err != nil {
		return nil, fmt.Errorf("decode dictionary: %w", err)
	}
	if len(res.Dictionary) == 0 {
		return nil, fmt.Errorf("decode dictionary: word list is empty")
	}
	return New(res.Dictionary, res.SN), nil
}

// LoadFile loads the dictionary at path, or the embedded English list when
// path is empty.
func LoadFile(path string) (*Dictionary, error) {
	if path == "" {
		return Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open dictionary: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the embedded English dictionary.
func Default() (*Dictionary, error) {
	f, err := embedded.Open("words/english.json")
	if err != nil {
		return nil, fmt.Errorf("open embedded dictionary: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Clone returns an independent copy.
func (d *Dictionary) Clone() *Dictionary {
	notable := make([]string, 0, len(d.notable))
	for w := range d.notable {
		notable = append(notable, w)
	}
	return New(d.words, notable)
}

// Shuffle reorders the words with a Fisher-Yates pass. A nil rng uses the
// package-level source.
func (d *Dictionary) Shuffle(rng *rand.Rand) {
	intN := rand.IntN
	if rng != nil {
		intN = rng.IntN
	}
	for i := len(d.words) - 1; i > 0; i-- {
		j := intN(i + 1)
		d.words[i], d.words[j] = d.words[j], d.words[i]
	}
}

// SearchResult is the outcome of a Search.
type SearchResult struct {
	Query   string
	Matches []string
	Total   int
	// TooExpensive is set when the query was rejected without searching.
	TooExpensive bool
}

// String renders the result as a chat reply.
func (r SearchResult) String() string {
	switch {
	case r.TooExpensive:
		return "too expensive regex"
	case r.Total == 0:
		return "No result found for: " + r.Query
	default:
		return fmt.Sprintf("results(%d): %s", r.Total, strings.Join(r.Matches, ", "))
	}
}

// Search matches query as a regular expression against every word. Plain
// text behaves as a substring match. At most SearchLimit matches are returned,
// in current order, with Total counting all of them.
func (d *Dictionary) Search(query string) SearchResult {
	res := SearchResult{Query: query}
	if len(query) > maxQueryLength {
		res.TooExpensive = true
		return res
	}
	re, err := regexp.Compile(query)
	if err != nil {
		res.TooExpensive = true
		return res
	}
	for _, w := range d.words {
		if !re.MatchString(w) {
			continue
		}
		if res.Total < SearchLimit {
			res.Matches = append(res.Matches, w)
		}
		res.Total++
	}
	return res
}

// Pick returns the first word containing syllable for which used reports false.
func (d *Dictionary) Pick(syllable string, used func(string) bool) (string, bool) {
	for _, w := range d.words {
		if strings.Contains(w, syllable) && (used == nil || !used(w)) {
			return w, true
		}
	}
	return "", false
}

// Remove deletes the first occurrence of word and reports whether one existed.
func (d *Dictionary) Remove(word string) bool {
	if d.counts[word] == 0 {
		return false
	}
	for i, w := range d.words {
		if w == word {
			d.words = append(d.words[:i], d.words[i+1:]...)
			break
		}
	}
	if d.counts[word]--; d.counts[word] == 0 {
		delete(d.counts, word)
	}
	return true
}

func (d *Dictionary) Contains(word string) bool {
	return d.counts[word] > 0
}

func (d *Dictionary) IsNotable(word string) bool {
	_, ok := d.notable[word]
	return ok
}

func (d *Dictionary) Len() int {
	return len(d.words)
}

// Words returns a copy of the words in current order.
func (d *Dictionary) Words() []string {
	out := make([]string, len(d.words))
	copy(out, d.words)
	return out
}
