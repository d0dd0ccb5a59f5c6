package room

import (
	"math/rand/v2"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/wfunc/wordbot/dictionary"
)

// longWordLength is the rune count from which a word counts as long.
const longWordLength = 20

// PlayerStats holds the running totals of one participant.
type PlayerStats struct {
	Nickname string
	Roles    []string
	Words    int
	Subs     int
	Longs    int
	Hyphens  int
	Multi    int
	Lives    int
	Streak   int
}

func (p PlayerStats) clone() PlayerStats {
	p.Roles = slices.Clone(p.Roles)
	return p
}

// Info is a point-in-time summary of a room.
type Info struct {
	Code        string
	SelfPeerID  int64
	RoomCreator string
	Syllable    string
	Dictionary  int
	UsedWords   int
	Players     int
}

// state is everything a room owns. Only the actor goroutine touches it.
type state struct {
	code        string
	dict        *dictionary.Dictionary
	rng         *rand.Rand
	selfPeerID  int64
	roomCreator string
	syllable    string
	playerWord  string
	used        map[string]struct{}
	usedOrder   []string
	players     map[int64]*PlayerStats
	gameConn    Emitter
	roomConn    Emitter
}

func newState(code string, dict *dictionary.Dictionary, rng *rand.Rand) *state {
	s := &state{
		code:    code,
		dict:    dict,
		rng:     rng,
		used:    make(map[string]struct{}),
		players: make(map[int64]*PlayerStats),
	}
	s.dict.Shuffle(s.rng)
	return s
}

func (s *state) markUsed(word string) {
	if _, ok := s.used[word]; ok {
		return
	}
	s.used[word] = struct{}{}
	s.usedOrder = append(s.usedOrder, word)
}

func (s *state) isUsed(word string) bool {
	_, ok := s.used[word]
	return ok
}

func (s *state) info() Info {
	return Info{
		Code:        s.code,
		SelfPeerID:  s.selfPeerID,
		RoomCreator: s.roomCreator,
		Syllable:    s.syllable,
		Dictionary:  s.dict.Len(),
		UsedWords:   len(s.usedOrder),
		Players:     len(s.players),
	}
}

// score applies the bonus rules to p and returns the announcement, or "" when
// the word earned nothing beyond the plain word count.
func score(p *PlayerStats, nickname, word string, dict *dictionary.Dictionary) string {
	var perks []string

	if utf8.RuneCountInString(word) >= longWordLength {
		p.Longs++
		perks = append(perks, perk("long", p.Longs))
	}
	if strings.Contains(word, "-") {
		p.Hyphens++
		perks = append(perks, perk("hyphen", p.Hyphens))
	}
	if dict.IsNotable(word) {
		p.Subs++
		perks = append(perks, perk("sn", p.Subs))
	}
	if strings.Contains(word, " ") && allInDictionary(strings.Split(word, " "), dict) {
		p.Multi++
		perks = append(perks, perk("multi", p.Multi))
	}
	p.Words++

	if len(perks) == 0 {
		return ""
	}
	return nickname + " has placed " + strings.Join(perks, " — ") + ": " + word
}

func perk(kind string, count int) string {
	return "a " + kind + " (" + strconv.Itoa(count) + ")"
}

func allInDictionary(tokens []string, dict *dictionary.Dictionary) bool {
	for _, t := range tokens {
		if !dict.Contains(t) {
			return false
		}
	}
	return true
}
