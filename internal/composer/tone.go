package composer

import "math/rand/v2"

// Tone is the style modifier placed in the generation prompt, e.g.
// "very" + "sarcastic".
type Tone struct {
	Adverb string `json:"adverb"`
	Mood   string `json:"mood"`
}

func (t Tone) String() string { return t.Adverb + " " + t.Mood }

// PickTone draws an adverb and a mood independently and uniformly.
func PickTone(rng *rand.Rand, adverbs, moods []string) Tone {
	return Tone{Adverb: pick(rng, adverbs), Mood: pick(rng, moods)}
}

// PickLength draws a target length class such as "short" or "long".
func PickLength(rng *rand.Rand, lengths []string) string {
	return pick(rng, lengths)
}

func pick(rng *rand.Rand, items []string) string {
	if len(items) == 0 {
		return ""
	}
	return items[rng.IntN(len(items))]
}
