package composer

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nextlevelbuilder/parrot/internal/providers"
)

// Prompt variants.
const (
	// VariantBlend mixes events and details from the sample into a new post
	// of a given length class.
	VariantBlend = "blend"
	// VariantEmulate asks for one short post in the sample's style.
	VariantEmulate = "emulate"
)

// GenerationMessages builds the chat for producing candidates.
func GenerationMessages(variant, account, sample string, tone Tone, length string) []providers.Message {
	switch variant {
	case VariantEmulate:
		return []providers.Message{
			{Role: providers.RoleSystem, Content: fmt.Sprintf(
				"You are a machine-learning model trying to emulate the tweets from %s. Here are %s's recent tweets:",
				account, account)},
			{Role: providers.RoleUser, Content: sample},
			{Role: providers.RoleUser, Content: fmt.Sprintf(
				"Please generate 1 new %s short tweet based on the writing-style, language, emotion, and topics in those tweets",
				tone)},
		}
	default:
		return []providers.Message{
			{Role: providers.RoleSystem, Content: fmt.Sprintf(
				"You are a machine-learning model trying to create a new tweet from %s given his/her tweeting history. "+
					"You will be provided with a small sample of %s's recent tweets to begin.",
				account, account)},
			{Role: providers.RoleUser, Content: sample},
			{Role: providers.RoleUser, Content: fmt.Sprintf(
				"The new tweet should be a blend of specific events and details talked about in the various tweets provided. "+
					"The new tweet should be unique, so feel free introduce topics and themes inferred to be similar to what %s talks about. "+
					"The new tweet should not include emojis. The new tweet should be %s. The tweet MUST be a %s tweet.",
				account, tone, length)},
		}
	}
}

// ScoringMessages builds the chat asking for one 0-10 score per candidate,
// where 10 means unrelated to every banned topic.
func ScoringMessages(bannedTopics, candidates []string) []providers.Message {
	list, _ := json.Marshal(candidates)
	return []providers.Message{
		{Role: providers.RoleSystem, Content: "You will give a score 0-10 for each item based on the criteria in the prompt. " +
			"You should respond with an array of numbers representing the scores."},
		{Role: providers.RoleUser, Content: fmt.Sprintf(
			"Please determine if any of the following messages discuss these topics. Here are the topics: %s. "+
				"Please rate each tweet on a scale of 1-10 where 1 is related to any of the topics and 10 is not related at all to any: %s",
			strings.Join(bannedTopics, ", "), list)},
	}
}
