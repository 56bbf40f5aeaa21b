package automation

import (
	"strings"

	"whatsapp-assistant/internal/models"
)

// Intent is the category guessed from free-form text. Its values match the
// contact categories.
type Intent string

const (
	IntentBusiness Intent = models.CategoryBusiness
	IntentWork     Intent = models.CategoryWork
	IntentPersonal Intent = models.CategoryPersonal
	IntentInactive Intent = models.CategoryInactive
	IntentStranger Intent = models.CategoryStranger
	IntentOther    Intent = models.CategoryOther
)

type Classifier interface {
	Classify(text string) Intent
}

type keywordSet struct {
	intent   Intent
	keywords []string
}

// KeywordClassifier matches substrings against ordered keyword sets; the
// first set with a hit wins.
type KeywordClassifier struct {
	sets []keywordSet
}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{sets: []keywordSet{
		{IntentBusiness, []string{"business", "service", "pricing", "product", "quote", "offer"}},
		{IntentWork, []string{"work", "job", "project", "career", "application", "position"}},
		{IntentPersonal, []string{"personal", "private", "individual", "friend", "family"}},
		{IntentInactive, []string{"been a while", "long time", "remember me", "catch up", "last spoke"}},
		{IntentStranger, []string{"introduction", "new here", "first time", "never met", "just found"}},
	}}
}

func (k *KeywordClassifier) Classify(text string) Intent {
	lower := strings.ToLower(text)
	for _, set := range k.sets {
		for _, kw := range set.keywords {
			if strings.Contains(lower, kw) {
				return set.intent
			}
		}
	}
	return IntentOther
}
