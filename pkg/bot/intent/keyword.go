package intent

import (
	"context"
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
)

// Confidences emitted by the keyword classifier.
const (
	ConfidenceExactBuy     = 0.9
	ConfidenceExactInquiry = 0.85
	ConfidencePartial      = 0.75
	ConfidenceCategory     = 0.7
	ConfidenceKeyword      = 0.7
)

var (
	buyVerbRegex     = regexp.MustCompile(`\b(want|buy|purchase|order|get me|add)\b`)
	quantityRegex    = regexp.MustCompile(`\b(\d+)\b`)
	orderNumberRegex = regexp.MustCompile(`(?i)\bORD-[0-9A-Z]+(?:-[0-9A-Z]+)*`)
)

// PartialMatch tunes the fuzzy name heuristic.
type PartialMatch struct {
	// MinWordLen is the minimum length of a word that counts as meaningful.
	MinWordLen int
	// MinOverlap is the number of shared meaningful words required.
	MinOverlap int
	// ShortNameWords: names with at most this many words need a single overlap.
	ShortNameWords int
}

// DefaultPartialMatch is the historical threshold: words longer than 3 chars,
// two overlaps, or one for names of up to two words.
func DefaultPartialMatch() PartialMatch {
	return PartialMatch{MinWordLen: 4, MinOverlap: 2, ShortNameWords: 2}
}

type keywordSet struct {
	intent   Type
	patterns []*regexp.Regexp
}

func compileKeywords(t Type, words ...string) keywordSet {
	set := keywordSet{intent: t}
	for _, w := range words {
		set.patterns = append(set.patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return set
}

// checked in this order, first match wins
var keywordSets = []keywordSet{
	compileKeywords(BrowseProducts,
		"catalog", "catalogue", "products", "product list", "menu", "browse",
		"what do you sell", "what do you have", "shop", "store"),
	compileKeywords(ViewCart,
		"my cart", "view cart", "show cart", "cart", "basket", "bag"),
	compileKeywords(Checkout,
		"checkout", "check out", "place order", "place my order", "pay", "finish", "finalize"),
	compileKeywords(OrderStatus,
		"order status", "my order", "my orders", "track", "tracking", "status", "delivery", "where is"),
	compileKeywords(Help,
		"help", "support", "assist", "how does", "how do i", "commands", "options"),
}

// KeywordClassifier is the deterministic, offline classifier.
type KeywordClassifier struct {
	partial PartialMatch
}

// NewKeywordClassifier creates a keyword classifier with the given partial-match tuning.
func NewKeywordClassifier(partial PartialMatch) *KeywordClassifier {
	def := DefaultPartialMatch()
	if partial.MinWordLen <= 0 {
		partial.MinWordLen = def.MinWordLen
	}
	if partial.MinOverlap <= 0 {
		partial.MinOverlap = def.MinOverlap
	}
	if partial.ShortNameWords <= 0 {
		partial.ShortNameWords = def.ShortNameWords
	}
	return &KeywordClassifier{partial: partial}
}

// Classify implements Classifier. It never fails.
func (k *KeywordClassifier) Classify(_ context.Context, message string, catalog []domain.Product, _ *domain.Settings) (Intent, error) {
	return k.classify(message, catalog), nil
}

func (k *KeywordClassifier) classify(message string, catalog []domain.Product) Intent {
	msg := strings.ToLower(strings.TrimSpace(message))
	if msg == "" {
		return UnknownIntent()
	}

	if in, ok := k.exactProduct(msg, catalog); ok {
		return in
	}
	if in, ok := k.partialProduct(msg, catalog); ok {
		return in
	}
	if in, ok := categoryMatch(msg, catalog); ok {
		return in
	}
	if in, ok := keywordMatch(message, msg); ok {
		return in
	}
	return UnknownIntent()
}

func (k *KeywordClassifier) exactProduct(msg string, catalog []domain.Product) (Intent, bool) {
	for _, p := range catalog {
		name := strings.ToLower(strings.TrimSpace(p.Name))
		if name == "" || !strings.Contains(msg, name) {
			continue
		}

		if buyVerbRegex.MatchString(msg) {
			return Intent{
				Type:       AddToCart,
				Confidence: ConfidenceExactBuy,
				Data: Data{
					ProductName: p.Name,
					Quantity:    extractQuantity(strings.Replace(msg, name, " ", 1)),
				},
			}, true
		}
		return Intent{
			Type:       ProductInquiry,
			Confidence: ConfidenceExactInquiry,
			Data:       Data{ProductName: p.Name},
		}, true
	}
	return Intent{}, false
}

func (k *KeywordClassifier) partialProduct(msg string, catalog []domain.Product) (Intent, bool) {
	msgWords := make(map[string]struct{})
	for _, w := range words(msg) {
		if len(w) >= k.partial.MinWordLen {
			msgWords[w] = struct{}{}
		}
	}
	if len(msgWords) == 0 {
		return Intent{}, false
	}

	for _, p := range catalog {
		nameWords := words(strings.ToLower(p.Name))
		if len(nameWords) == 0 {
			continue
		}

		seen := make(map[string]struct{})
		for _, w := range nameWords {
			if len(w) < k.partial.MinWordLen {
				continue
			}
			if _, ok := msgWords[w]; ok {
				seen[w] = struct{}{}
			}
		}

		overlap := len(seen)
		if overlap >= k.partial.MinOverlap || (overlap >= 1 && len(nameWords) <= k.partial.ShortNameWords) {
			return Intent{
				Type:       ProductInquiry,
				Confidence: ConfidencePartial,
				Data:       Data{ProductName: p.Name},
			}, true
		}
	}
	return Intent{}, false
}

func categoryMatch(msg string, catalog []domain.Product) (Intent, bool) {
	for _, p := range catalog {
		category := strings.ToLower(strings.TrimSpace(p.Category))
		if category == "" || !strings.Contains(msg, category) {
			continue
		}
		return Intent{
			Type:       ProductInquiry,
			Confidence: ConfidenceCategory,
			Data:       Data{Category: p.Category},
		}, true
	}
	return Intent{}, false
}

func keywordMatch(original, msg string) (Intent, bool) {
	for _, set := range keywordSets {
		for _, re := range set.patterns {
			if !re.MatchString(msg) {
				continue
			}
			in := Intent{Type: set.intent, Confidence: ConfidenceKeyword}
			if set.intent == OrderStatus {
				in.Data.OrderNumber = ExtractOrderNumber(original)
			}
			return in, true
		}
	}

	// a bare order number is a status lookup
	if number := ExtractOrderNumber(original); number != "" {
		return Intent{Type: OrderStatus, Confidence: ConfidenceKeyword, Data: Data{OrderNumber: number}}, true
	}
	return Intent{}, false
}

// ExtractOrderNumber returns the first ORD-… reference in the message, upper-cased.
func ExtractOrderNumber(message string) string {
	return strings.ToUpper(orderNumberRegex.FindString(message))
}

// MaxQuantity caps quantities that do not fit in an int32.
const MaxQuantity = math.MaxInt32

func extractQuantity(msg string) int {
	m := quantityRegex.FindStringSubmatch(msg)
	if m == nil {
		return 1
	}
	n, err := strconv.ParseInt(m[1], 10, 32)
	if errors.Is(err, strconv.ErrRange) {
		// absurdly large amounts still go through the stock check
		return MaxQuantity
	}
	if err != nil || n < 1 {
		return 1
	}
	return int(n)
}

func words(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
