package services

import (
	"cafe_bot/internal/models"
	"context"
	"regexp"
	"strconv"
	"strings"
)

var (
	cancelPattern = regexp.MustCompile(`(?i)\b(?:cancel\w*|cancél\w*|ya no quiero|me equivoqu)`)
	namePattern   = regexp.MustCompile(`(?i)\b(?:me llamo|mi nombre es)\s+([\p{L}][\p{L}\s'-]{0,40})`)
	orderPattern  = regexp.MustCompile(`(?i)\b(?:quiero|quisiera|dame|me das|me da|pido|me trae|me traes)\s+(.+)`)
	qtyPattern    = regexp.MustCompile(`(?i)^(\d+|un|una|uno|dos|tres|cuatro|cinco)\s+(.+)$`)
	itemSeparator = regexp.MustCompile(`\s*(?:,|\sy\s)\s*`)
	nameSeparator = regexp.MustCompile(`(?i)\s+y\s+`)
)

var spelledQuantities = map[string]int{
	"un": 1, "una": 1, "uno": 1, "dos": 2, "tres": 3, "cuatro": 4, "cinco": 5,
}

type keywordClassifier struct{}

// NewKeywordClassifier returns a rule based classifier for running without a chat model.
func NewKeywordClassifier() IntentClassifier {
	return keywordClassifier{}
}

func (keywordClassifier) Classify(ctx context.Context, history []models.ConversationTurn, message string) (Intent, error) {
	text := strings.TrimSpace(message)
	if text == "" {
		return PlainTextIntent{Text: "¿En qué te puedo ayudar?"}, nil
	}

	if cancelPattern.MatchString(text) {
		return CancelIntent{Reason: text}, nil
	}

	if m := namePattern.FindStringSubmatch(text); m != nil {
		name := strings.Fields(nameSeparator.Split(m[1], 2)[0])
		if len(name) > 0 {
			return RegisterNameIntent{Name: strings.Join(name, " ")}, nil
		}
	}

	if m := orderPattern.FindStringSubmatch(text); m != nil {
		if items := parseItems(m[1]); len(items) > 0 {
			return OrderItemsIntent{Items: items}, nil
		}
	}

	return PlainTextIntent{Text: "¡Hola! Dime qué se te antoja y te lo preparo. ¿Algo del menú?"}, nil
}

// parseItems splits "dos lattes y un croissant" into item requests.
func parseItems(text string) []OrderItemRequest {
	text = strings.Trim(text, " .!?¡¿")
	parts := itemSeparator.Split(text, -1)

	var items []OrderItemRequest
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		quantity := 1
		if m := qtyPattern.FindStringSubmatch(part); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				quantity = n
			} else {
				quantity = spelledQuantities[strings.ToLower(m[1])]
			}
			part = m[2]
		}
		items = append(items, OrderItemRequest{ProductName: part, Quantity: quantity})
	}
	return items
}
