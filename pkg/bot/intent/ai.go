package intent

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/hugohenrick/whatsapp-commerce/pkg/ai"
	"github.com/hugohenrick/whatsapp-commerce/pkg/domain"
)

const (
	maxPromptProducts   = 50
	defaultAIConfidence = 0.8
)

const classifierSystemPrompt = `You classify messages sent by customers of an online store over WhatsApp.
Answer ONLY with a JSON object, no prose and no markdown.`

// AIClassifier asks the tenant's AI provider to classify the message.
type AIClassifier struct {
	client ai.Client
}

// NewAIClassifier creates an AI-backed classifier.
func NewAIClassifier(client ai.Client) *AIClassifier {
	return &AIClassifier{client: client}
}

// Classify implements Classifier. Any provider or parse problem is reported as ErrClassification.
func (c *AIClassifier) Classify(ctx context.Context, message string, catalog []domain.Product, settings *domain.Settings) (Intent, error) {
	if settings == nil || !settings.AI.Usable() {
		return Intent{}, fmt.Errorf("%w: ai disabled", ErrClassification)
	}

	raw, err := c.client.Complete(ctx, ai.Request{
		SystemPrompt: classifierSystemPrompt,
		UserMessage:  buildPrompt(message, catalog),
		Options:      ai.OptionsFromSettings(settings.AI),
	})
	if err != nil {
		return Intent{}, fmt.Errorf("%w: %v", ErrClassification, err)
	}

	return ParseAIResponse(raw)
}

func buildPrompt(message string, catalog []domain.Product) string {
	var sb strings.Builder
	sb.WriteString("Classify the customer message into one of these intents:\n")
	for _, t := range Taxonomy() {
		sb.WriteString("- ")
		sb.WriteString(string(t))
		sb.WriteString("\n")
	}

	if len(catalog) > 0 {
		sb.WriteString("\nProducts available in the store:\n")
		for i, p := range catalog {
			if i == maxPromptProducts {
				break
			}
			fmt.Fprintf(&sb, "- %s", p.Name)
			if p.Category != "" {
				fmt.Fprintf(&sb, " (%s)", p.Category)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nReply with JSON in this exact shape:\n")
	sb.WriteString(`{"type": "<intent>", "confidence": 0.0-1.0, "extracted_data": {"product_name": "", "quantity": 1, "category": "", "order_number": ""}}`)
	sb.WriteString("\n\nCustomer message: ")
	sb.WriteString(message)
	return sb.String()
}

type aiPayload struct {
	Type          string   `json:"type"`
	Confidence    *float64 `json:"confidence"`
	ExtractedData struct {
		ProductName string  `json:"product_name"`
		Quantity    flexInt `json:"quantity"`
		Category    string  `json:"category"`
		OrderNumber string  `json:"order_number"`
	} `json:"extracted_data"`
}

// flexInt accepts 2, 2.0 and "2".
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		*f = 0
		return nil
	}
	*f = flexInt(v)
	return nil
}

// ParseAIResponse decodes the model output into an Intent.
func ParseAIResponse(raw string) (Intent, error) {
	body := stripFences(raw)

	var payload aiPayload
	if err := json.Unmarshal([]byte(body), &payload); err != nil {
		return Intent{}, fmt.Errorf("%w: invalid json: %v", ErrClassification, err)
	}

	t := Type(strings.ToLower(strings.TrimSpace(payload.Type)))
	if t == "" {
		return Intent{}, fmt.Errorf("%w: missing type", ErrClassification)
	}
	if t == Unknown || !t.Valid() {
		return Intent{}, fmt.Errorf("%w: type %q outside taxonomy", ErrClassification, payload.Type)
	}

	confidence := defaultAIConfidence
	if payload.Confidence != nil {
		confidence = min(max(*payload.Confidence, 0), 1)
	}

	in := Intent{
		Type:       t,
		Confidence: confidence,
		Data: Data{
			ProductName: strings.TrimSpace(payload.ExtractedData.ProductName),
			Quantity:    int(payload.ExtractedData.Quantity),
			Category:    strings.TrimSpace(payload.ExtractedData.Category),
			OrderNumber: strings.ToUpper(strings.TrimSpace(payload.ExtractedData.OrderNumber)),
		},
	}
	if in.Data.Quantity < 0 {
		in.Data.Quantity = 0
	}
	return in, nil
}

func stripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	// drop the language tag, e.g. ```json
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
