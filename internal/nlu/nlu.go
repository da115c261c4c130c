package nlu

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"strconv"
	"strings"

	openai "github.com/openai/openai-go/v3"
)

var (
	ErrMalformed     = errors.New("malformed classifier output")
	ErrUnknownIntent = errors.New("intent outside the closed set")
)

// Classifier turns an utterance into a Result. Implementations may fail;
// the Processor recovers.
type Classifier interface {
	Classify(ctx context.Context, text string) (Result, error)
}

const systemPrompt = `
You are Nex's intent extraction agent.
Your ONLY job is to convert the user's utterance into a minimal structured JSON.

RULES:
1. Do NOT converse.
2. Do NOT answer the question.
3. Output ONLY a JSON object. No markdown, no commentary.
4. Never invent slot values that are not in the utterance; omit them instead.

OUTPUT FORMAT:
{
  "intent": "weather|time|date|reminder_set|reminder_list|timer|joke|search|open_site|play_music|define|calculate|system_control|small_talk|unknown",
  "slots": {"city": "...", "query": "...", "song": "...", "word": "...", "expr": "...", "amount": "...", "unit": "...", "datetime": "...", "target": "..."}
}

If the meaning is unclear → intent = "unknown".
`

const (
	classifierMaxTokens   = 150
	classifierTemperature = 0.1
)

type OpenAIClassifier struct {
	client openai.Client
	model  string
}

func NewOpenAIClassifier(client openai.Client, model string) *OpenAIClassifier {
	return &OpenAIClassifier{client: client, model: model}
}

func (c *OpenAIClassifier) Classify(ctx context.Context, text string) (Result, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		},
		Model:       openai.ChatModel(c.model),
		MaxTokens:   openai.Int(classifierMaxTokens),
		Temperature: openai.Float(classifierTemperature),
	})
	if err != nil {
		return Result{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return Result{}, fmt.Errorf("empty message content")
	}

	log.Debug("Classified", "data", content)

	out, err := ParseResult(content)
	if err != nil {
		return Result{}, err
	}
	out.Text = text

	return out, nil
}

// StripFences removes markdown code-fence markers around a JSON reply.
func StripFences(content string) string {
	content = strings.TrimSpace(content)
	content = strings.ReplaceAll(content, "```json", "")
	content = strings.ReplaceAll(content, "```", "")
	return strings.TrimSpace(content)
}

// ParseResult decodes a classifier reply. Both "intent" and "slots" must be
// present and the intent must belong to the closed set.
func ParseResult(content string) (Result, error) {
	raw := StripFences(content)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return Result{}, fmt.Errorf("%w: %v (raw: %s)", ErrMalformed, err, raw)
	}

	rawIntent, ok := obj["intent"]
	if !ok {
		return Result{}, fmt.Errorf("%w: missing intent", ErrMalformed)
	}
	rawSlots, ok := obj["slots"]
	if !ok {
		return Result{}, fmt.Errorf("%w: missing slots", ErrMalformed)
	}

	var name string
	if err := json.Unmarshal(rawIntent, &name); err != nil {
		return Result{}, fmt.Errorf("%w: intent is not a string", ErrMalformed)
	}
	intent := Intent(strings.ToLower(strings.TrimSpace(name)))
	if !intent.Valid() {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownIntent, name)
	}

	var values map[string]any
	if err := json.Unmarshal(rawSlots, &values); err != nil {
		return Result{}, fmt.Errorf("%w: slots is not an object", ErrMalformed)
	}

	return Result{Intent: intent, Slots: normalizeSlots(values)}, nil
}

// normalizeSlots stringifies scalar values and drops empty or placeholder ones.
func normalizeSlots(values map[string]any) Slots {
	slots := make(Slots, len(values))

	for k, v := range values {
		var s string
		switch x := v.(type) {
		case nil:
			continue
		case string:
			s = strings.TrimSpace(x)
		case float64:
			s = strconv.FormatFloat(x, 'f', -1, 64)
		case bool:
			s = strconv.FormatBool(x)
		default:
			b, err := json.Marshal(x)
			if err != nil {
				continue
			}
			s = string(b)
		}

		if s == "" || s == "..." {
			continue
		}
		slots[k] = s
	}

	return slots
}
