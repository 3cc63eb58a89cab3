package services

import (
	"cafe_bot/internal/models"
	"cafe_bot/internal/monitoring"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

const (
	toolInterpretOrder = "interpretar_orden"
	toolCancelOrder    = "cancelar_orden"
	toolRegisterName   = "registrar_nombre"

	DefaultClassifierTimeout = 30 * time.Second
)

// ChatModel is the part of a langchaingo model the classifier needs.
type ChatModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// MenuPrompter renders the live menu for the system prompt.
type MenuPrompter interface {
	PromptText() string
}

type aiProcessor struct {
	model   ChatModel
	menu    MenuPrompter
	timeout time.Duration
}

// NewAIProcessor classifies with the chat model, or with keyword rules when no
// model is configured.
func NewAIProcessor(model ChatModel, menu MenuPrompter, timeout time.Duration) IntentClassifier {
	if model == nil {
		logrus.Warn("No chat model configured, using keyword classifier")
		return NewKeywordClassifier()
	}
	if timeout <= 0 {
		timeout = DefaultClassifierTimeout
	}
	return &aiProcessor{model: model, menu: menu, timeout: timeout}
}

func (a *aiProcessor) Classify(ctx context.Context, history []models.ConversationTurn, message string) (Intent, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	messages := make([]llms.MessageContent, 0, len(history)+2)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, a.systemPrompt()))
	for _, turn := range history {
		role := llms.ChatMessageTypeHuman
		if turn.Role == models.RoleAssistant {
			role = llms.ChatMessageTypeAI
		}
		messages = append(messages, llms.TextParts(role, turn.Content))
	}
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, message))

	start := time.Now()
	resp, err := a.model.GenerateContent(ctx, messages,
		llms.WithTools(classifierTools()),
		llms.WithTemperature(0.3),
	)
	monitoring.ClassifierLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("failed to call chat model: %w", err)
	}

	return intentFromResponse(resp)
}

func intentFromResponse(resp *llms.ContentResponse) (Intent, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, ErrNoUsableOutput
	}
	choice := resp.Choices[0]

	for _, call := range choice.ToolCalls {
		if call.FunctionCall == nil {
			continue
		}
		return intentFromCall(call.FunctionCall.Name, call.FunctionCall.Arguments)
	}
	if choice.FuncCall != nil {
		return intentFromCall(choice.FuncCall.Name, choice.FuncCall.Arguments)
	}

	if strings.TrimSpace(choice.Content) == "" {
		return nil, ErrNoUsableOutput
	}
	return PlainTextIntent{Text: choice.Content}, nil
}

type orderArgs struct {
	Items []struct {
		ProductName string   `json:"nombre_producto"`
		Quantity    int      `json:"cantidad"`
		UnitPrice   float64  `json:"precio_unitario"`
		Modifiers   []string `json:"modificadores_seleccionados"`
		Notes       string   `json:"notas_especiales"`
	} `json:"items"`
}

func intentFromCall(name, arguments string) (Intent, error) {
	if strings.TrimSpace(arguments) == "" {
		arguments = "{}"
	}

	switch name {
	case toolInterpretOrder:
		var args orderArgs
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return nil, fmt.Errorf("%w: bad %s arguments: %v", ErrNoUsableOutput, name, err)
		}
		items := make([]OrderItemRequest, 0, len(args.Items))
		for _, it := range args.Items {
			productName := strings.TrimSpace(it.ProductName)
			if productName == "" {
				productName = "Item"
			}
			items = append(items, OrderItemRequest{
				ProductName: productName,
				Quantity:    it.Quantity,
				UnitPrice:   it.UnitPrice,
				Modifiers:   it.Modifiers,
				Notes:       it.Notes,
			})
		}
		return OrderItemsIntent{Items: items}, nil

	case toolCancelOrder:
		var args struct {
			Reason string `json:"razon"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return nil, fmt.Errorf("%w: bad %s arguments: %v", ErrNoUsableOutput, name, err)
		}
		return CancelIntent{Reason: args.Reason}, nil

	case toolRegisterName:
		var args struct {
			Name string `json:"nombre"`
		}
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return nil, fmt.Errorf("%w: bad %s arguments: %v", ErrNoUsableOutput, name, err)
		}
		return RegisterNameIntent{Name: args.Name}, nil
	}

	return nil, fmt.Errorf("%w: unknown tool %q", ErrNoUsableOutput, name)
}

func classifierTools() []llms.Tool {
	return []llms.Tool{
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        toolInterpretOrder,
				Description: "Agrega items a la orden del cliente. Usar cuando el cliente pide alimentos o bebidas, incluso si es un item adicional.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"items": map[string]any{
							"type": "array",
							"items": map[string]any{
								"type": "object",
								"properties": map[string]any{
									"nombre_producto":             map[string]any{"type": "string"},
									"cantidad":                    map[string]any{"type": "integer"},
									"precio_unitario":             map[string]any{"type": "number"},
									"modificadores_seleccionados": map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
									"notas_especiales":            map[string]any{"type": "string"},
								},
								"required": []string{"nombre_producto", "cantidad"},
							},
						},
					},
					"required": []string{"items"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        toolCancelOrder,
				Description: "Cancela la orden pendiente actual. Usar cuando el cliente explícitamente pide cancelar su pedido.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"razon": map[string]any{"type": "string", "description": "Motivo de la cancelación"},
					},
					"required": []string{"razon"},
				},
			},
		},
		{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        toolRegisterName,
				Description: "Registra el nombre del cliente cuando se presenta.",
				Parameters: map[string]any{
					"type": "object",
					"properties": map[string]any{
						"nombre": map[string]any{"type": "string"},
					},
					"required": []string{"nombre"},
				},
			},
		},
	}
}

func (a *aiProcessor) systemPrompt() string {
	menuText := ""
	if a.menu != nil {
		menuText = a.menu.PromptText()
	}
	return fmt.Sprintf(`### ROL
Eres 'Pepe', el mesero digital de la cafetería. Tu tono es amable, coloquial (mexicano neutro) y eficiente.

### MENÚ DISPONIBLE (PRECIOS REALES)
%s

### REGLAS
- Usa los precios del menú. Si algo no está en el menú, di que no lo tenemos.
- Usa %s cuando el cliente pide alimentos o bebidas, incluso si es un item adicional.
- Usa %s sólo cuando el cliente pide explícitamente cancelar o dice que se equivocó.
- Usa %s cuando el cliente te dice su nombre.
- Siempre pregunta "¿Algo más?" al final.

### FORMATO DE RESPUESTA
Si respondes sólo con texto puedes devolver una lista JSON de strings para enviar mensajes separados.
Ejemplo: ["¡Claro que sí!", "¿De qué sabor quieres tu dona?"]`, menuText, toolInterpretOrder, toolCancelOrder, toolRegisterName)
}
