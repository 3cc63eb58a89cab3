package models

type ResponseKind string

const (
	KindText           ResponseKind = "text"
	KindOrderCreated   ResponseKind = "order_created"
	KindOrderUpdated   ResponseKind = "order_updated"
	KindOrderCancelled ResponseKind = "order_cancelled"
	KindError          ResponseKind = "error"
	KindCoalesced      ResponseKind = "coalesced"
)

type ChatRequest struct {
	Message    string `json:"message"`
	CustomerID string `json:"customer_id" binding:"required"`
}

type ChatResponse struct {
	Kind     ResponseKind           `json:"kind"`
	Message  string                 `json:"message"`
	Messages []string               `json:"messages,omitempty"`
	Order    *OrderSummary          `json:"order,omitempty"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func CoalescedResponse() *ChatResponse {
	return &ChatResponse{Kind: KindCoalesced, Message: "Mensaje agrupado con el siguiente."}
}
