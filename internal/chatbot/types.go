package chatbot

// ChatRequest is the body POSTed to the inference service.
type ChatRequest struct {
	Message  string `json:"message"`
	SenderID string `json:"sender_id"`
}
