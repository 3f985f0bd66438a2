// Package chat answers portal questions with a chat completion call that is
// grounded in retrieved catalog content.
//
// Service.Answer picks the first user message, retrieves up to 4000
// characters of related entity YAML and sends it to the completion API as the
// system prompt:
//
//	client, err := chat.NewOpenAIClient(chat.ClientConfig{APIKey: key})
//	svc := chat.NewService(client, searcher, idx, chat.ServiceConfig{Logger: logger})
//
//	resp, err := svc.Answer(ctx, chat.AnswerRequest{
//	    Model:    "gpt-3.5-turbo",
//	    Messages: []string{`{"role":"user","content":"Who owns the billing API?"}`},
//	})
//
// Errors matching IsInvalidRequest come from the caller's input.
package chat
