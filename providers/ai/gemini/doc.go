// Package gemini implements ai.StreamProvider for Google's Generative
// Language API (models/{model}:generateContent and :streamGenerateContent).
//
// The system turn is sent as systemInstruction, assistant turns use the role
// "model", and the key travels in the x-goog-api-key header.
package gemini
